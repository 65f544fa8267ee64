package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"mrilo/internal/domain"
	"mrilo/internal/domain/models"
	"mrilo/internal/formatting"
	"mrilo/internal/httputil"
	"mrilo/internal/repository/memory"
	"mrilo/internal/service"
	"mrilo/internal/service/auth"
	chatsvc "mrilo/internal/service/chat"
	"mrilo/internal/service/llm/providers"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChatService struct {
	lastReq *models.ChatRequest
	env     models.Envelope
}

func (f *fakeChatService) HandleChat(ctx context.Context, req *models.ChatRequest) models.Envelope {
	f.lastReq = req
	return f.env
}

type fakeCompletion struct {
	text string
	err  error
}

func (f *fakeCompletion) Complete(ctx context.Context, req *models.OpenAIRequest) (string, error) {
	return f.text, f.err
}

// withUser simulates the auth middleware
func withUser(userID string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if userID != "" {
			r = httputil.WithUserID(r, userID)
		}
		h(w, r)
	}
}

func TestChatHandler_Chat(t *testing.T) {
	svc := &fakeChatService{env: formatting.CustomResponse("hello", nil)}
	h := NewChatHandler(svc, &fakeCompletion{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	withUser("user-1", h.Chat)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != httputil.AllowHeaders {
		t.Errorf("Allow-Headers = %q", got)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["response"] != "hello" {
		t.Errorf("response = %v, want hello", body["response"])
	}
	if sources, ok := body["sources"].([]interface{}); !ok || len(sources) != 0 {
		t.Errorf("sources = %v, want []", body["sources"])
	}
	if svc.lastReq.UserID != "user-1" {
		t.Errorf("UserID = %q, want the authenticated user", svc.lastReq.UserID)
	}
}

func TestChatHandler_CallerIdentity(t *testing.T) {
	tests := []struct {
		name      string
		user      string
		body      string
		wantID    string
		wantAuthn bool
	}{
		{"token wins over body id", "user-1", `{"message":"hi","userId":"someone-else"}`, "user-1", true},
		{"token without body id", "user-1", `{"message":"hi"}`, "user-1", true},
		{"anonymous body id is unverified", "", `{"message":"hi","userId":"guest"}`, "guest", false},
		{"body cannot claim verification", "", `{"message":"hi","userId":"guest","Authenticated":true}`, "guest", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeChatService{env: formatting.CustomResponse("ok", nil)}
			h := NewChatHandler(svc, &fakeCompletion{}, testLogger())

			rec := httptest.NewRecorder()
			withUser(tt.user, h.Chat)(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body)))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if svc.lastReq.UserID != tt.wantID || svc.lastReq.Authenticated != tt.wantAuthn {
				t.Errorf("caller = (%q, %v), want (%q, %v)", svc.lastReq.UserID, svc.lastReq.Authenticated, tt.wantID, tt.wantAuthn)
			}
		})
	}
}

func TestChatHandler_AnonymousCannotSetStoredLanguage(t *testing.T) {
	catalog, err := providers.ParseCatalog([]byte("providers: {}\n"))
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}
	reg, err := providers.NewRegistry(providers.RegistryConfig{Catalog: catalog, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	prefs := service.NewUserPreferencesService(memory.NewUserPreferencesRepository(), testLogger())
	ch := NewChatHandler(chatsvc.NewOrchestrator(reg, prefs, nil, testLogger()), &fakeCompletion{}, testLogger())
	ph := NewUserPreferencesHandler(prefs, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		if u := r.Header.Get("X-Test-User"); u != "" {
			r = httputil.WithUserID(r, u)
		}
		ch.Chat(w, r)
	})
	mux.HandleFunc("GET /api/users/me/preferences", func(w http.ResponseWriter, r *http.Request) {
		ph.GetPreferences(w, httputil.WithUserID(r, r.Header.Get("X-Test-User")))
	})

	storedLanguage := func(user string) string {
		rec := do(t, mux, http.MethodGet, "/api/users/me/preferences", user, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET preferences = %d %s", rec.Code, rec.Body.String())
		}
		var p models.UserPreferences
		json.Unmarshal(rec.Body.Bytes(), &p)
		return p.Language()
	}

	rec := do(t, mux, http.MethodPost, "/chat", "", `{"message":"respond in language: Japanese","userId":"victim"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous switch = %d %s", rec.Code, rec.Body.String())
	}
	if got := storedLanguage("victim"); got != "" {
		t.Errorf("victim language = %q after anonymous switch, want none", got)
	}

	rec = do(t, mux, http.MethodPost, "/chat", "victim", `{"message":"respond in language: German","userId":"other"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("verified switch = %d %s", rec.Code, rec.Body.String())
	}
	if got := storedLanguage("victim"); got != "German" {
		t.Errorf("victim language = %q, want German", got)
	}
	if got := storedLanguage("other"); got != "" {
		t.Errorf("other language = %q, want none", got)
	}
}

func TestChatHandler_ChatErrors(t *testing.T) {
	svc := &fakeChatService{env: formatting.ErrorResponse("All AI services are currently unavailable. Please try again later.", http.StatusServiceUnavailable)}
	h := NewChatHandler(svc, &fakeCompletion{}, testLogger())

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"malformed json", `{"message":`, http.StatusBadRequest, "Invalid request body"},
		{"service failure", `{"message":"hi","userId":"u"}`, http.StatusServiceUnavailable, "All AI services are currently unavailable. Please try again later."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Chat(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]string
			json.Unmarshal(rec.Body.Bytes(), &body)
			if body["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", body["error"], tt.wantError)
			}
			if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("error envelope missing CORS header")
			}
		})
	}
}

func TestChatHandler_Preflight(t *testing.T) {
	h := NewChatHandler(&fakeChatService{}, &fakeCompletion{}, testLogger())
	rec := httptest.NewRecorder()
	h.Preflight(rec, httptest.NewRequest(http.MethodOptions, "/chat", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("preflight = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Headers") != httputil.AllowHeaders {
		t.Error("preflight missing allowed headers")
	}
}

func TestChatHandler_Complete(t *testing.T) {
	tests := []struct {
		name       string
		completion *fakeCompletion
		body       string
		wantStatus int
		wantKey    string
		wantValue  string
	}{
		{"success", &fakeCompletion{text: "done"}, `{"message":"hi"}`, http.StatusOK, "response", "done"},
		{"validation", &fakeCompletion{err: &domain.ValidationError{Message: "Message is required"}}, `{}`, http.StatusBadRequest, "error", "Message is required"},
		{"unavailable", &fakeCompletion{err: &domain.UnavailableError{Message: "OpenAI API key is not configured"}}, `{"message":"hi"}`, http.StatusServiceUnavailable, "error", "OpenAI API key is not configured"},
		{"internal", &fakeCompletion{err: errors.New("db exploded")}, `{"message":"hi"}`, http.StatusInternalServerError, "error", "An error occurred while processing your request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewChatHandler(&fakeChatService{}, tt.completion, testLogger())
			rec := httptest.NewRecorder()
			h.Complete(rec, httptest.NewRequest(http.MethodPost, "/openai", strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]interface{}
			json.Unmarshal(rec.Body.Bytes(), &body)
			if body[tt.wantKey] != tt.wantValue {
				t.Errorf("%s = %v, want %q", tt.wantKey, body[tt.wantKey], tt.wantValue)
			}
		})
	}
}

func newHistoryMux() *http.ServeMux {
	repo := memory.NewChatRepository()
	svc := service.NewChatHistoryService(repo, memory.TransactionManager{}, auth.NewOwnerBasedAuthorizer(repo), testLogger())
	prefs := service.NewUserPreferencesService(memory.NewUserPreferencesRepository(), testLogger())
	h := NewChatHistoryHandler(svc, testLogger())
	ph := NewUserPreferencesHandler(prefs, testLogger())

	// the test user comes from the X-Test-User header
	asUser := func(fn http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if u := r.Header.Get("X-Test-User"); u != "" {
				r = httputil.WithUserID(r, u)
			}
			fn(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chats", asUser(h.ListChats))
	mux.HandleFunc("PUT /api/chats/{id}", asUser(h.SaveChat))
	mux.HandleFunc("PATCH /api/chats/{id}", asUser(h.UpdateChat))
	mux.HandleFunc("DELETE /api/chats/{id}", asUser(h.DeleteChat))
	mux.HandleFunc("GET /api/users/me/preferences", asUser(ph.GetPreferences))
	mux.HandleFunc("PATCH /api/users/me/preferences", asUser(ph.UpdatePreferences))
	return mux
}

func do(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatHistoryHandler(t *testing.T) {
	mux := newHistoryMux()

	rec := do(t, mux, http.MethodPut, "/api/chats/c1", "u1", `{"title":"Plans","messages":[{"id":"m1","text":"hi","isAi":false,"timestamp":"2025-03-01T09:00:00Z"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, mux, http.MethodPatch, "/api/chats/c1", "u1", `{"folder_id":"Work","is_favorite":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH status = %d, body %s", rec.Code, rec.Body.String())
	}
	var chat models.ChatRecord
	json.Unmarshal(rec.Body.Bytes(), &chat)
	if chat.FolderID == nil || *chat.FolderID != "Work" || !chat.IsFavorite || chat.Title != "Plans" {
		t.Errorf("patched chat = %+v", chat)
	}

	rec = do(t, mux, http.MethodPatch, "/api/chats/c1", "u1", `{"folder_id":null}`)
	json.Unmarshal(rec.Body.Bytes(), &chat)
	if chat.FolderID != nil || !chat.IsFavorite {
		t.Errorf("null folder_id should only clear the folder, got %+v", chat)
	}

	rec = do(t, mux, http.MethodGet, "/api/chats", "u1", "")
	var chats []models.ChatRecord
	json.Unmarshal(rec.Body.Bytes(), &chats)
	if rec.Code != http.StatusOK || len(chats) != 1 || len(chats[0].Messages) != 1 {
		t.Fatalf("GET = %d %+v", rec.Code, chats)
	}

	if rec := do(t, mux, http.MethodDelete, "/api/chats/c1", "u2", ""); rec.Code != http.StatusForbidden {
		t.Errorf("DELETE by other user = %d, want 403", rec.Code)
	}
	if rec := do(t, mux, http.MethodDelete, "/api/chats/c1", "u1", ""); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE = %d, want 204", rec.Code)
	}
	if rec := do(t, mux, http.MethodDelete, "/api/chats/c1", "u1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE = %d, want 404", rec.Code)
	}
}

func TestChatHistoryHandler_Errors(t *testing.T) {
	mux := newHistoryMux()

	tests := []struct {
		name       string
		method     string
		path       string
		user       string
		body       string
		wantStatus int
	}{
		{"anonymous list", http.MethodGet, "/api/chats", "", "", http.StatusUnauthorized},
		{"malformed body", http.MethodPut, "/api/chats/c1", "u1", `{`, http.StatusBadRequest},
		{"missing title", http.MethodPut, "/api/chats/c1", "u1", `{"messages":[]}`, http.StatusBadRequest},
		{"patch missing chat", http.MethodPatch, "/api/chats/nope", "u1", `{"title":"x"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, tt.method, tt.path, tt.user, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("Content-Type = %q, want problem+json", ct)
			}
		})
	}
}

func TestUserPreferencesHandler(t *testing.T) {
	mux := newHistoryMux()

	rec := do(t, mux, http.MethodPatch, "/api/users/me/preferences", "u1", `{"language":"spanish"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, mux, http.MethodGet, "/api/users/me/preferences", "u1", "")
	var prefs models.UserPreferences
	json.Unmarshal(rec.Body.Bytes(), &prefs)
	if prefs.Language() != "Spanish" {
		t.Errorf("language = %q, want Spanish", prefs.Language())
	}

	if rec := do(t, mux, http.MethodPatch, "/api/users/me/preferences", "u1", `{"language":"Klingon"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported language = %d, want 400", rec.Code)
	}
	if rec := do(t, mux, http.MethodGet, "/api/users/me/preferences", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous = %d, want 401", rec.Code)
	}
}

func TestSocketHandler(t *testing.T) {
	svc := &fakeChatService{env: formatting.CustomResponse("hola", nil)}
	srv := httptest.NewServer(http.HandlerFunc(NewSocketHandler(svc, testLogger()).ServeChat))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]interface{}{
		"event":   "message",
		"ref":     "1",
		"payload": map[string]string{"message": "hola", "userId": "u1"},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var typing, reply struct {
		Event   string          `json:"event"`
		Ref     string          `json:"ref"`
		Status  int             `json:"status"`
		Payload json.RawMessage `json:"payload"`
		HTML    string          `json:"html"`
	}
	if err := conn.ReadJSON(&typing); err != nil {
		t.Fatalf("read typing: %v", err)
	}
	if typing.Event != EventTyping || typing.Ref != "1" {
		t.Errorf("first frame = %+v, want typing", typing)
	}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	var env models.Envelope
	if err := json.Unmarshal(reply.Payload, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if reply.Event != EventReply || reply.Status != http.StatusOK || env.Reply == nil || env.Reply.Response != "hola" {
		t.Errorf("reply frame = %+v / %+v", reply, env)
	}
	if reply.HTML != `<p class="my-3">hola</p>` {
		t.Errorf("html = %q", reply.HTML)
	}
	if svc.lastReq.UserID != "u1" || svc.lastReq.Authenticated {
		t.Errorf("caller = (%q, %v), want unverified u1", svc.lastReq.UserID, svc.lastReq.Authenticated)
	}

	// bad frames get an error frame and keep the socket open
	conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"join"}`))
	var bad struct {
		Event  string `json:"event"`
		Status int    `json:"status"`
	}
	if err := conn.ReadJSON(&bad); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if bad.Event != EventError || bad.Status != http.StatusBadRequest {
		t.Errorf("error frame = %+v", bad)
	}
}

func TestHealthHandler(t *testing.T) {
	catalog, err := providers.ParseCatalog([]byte(`
fallback: [grok]
providers:
  grok:
    kind: chat_completions
    url: http://127.0.0.1:1
`))
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}
	reg, err := providers.NewRegistry(providers.RegistryConfig{Catalog: catalog, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	rec := httptest.NewRecorder()
	NewHealthHandler(reg).HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Status    string                     `json:"status"`
		Providers []providers.ProviderStatus `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	// no API key configured
	if len(body.Providers) != 1 || body.Providers[0].State != "disabled" {
		t.Errorf("providers = %+v, want grok disabled", body.Providers)
	}
}

type slowChatService struct {
	delay time.Duration
}

func (s slowChatService) HandleChat(ctx context.Context, req *models.ChatRequest) models.Envelope {
	time.Sleep(s.delay)
	return formatting.CustomResponse("done", nil)
}

func TestSocketHandler_SlowReplyKeepsConnection(t *testing.T) {
	h := NewSocketHandler(slowChatService{delay: 300 * time.Millisecond}, testLogger())
	h.pongWait = 100 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(h.ServeChat))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		ref := fmt.Sprint(i)
		if err := conn.WriteJSON(map[string]interface{}{
			"event":   "message",
			"ref":     ref,
			"payload": map[string]string{"message": "take your time"},
		}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}

		var frame struct {
			Event string `json:"event"`
			Ref   string `json:"ref"`
		}
		for frame.Event != EventReply {
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			if err := conn.ReadJSON(&frame); err != nil {
				t.Fatalf("message %d: read: %v", i, err)
			}
		}
		if frame.Ref != ref {
			t.Errorf("reply ref = %q, want %q", frame.Ref, ref)
		}
	}
}
