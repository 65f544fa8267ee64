package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"mrilo/internal/config"
	"mrilo/internal/domain"
	"mrilo/internal/domain/models"
	domainllm "mrilo/internal/domain/services/llm"
	"mrilo/internal/language"
	"mrilo/internal/repository/memory"
	"mrilo/internal/service"
	"mrilo/internal/service/llm/providers"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	name    string
	reply   string
	sources []models.Source
	err     error
	calls   int
	lastReq *domainllm.GenerateRequest
	order   *[]string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req *domainllm.GenerateRequest) (*domainllm.GenerateResponse, error) {
	f.calls++
	f.lastReq = req
	if f.order != nil {
		*f.order = append(*f.order, f.name)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domainllm.GenerateResponse{Provider: f.name, Text: f.reply, Sources: f.sources}, nil
}

func newTestRegistry(t *testing.T, fakes ...*fakeProvider) *providers.Registry {
	t.Helper()
	catalog, err := providers.ParseCatalog([]byte("providers: {}\n"))
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}
	reg, err := providers.NewRegistry(providers.RegistryConfig{Catalog: catalog, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	var names []string
	for _, f := range fakes {
		// High threshold so repeated failures within a test never start a cooldown
		reg.Register(&providers.Spec{Name: f.name, FailureThreshold: 100}, f)
		names = append(names, f.name)
	}
	if err := reg.SetChain(names...); err != nil {
		t.Fatalf("SetChain() error = %v", err)
	}
	return reg
}

func newTestOrchestrator(t *testing.T, fakes ...*fakeProvider) *Orchestrator {
	t.Helper()
	return NewOrchestrator(newTestRegistry(t, fakes...), service.NewUserPreferencesService(memory.NewUserPreferencesRepository(), testLogger()), nil, testLogger())
}

func TestHandleChat_Overrides(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{name: "ceo question", message: "who is the CEO of Mrilo", want: leadershipReply},
		{name: "founder keyword", message: "Who is the founder here?", want: leadershipReply},
		{name: "mrilo leadership", message: "who runs mrilo these days", want: leadershipReply},
		{name: "founder name", message: "Tell me about Tejas", want: founderReply},
		{name: "surname wins over ceo", message: "Is Bachute the CEO?", want: founderReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeProvider{name: "grok", reply: "llm"}
			o := newTestOrchestrator(t, fake)

			env := o.HandleChat(context.Background(), &models.ChatRequest{Message: tt.message})
			if env.IsError() {
				t.Fatalf("unexpected error envelope: %+v", env.Failure)
			}
			if env.Reply.Response != tt.want {
				t.Errorf("Response = %q, want %q", env.Reply.Response, tt.want)
			}
			if fake.calls != 0 {
				t.Errorf("provider called %d times, want 0", fake.calls)
			}
		})
	}
}

func TestHandleChat_LanguageSwitch(t *testing.T) {
	fake := &fakeProvider{name: "grok", reply: "Hola"}
	o := newTestOrchestrator(t, fake)
	ctx := context.Background()

	env := o.HandleChat(ctx, &models.ChatRequest{Message: "respond in language: Spanish", UserID: "u1", Authenticated: true})
	if env.Reply == nil || env.Reply.Response != language.SwitchConfirmation("Spanish") {
		t.Fatalf("switch reply = %+v", env)
	}
	if fake.calls != 0 {
		t.Fatal("language switch should not call providers")
	}

	env = o.HandleChat(ctx, &models.ChatRequest{Message: "What is the weather like today in the city?", UserID: "u1", Authenticated: true})
	if env.IsError() {
		t.Fatalf("unexpected error: %+v", env.Failure)
	}
	if fake.lastReq.Language != "Spanish" {
		t.Errorf("Language = %q, want Spanish", fake.lastReq.Language)
	}

	// Another user keeps detection
	o.HandleChat(ctx, &models.ChatRequest{Message: "What is the weather like today in the city?", UserID: "u2", Authenticated: true})
	if fake.lastReq.Language != "English" {
		t.Errorf("Language = %q, want English", fake.lastReq.Language)
	}
}

func TestHandleChat_GuestLanguageStaysLocal(t *testing.T) {
	fake := &fakeProvider{name: "grok", reply: "ok"}
	prefs := service.NewUserPreferencesService(memory.NewUserPreferencesRepository(), testLogger())
	o := NewOrchestrator(newTestRegistry(t, fake), prefs, nil, testLogger())
	ctx := context.Background()

	env := o.HandleChat(ctx, &models.ChatRequest{Message: "respond in language: Japanese", UserID: "victim"})
	if env.Reply == nil || env.Reply.Response != language.SwitchConfirmation("Japanese") {
		t.Fatalf("switch reply = %+v", env)
	}

	stored, err := prefs.GetLanguage(ctx, "victim")
	if err != nil {
		t.Fatalf("GetLanguage() error = %v", err)
	}
	if stored != "" {
		t.Errorf("durable language = %q, want none for an unverified id", stored)
	}

	// The guest keeps its choice for later messages
	o.HandleChat(ctx, &models.ChatRequest{Message: "What is the weather like today in the city?", UserID: "victim"})
	if fake.lastReq.Language != "Japanese" {
		t.Errorf("guest Language = %q, want Japanese", fake.lastReq.Language)
	}

	// The verified user is unaffected
	o.HandleChat(ctx, &models.ChatRequest{Message: "What is the weather like today in the city?", UserID: "victim", Authenticated: true})
	if fake.lastReq.Language != "English" {
		t.Errorf("verified Language = %q, want English", fake.lastReq.Language)
	}
}

func TestGuestPreferences_Bounded(t *testing.T) {
	g := NewGuestPreferences()
	ctx := context.Background()
	for i := 0; i < config.MaxGuestPreferences+5; i++ {
		if err := g.SetLanguage(ctx, fmt.Sprintf("guest-%d", i), "French"); err != nil {
			t.Fatalf("SetLanguage() error = %v", err)
		}
	}
	if len(g.languages) != config.MaxGuestPreferences {
		t.Errorf("entries = %d, want %d", len(g.languages), config.MaxGuestPreferences)
	}
	last := fmt.Sprintf("guest-%d", config.MaxGuestPreferences+4)
	if got, _ := g.GetLanguage(ctx, last); got != "French" {
		t.Errorf("GetLanguage(%s) = %q, want French", last, got)
	}
}

func TestHandleChat_LanguageSwitchLowercase(t *testing.T) {
	o := newTestOrchestrator(t, &fakeProvider{name: "grok", reply: "ok"})
	env := o.HandleChat(context.Background(), &models.ChatRequest{Message: "please speak in the language french", UserID: "u1"})
	if env.Reply == nil || env.Reply.Response != language.SwitchConfirmation("French") {
		t.Errorf("reply = %+v", env.Reply)
	}
}

func TestHandleChat_UnsupportedLanguage(t *testing.T) {
	fake := &fakeProvider{name: "grok", reply: "llm"}
	o := newTestOrchestrator(t, fake)

	env := o.HandleChat(context.Background(), &models.ChatRequest{Message: "talk in language: Klingon", UserID: "u1"})
	if env.IsError() {
		t.Fatalf("unsupported language should be a normal reply, got %+v", env.Failure)
	}
	if !strings.Contains(env.Reply.Response, "I don't support Klingon") {
		t.Errorf("Response = %q", env.Reply.Response)
	}
	if !strings.Contains(env.Reply.Response, language.SupportedList()) {
		t.Error("reply should list every supported language")
	}
	if fake.calls != 0 {
		t.Error("provider should not be called")
	}
}

func TestHandleChat_SwitchWithoutUserGoesToProviders(t *testing.T) {
	fake := &fakeProvider{name: "grok", reply: "sure"}
	o := newTestOrchestrator(t, fake)

	env := o.HandleChat(context.Background(), &models.ChatRequest{Message: "respond in language: Spanish"})
	if env.IsError() || env.Reply.Response != "sure" {
		t.Fatalf("envelope = %+v", env)
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1", fake.calls)
	}
}

func TestHandleChat_MixedLanguages(t *testing.T) {
	fake := &fakeProvider{name: "grok", reply: "llm"}
	o := newTestOrchestrator(t, fake)

	env := o.HandleChat(context.Background(), &models.ChatRequest{Message: "Hello. Bonjour."})
	if env.IsError() || env.Reply.Response != language.ClarificationMessage() {
		t.Fatalf("envelope = %+v", env)
	}
	if fake.calls != 0 {
		t.Error("provider should not be called")
	}
}

func TestHandleChat_Fallback(t *testing.T) {
	var order []string
	grok := &fakeProvider{name: "grok", err: errors.New("grok down"), order: &order}
	perplexity := &fakeProvider{name: "perplexity", err: errors.New("perplexity down"), order: &order}
	gemini := &fakeProvider{name: "gemini", err: errors.New("gemini down"), order: &order}
	hf := &fakeProvider{
		name:    "huggingface",
		reply:   "from hf",
		sources: []models.Source{{Title: "t", URL: "https://x.example", Type: models.SourceTypeWebpage}},
		order:   &order,
	}
	o := newTestOrchestrator(t, grok, perplexity, gemini, hf)

	env := o.HandleChat(context.Background(), &models.ChatRequest{Message: "Explain how a binary search works please"})
	if env.IsError() {
		t.Fatalf("unexpected error: %+v", env.Failure)
	}
	if env.Status != http.StatusOK || env.Reply.Response != "from hf" || len(env.Reply.Sources) != 1 {
		t.Errorf("envelope = %+v", env.Reply)
	}
	if got := strings.Join(order, ","); got != "grok,perplexity,gemini,huggingface" {
		t.Errorf("call order = %s", got)
	}
}

func TestHandleChat_FirstSuccessStops(t *testing.T) {
	grok := &fakeProvider{name: "grok", reply: "from grok"}
	gemini := &fakeProvider{name: "gemini", reply: "from gemini"}
	o := newTestOrchestrator(t, grok, gemini)

	env := o.HandleChat(context.Background(), &models.ChatRequest{Message: "Explain how a binary search works please"})
	if env.Reply == nil || env.Reply.Response != "from grok" {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Reply.Sources == nil {
		t.Error("sources should be an empty list, not nil")
	}
	if gemini.calls != 0 {
		t.Error("later providers should not be called after a success")
	}
}

func TestHandleChat_AllFail(t *testing.T) {
	o := newTestOrchestrator(t,
		&fakeProvider{name: "grok", err: errors.New("down")},
		&fakeProvider{name: "gemini", err: errors.New("down")},
	)

	env := o.HandleChat(context.Background(), &models.ChatRequest{Message: "Explain how a binary search works please"})
	if !env.IsError() {
		t.Fatal("expected error envelope")
	}
	if env.Status != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want 503", env.Status)
	}
	if env.Failure.Error != UnavailableMessage {
		t.Errorf("Error = %q", env.Failure.Error)
	}
}

func TestHandleChat_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     *models.ChatRequest
		wantMsg string
	}{
		{name: "nil request", req: nil, wantMsg: "message is required"},
		{name: "empty message", req: &models.ChatRequest{}, wantMsg: "message is required"},
		{name: "whitespace message", req: &models.ChatRequest{Message: "   "}, wantMsg: "message is required"},
		{name: "too long", req: &models.ChatRequest{Message: strings.Repeat("a", 8001)}, wantMsg: "at most"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeProvider{name: "grok", reply: "x"}
			o := newTestOrchestrator(t, fake)

			env := o.HandleChat(context.Background(), tt.req)
			if !env.IsError() || env.Status != http.StatusBadRequest {
				t.Fatalf("envelope = %+v", env)
			}
			if !strings.Contains(env.Failure.Error, tt.wantMsg) {
				t.Errorf("Error = %q, want it to contain %q", env.Failure.Error, tt.wantMsg)
			}
			if fake.calls != 0 {
				t.Error("provider should not be called")
			}
		})
	}
}

func TestHandleChat_ScopedCredential(t *testing.T) {
	fake := &fakeProvider{name: "gemini", reply: "ok"}
	o := newTestOrchestrator(t, fake)

	o.HandleChat(context.Background(), &models.ChatRequest{
		Message:     "Explain how a binary search works please",
		Credentials: &models.Credentials{GeminiAPIKey: "user-key"},
	})
	if got := fake.lastReq.CredentialFor("gemini"); got != "user-key" {
		t.Errorf("CredentialFor(gemini) = %q", got)
	}
}

type failingPreferences struct{}

func (failingPreferences) GetLanguage(context.Context, string) (string, error) {
	return "", errors.New("db down")
}

func (failingPreferences) SetLanguage(context.Context, string, string) error {
	return errors.New("db down")
}

func TestHandleChat_PreferenceErrorsAreNotFatal(t *testing.T) {
	fake := &fakeProvider{name: "grok", reply: "ok"}
	o := NewOrchestrator(newTestRegistry(t, fake), failingPreferences{}, nil, testLogger())
	ctx := context.Background()

	env := o.HandleChat(ctx, &models.ChatRequest{Message: "respond in language: German", UserID: "u1", Authenticated: true})
	if env.IsError() || env.Reply.Response != language.SwitchConfirmation("German") {
		t.Fatalf("envelope = %+v", env)
	}

	env = o.HandleChat(ctx, &models.ChatRequest{Message: "What is the weather like today in the city?", UserID: "u1", Authenticated: true})
	if env.IsError() {
		t.Fatalf("unexpected error: %+v", env.Failure)
	}
	if fake.lastReq.Language != "English" {
		t.Errorf("Language = %q, want English fallback", fake.lastReq.Language)
	}
}

func TestCompletion(t *testing.T) {
	fake := &fakeProvider{name: CompletionProvider, reply: "done"}
	c := NewCompletion(newTestRegistry(t, fake), testLogger())
	ctx := context.Background()

	got, err := c.Complete(ctx, &models.OpenAIRequest{Message: "hi"})
	if err != nil || got != "done" {
		t.Fatalf("Complete() = %q, %v", got, err)
	}
	if fake.lastReq.SystemPrompt != providers.CompletionPrompt {
		t.Error("default persona prompt not used")
	}

	if _, err := c.Complete(ctx, &models.OpenAIRequest{Message: "hi", SystemPrompt: "be brief"}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if fake.lastReq.SystemPrompt != "be brief" {
		t.Errorf("SystemPrompt = %q", fake.lastReq.SystemPrompt)
	}

	if _, err := c.Complete(ctx, &models.OpenAIRequest{}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty message error = %v, want ErrValidation", err)
	}

	fake.err = errors.New("boom")
	if _, err := c.Complete(ctx, &models.OpenAIRequest{Message: "hi"}); !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("provider error = %v, want ErrUnavailable", err)
	}
}

func TestMatchOverride_NoFalsePositives(t *testing.T) {
	for _, msg := range []string{"How do I run a marathon?", "Explain recursion", "who are you"} {
		if _, ok := matchOverride(msg); ok {
			t.Errorf("matchOverride(%q) matched", msg)
		}
	}
}
