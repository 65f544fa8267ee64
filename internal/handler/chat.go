package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"mrilo/internal/domain"
	"mrilo/internal/domain/models"
	llmSvc "mrilo/internal/domain/services/llm"
	"mrilo/internal/formatting"
	"mrilo/internal/httputil"
)

// ChatHandler serves the chat envelope endpoints.
// Every answer, including failures, uses the {response, sources} / {error} envelope.
type ChatHandler struct {
	chatService       llmSvc.ChatService
	completionService llmSvc.CompletionService
	logger            *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(
	chatService llmSvc.ChatService,
	completionService llmSvc.CompletionService,
	logger *slog.Logger,
) *ChatHandler {
	return &ChatHandler{
		chatService:       chatService,
		completionService: completionService,
		logger:            logger,
	}
}

// Chat answers one message
// POST /chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		h.logger.Debug("invalid chat body", "error", err)
		httputil.WriteEnvelope(w, formatting.ErrorResponse("Invalid request body", http.StatusBadRequest))
		return
	}

	bindCaller(&req, httputil.GetUserID(r))

	httputil.WriteEnvelope(w, h.chatService.HandleChat(r.Context(), &req))
}

// bindCaller replaces any body userId with the verified one. Without a token
// the body id is kept but marked unverified.
func bindCaller(req *models.ChatRequest, verifiedID string) {
	if verifiedID == "" {
		req.Authenticated = false
		return
	}
	req.UserID = verifiedID
	req.Authenticated = true
}

// Preflight answers CORS preflight for the envelope endpoints
// OPTIONS /chat, OPTIONS /openai
func (h *ChatHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	httputil.SetCORSHeaders(w)
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Complete runs a one-shot completion
// POST /openai
func (h *ChatHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req models.OpenAIRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.WriteEnvelope(w, formatting.ErrorResponse("Invalid request body", http.StatusBadRequest))
		return
	}

	text, err := h.completionService.Complete(r.Context(), &req)
	if err != nil {
		status := domain.StatusOf(err)
		message := err.Error()
		var httpErr domain.HTTPError
		if !errors.As(err, &httpErr) {
			message = "An error occurred while processing your request"
		}
		httputil.WriteEnvelope(w, formatting.ErrorResponse(message, status))
		return
	}

	httputil.WriteEnvelope(w, formatting.CustomResponse(text, nil))
}
