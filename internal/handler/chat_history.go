package handler

import (
	"log/slog"
	"net/http"
	"time"

	"mrilo/internal/domain/models"
	"mrilo/internal/domain/services"
	"mrilo/internal/httputil"
)

// ChatHistoryHandler serves the remote chat table
type ChatHistoryHandler struct {
	service services.ChatHistoryService
	logger  *slog.Logger
}

// NewChatHistoryHandler creates a new chat history handler
func NewChatHistoryHandler(service services.ChatHistoryService, logger *slog.Logger) *ChatHistoryHandler {
	return &ChatHistoryHandler{
		service: service,
		logger:  logger,
	}
}

// saveChatBody is the wire form of PUT /api/chats/{id}
type saveChatBody struct {
	Title     string           `json:"title"`
	Messages  []models.Message `json:"messages"`
	CreatedAt *time.Time       `json:"created_at"`
}

// updateChatBody is the wire form of PATCH /api/chats/{id}
type updateChatBody struct {
	Title      *string                 `json:"title"`
	IsFavorite *bool                   `json:"is_favorite"`
	FolderID   httputil.OptionalString `json:"folder_id"`
}

// ListChats returns the caller's chats
// GET /api/chats
func (h *ChatHistoryHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	chats, err := h.service.ListChats(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chats)
}

// SaveChat upserts a chat
// PUT /api/chats/{id}
func (h *ChatHistoryHandler) SaveChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body saveChatBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req := &models.SaveChatRequest{
		ID:       r.PathValue("id"),
		Title:    body.Title,
		Messages: body.Messages,
	}
	if body.CreatedAt != nil {
		req.CreatedAt = *body.CreatedAt
	}

	chat, err := h.service.SaveChat(r.Context(), userID, req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chat)
}

// UpdateChat patches title, folder or favorite
// PATCH /api/chats/{id}
func (h *ChatHistoryHandler) UpdateChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body updateChatBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	chat, err := h.service.UpdateChat(r.Context(), userID, r.PathValue("id"), &models.UpdateChatRequest{
		Title:      body.Title,
		IsFavorite: body.IsFavorite,
		Folder: models.OptionalFolder{
			Present: body.FolderID.Present,
			Value:   body.FolderID.Value,
		},
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chat)
}

// DeleteChat hard deletes a chat
// DELETE /api/chats/{id}
func (h *ChatHistoryHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteChat(r.Context(), userID, r.PathValue("id")); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
