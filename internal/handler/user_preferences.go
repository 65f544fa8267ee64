package handler

import (
	"log/slog"
	"net/http"

	"mrilo/internal/domain/models"
	"mrilo/internal/domain/services"
	"mrilo/internal/httputil"
)

// UserPreferencesHandler handles user preferences HTTP requests
type UserPreferencesHandler struct {
	service services.UserPreferencesService
	logger  *slog.Logger
}

// NewUserPreferencesHandler creates a new user preferences handler
func NewUserPreferencesHandler(service services.UserPreferencesService, logger *slog.Logger) *UserPreferencesHandler {
	return &UserPreferencesHandler{
		service: service,
		logger:  logger,
	}
}

// updatePreferencesBody maps the PATCH body onto the tri-state request
type updatePreferencesBody struct {
	Language httputil.OptionalString `json:"language"`
	UI       *models.UIPreferences   `json:"ui"`
}

// GetPreferences retrieves user preferences
// GET /api/users/me/preferences
func (h *UserPreferencesHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	prefs, err := h.service.GetPreferences(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, prefs)
}

// UpdatePreferences updates user preferences
// PATCH /api/users/me/preferences
func (h *UserPreferencesHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body updatePreferencesBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	prefs, err := h.service.UpdatePreferences(r.Context(), userID, &models.UpdatePreferencesRequest{
		Language: models.OptionalLanguage{Present: body.Language.Present, Value: body.Language.Value},
		UI:       body.UI,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, prefs)
}
