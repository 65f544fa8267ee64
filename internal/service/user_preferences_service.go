package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"mrilo/internal/domain"
	"mrilo/internal/domain/models"
	"mrilo/internal/domain/repositories"
	"mrilo/internal/language"
)

// UserPreferencesService implements the UserPreferencesService interface.
// It also serves as the orchestrator's durable language preference store.
type UserPreferencesService struct {
	prefsRepo repositories.UserPreferencesRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewUserPreferencesService creates a new user preferences service
func NewUserPreferencesService(
	prefsRepo repositories.UserPreferencesRepository,
	logger *slog.Logger,
) *UserPreferencesService {
	return &UserPreferencesService{
		prefsRepo: prefsRepo,
		logger:    logger,
		now:       time.Now,
	}
}

// getDefaultPreferences returns default preferences with namespaced structure
func (s *UserPreferencesService) getDefaultPreferences(userID string) *models.UserPreferences {
	now := s.now()
	return &models.UserPreferences{
		UserID: userID,
		Preferences: models.JSONMap{
			"language": nil,
			"ui": map[string]interface{}{
				"theme": "light",
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GetPreferences retrieves preferences for a user
func (s *UserPreferencesService) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	prefs, err := s.prefsRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	// If no preferences exist yet, return default/empty preferences
	if prefs == nil {
		s.logger.Debug("no preferences found, returning defaults", "user_id", userID)
		prefs = s.getDefaultPreferences(userID)
	}

	return prefs, nil
}

// UpdatePreferences updates user preferences (partial or full update)
func (s *UserPreferencesService) UpdatePreferences(ctx context.Context, userID string, req *models.UpdatePreferencesRequest) (*models.UserPreferences, error) {
	if err := validateUpdatePreferences(req); err != nil {
		return nil, err
	}

	existing, err := s.prefsRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get existing preferences: %w", err)
	}
	if existing == nil {
		existing = s.getDefaultPreferences(userID)
	}

	// Tri-state: only update if field was present in request
	if req.Language.Present {
		lang := ""
		if req.Language.Value != nil {
			lang = language.Normalize(*req.Language.Value)
		}
		existing.SetLanguage(lang)
	}
	if req.UI != nil {
		existing.SetUI(req.UI)
	}

	existing.UpdatedAt = s.now()
	if err := s.prefsRepo.Upsert(ctx, existing); err != nil {
		return nil, fmt.Errorf("upsert preferences: %w", err)
	}

	s.logger.Info("user preferences updated",
		"user_id", userID,
		"has_language", req.Language.Present,
		"has_ui", req.UI != nil,
	)

	return existing, nil
}

// GetLanguage returns the stored reply language, or "" if none is stored
func (s *UserPreferencesService) GetLanguage(ctx context.Context, userID string) (string, error) {
	prefs, err := s.prefsRepo.GetByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get language: %w", err)
	}
	return prefs.Language(), nil
}

// SetLanguage stores a supported language name for userID
func (s *UserPreferencesService) SetLanguage(ctx context.Context, userID, lang string) error {
	_, err := s.UpdatePreferences(ctx, userID, &models.UpdatePreferencesRequest{
		Language: models.OptionalLanguage{Present: true, Value: &lang},
	})
	return err
}

func validateUpdatePreferences(req *models.UpdatePreferencesRequest) error {
	if req.Language.Present && req.Language.Value != nil {
		name := language.Normalize(*req.Language.Value)
		if !language.IsSupported(name) {
			return fmt.Errorf("%w: language: must be one of %s", domain.ErrValidation, language.SupportedList())
		}
	}
	if req.UI != nil {
		err := validation.ValidateStruct(req.UI,
			validation.Field(&req.UI.Theme, validation.Required, validation.In("light", "dark", "auto")),
		)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	}
	return nil
}
