package services

import (
	"context"

	"mrilo/internal/domain/models"
)

// UserPreferencesService defines the business logic for user preferences operations
type UserPreferencesService interface {
	// GetPreferences retrieves preferences for a user
	// Returns default/empty preferences if none exist yet
	GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error)

	// UpdatePreferences applies a partial update, creating preferences if needed
	UpdatePreferences(ctx context.Context, userID string, req *models.UpdatePreferencesRequest) (*models.UserPreferences, error)
}
