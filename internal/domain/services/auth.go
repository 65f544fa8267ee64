package services

import "context"

// ResourceAuthorizer checks if a user can access resources.
// Services call the authorizer before operating on a resource by id.
type ResourceAuthorizer interface {
	// CanAccessChat checks if user owns a chat. A chat that does not exist yet
	// is accessible so that it can be created.
	CanAccessChat(ctx context.Context, userID, chatID string) error
}
