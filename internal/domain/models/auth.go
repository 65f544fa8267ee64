package models

import "github.com/golang-jwt/jwt/v5"

// SupabaseClaims are the access token claims the API relies on.
// Unknown claims are ignored.
type SupabaseClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	Role        string `json:"role"` // "authenticated" or "anon"
	IsAnonymous bool   `json:"is_anonymous"`
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *SupabaseClaims) GetUserID() string {
	return c.Subject
}
