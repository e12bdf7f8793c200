package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the authenticated principal issued by the platform's auth
// service. This engine only validates tokens; it never issues them.
type JWTClaims struct {
	UserID         string   `json:"user_id"`
	OrganizationID string   `json:"organization_id"`
	Role           UserRole `json:"role"`
	jwt.RegisteredClaims
}
