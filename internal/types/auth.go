package types

import "github.com/golang-jwt/jwt/v5"

// Claims are the JWT claims issued to app users.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
