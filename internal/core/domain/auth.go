package domain

import "time"

// AuthMethod records how a request was authenticated
type AuthMethod string

const (
	AuthMethodBasic  AuthMethod = "basic"
	AuthMethodBearer AuthMethod = "bearer"
)

// AuthContext contains authenticated caller info for request context
type AuthContext struct {
	Username string     `json:"username"`
	Method   AuthMethod `json:"method"`
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	Username  string `json:"username"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// TokenResponse is returned when Basic credentials are exchanged for a bearer token
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}
