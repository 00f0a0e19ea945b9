package driving

import (
	"context"

	"github.com/custodia-labs/support-rag/internal/core/domain"
)

// AuthService authenticates API callers
type AuthService interface {
	// ValidateBasic checks a username/password pair
	ValidateBasic(ctx context.Context, username, password string) (*domain.AuthContext, error)

	// IssueToken exchanges valid credentials for a signed bearer token
	IssueToken(ctx context.Context, username, password string) (*domain.TokenResponse, error)

	// ValidateToken validates a bearer token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
