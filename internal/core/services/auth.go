package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
	"github.com/custodia-labs/support-rag/internal/core/ports/driving"
)

// DefaultTokenTTL is how long an issued bearer token stays valid
const DefaultTokenTTL = 24 * time.Hour

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService implements the AuthService interface
type authService struct {
	username     string
	passwordHash string
	authAdapter  driven.AuthAdapter
	tokenTTL     time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// AuthServiceConfig holds the configured API credentials.
type AuthServiceConfig struct {
	Username string

	// PasswordHash is produced by AuthAdapter.HashPassword
	PasswordHash string

	AuthAdapter driven.AuthAdapter
	TokenTTL    time.Duration
	Logger      *slog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(cfg AuthServiceConfig) driving.AuthService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &authService{
		username:     cfg.Username,
		passwordHash: cfg.PasswordHash,
		authAdapter:  cfg.AuthAdapter,
		tokenTTL:     ttl,
		now:          time.Now,
		logger:       logger,
	}
}

// ValidateBasic checks a username/password pair against the configured credentials
func (s *authService) ValidateBasic(ctx context.Context, username, password string) (*domain.AuthContext, error) {
	if err := s.checkCredentials(username, password); err != nil {
		return nil, err
	}
	return &domain.AuthContext{Username: username, Method: domain.AuthMethodBasic}, nil
}

// IssueToken exchanges valid credentials for a signed bearer token
func (s *authService) IssueToken(ctx context.Context, username, password string) (*domain.TokenResponse, error) {
	if err := s.checkCredentials(username, password); err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &domain.TokenClaims{
		Username:  username,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}

	token, err := s.authAdapter.GenerateToken(claims)
	if err != nil {
		return nil, err
	}

	s.logger.Info("issued bearer token", "username", username, "expires_at", expiresAt)
	return &domain.TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: time.Unix(expiresAt.Unix(), 0).UTC(),
	}, nil
}

// ValidateToken validates a bearer token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, err
		}
		return nil, domain.ErrTokenInvalid
	}

	if s.now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	// Tokens issued before a credential change are rejected.
	if subtle.ConstantTimeCompare([]byte(claims.Username), []byte(s.username)) != 1 {
		return nil, domain.ErrTokenInvalid
	}

	return &domain.AuthContext{Username: claims.Username, Method: domain.AuthMethodBearer}, nil
}

func (s *authService) checkCredentials(username, password string) error {
	if username == "" || password == "" {
		return domain.ErrInvalidInput
	}
	if s.username == "" || s.passwordHash == "" {
		return domain.ErrUnauthorized
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := s.authAdapter.VerifyPassword(password, s.passwordHash)
	if !userOK || !passOK {
		s.logger.Debug("rejected credentials", "username", username)
		return domain.ErrInvalidCredentials
	}
	return nil
}
