package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lgc13/gateway-service-example/internal/auth"
	"github.com/lgc13/gateway-service-example/internal/config"
	"github.com/lgc13/gateway-service-example/internal/domain"
	"github.com/lgc13/gateway-service-example/internal/repository"
	apperrors "github.com/lgc13/gateway-service-example/pkg/util"
)

// AuthService orchestrates credential verification and token issuance: one
// login attempt in, either a signed token or a tagged rejection out.
type AuthService struct {
	users      repository.UserRepository
	verifier   *auth.CredentialVerifier
	tokens     *auth.TokenManager
	limiter    *auth.LoginLimiter
	bcryptCost int
	logger     *zap.Logger
}

// Dependencies bundles the collaborators the auth service is built from.
type Dependencies struct {
	UserRepo repository.UserRepository
	Verifier *auth.CredentialVerifier
	Tokens   *auth.TokenManager
	Limiter  *auth.LoginLimiter
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps Dependencies, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		verifier:   deps.Verifier,
		tokens:     deps.Tokens,
		limiter:    deps.Limiter,
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// Authenticate turns a username/password pair into a signed bearer token.
// Bad credentials come back as the generic invalid-credentials rejection;
// any store fault comes back as unavailable so callers can tell "wrong
// password" from "system down".
func (s *AuthService) Authenticate(ctx context.Context, username, password, clientIP string) (string, time.Time, error) {
	if !s.limiter.Allow(ctx, username, clientIP) {
		s.logger.Info("authentication blocked", zap.String("username", username), zap.String("client_ip", clientIP))
		return "", time.Time{}, apperrors.NewTooManyAttempts()
	}

	identity, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.limiter.RecordFailure(ctx, username, clientIP)
			s.logger.Info("authentication failed",
				zap.String("username", username),
				zap.String("reason", "invalid credentials"),
			)
			return "", time.Time{}, apperrors.NewInvalidCredentials()
		}
		return "", time.Time{}, apperrors.NewUnavailable(err)
	}

	token, expiresAt, err := s.tokens.Issue(identity)
	if err != nil {
		s.logger.Error("token issuance failed", zap.String("username", username), zap.Error(err))
		return "", time.Time{}, apperrors.NewUnavailable(err)
	}

	s.limiter.Reset(ctx, username, clientIP)
	s.logger.Info("authentication succeeded", zap.String("username", username))
	return token, expiresAt, nil
}

// CreateUser registers a new account with the default membership tag.
func (s *AuthService) CreateUser(ctx context.Context, username, password string) (*domain.User, error) {
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, apperrors.NewConflict("username already taken")
	} else if !repository.IsNotFound(err) {
		return nil, apperrors.NewUnavailable(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Roles:        []string{domain.DefaultMembership},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.NewUnavailable(err)
	}

	s.logger.Info("user created", zap.String("username", user.Username))
	return user, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}
