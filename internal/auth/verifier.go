package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lgc13/gateway-service-example/internal/domain"
	"github.com/lgc13/gateway-service-example/internal/repository"
)

// ErrInvalidCredentials covers both an unknown username and a wrong
// password. Callers must not be able to tell the two apart; the audit log
// may.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialVerifier checks a username/password pair against the user store.
type CredentialVerifier struct {
	users  repository.UserRepository
	logger *zap.Logger
}

// NewCredentialVerifier constructs a verifier.
func NewCredentialVerifier(users repository.UserRepository, logger *zap.Logger) *CredentialVerifier {
	return &CredentialVerifier{users: users, logger: logger}
}

// Verify returns the stored identity when the password matches the record
// for username. Unknown usernames and wrong passwords both return
// ErrInvalidCredentials; store faults are returned wrapped so the caller can
// surface them as unavailability rather than a rejection.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (domain.Identity, error) {
	user, err := v.users.FindByUsername(ctx, username)
	if err != nil {
		if repository.IsNotFound(err) {
			v.audit(username, "unknown username")
			return domain.Identity{}, ErrInvalidCredentials
		}
		v.logger.Error("user lookup failed", zap.String("username", username), zap.Error(err))
		return domain.Identity{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := ComparePassword(user.PasswordHash, password); err != nil {
		v.audit(username, "password mismatch")
		return domain.Identity{}, ErrInvalidCredentials
	}

	v.logger.Info("credentials verified", zap.String("username", username))
	return user.Identity(), nil
}

func (v *CredentialVerifier) audit(username, reason string) {
	v.logger.Info("credentials rejected",
		zap.String("username", username),
		zap.String("reason", reason),
	)
}
