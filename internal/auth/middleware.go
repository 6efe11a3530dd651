package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/lgc13/gateway-service-example/internal/domain"
	"github.com/lgc13/gateway-service-example/internal/repository"
	apperrors "github.com/lgc13/gateway-service-example/pkg/util"
)

const principalKey = "auth_principal"

// Middleware validates bearer tokens and loads the authenticated principal
// before the gateway forwards a request anywhere.
type Middleware struct {
	tokens *TokenManager
	users  repository.UserRepository
	logger *zap.Logger
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, users repository.UserRepository, logger *zap.Logger) *Middleware {
	return &Middleware{tokens: tokens, users: users, logger: logger}
}

// Handle enforces authentication for protected routes. The token's subject
// is re-checked against the store so a token for a since-deleted account
// stops working even before it expires.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("TOKEN_MISSING", "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("TOKEN_MISSING", "invalid authorization header")
	}
	tokenStr := parts[1]

	subject, err := m.tokens.Subject(tokenStr)
	if err != nil {
		return m.reject(c, err)
	}

	user, err := m.users.FindByUsername(c.UserContext(), subject)
	if err != nil {
		if repository.IsNotFound(err) {
			m.logger.Info("token rejected", zap.String("subject", subject), zap.String("reason", "unknown subject"))
			return apperrors.NewUnauthorized("SUBJECT_MISMATCH", "invalid token")
		}
		m.logger.Error("principal lookup failed", zap.String("subject", subject), zap.Error(err))
		return apperrors.NewUnavailable(err)
	}

	claims, err := m.tokens.Validate(tokenStr, user.Username)
	if err != nil {
		return m.reject(c, err)
	}

	identity := domain.Identity{Username: claims.Subject, Roles: claims.Roles}
	c.Locals(principalKey, identity)
	return c.Next()
}

func (m *Middleware) reject(c *fiber.Ctx, err error) error {
	m.logger.Info("token rejected", zap.String("path", c.Path()), zap.String("reason", err.Error()))

	switch {
	case errors.Is(err, ErrTokenExpired):
		return apperrors.NewUnauthorized("TOKEN_EXPIRED", "token expired")
	case errors.Is(err, ErrSubjectMismatch):
		return apperrors.NewUnauthorized("SUBJECT_MISMATCH", "invalid token")
	default:
		return apperrors.NewUnauthorized("TOKEN_MALFORMED", "invalid token")
	}
}

// PrincipalFromContext retrieves the authenticated identity.
func PrincipalFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return domain.Identity{}, false
	}
	identity, ok := val.(domain.Identity)
	return identity, ok
}
