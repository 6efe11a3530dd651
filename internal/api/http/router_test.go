package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lgc13/gateway-service-example/internal/api/dto"
	"github.com/lgc13/gateway-service-example/internal/api/http/handlers"
	"github.com/lgc13/gateway-service-example/internal/auth"
	"github.com/lgc13/gateway-service-example/internal/config"
	"github.com/lgc13/gateway-service-example/internal/domain"
	"github.com/lgc13/gateway-service-example/internal/observability"
	"github.com/lgc13/gateway-service-example/internal/persistence"
	"github.com/lgc13/gateway-service-example/internal/service"
)

const gatewaySecret = "router-test-secret"

type memoryUserRepo struct {
	users map[string]*domain.User
}

func (m *memoryUserRepo) Create(_ context.Context, user *domain.User) error {
	m.users[user.Username] = user
	return nil
}

func (m *memoryUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	user, ok := m.users[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

type gatewayOptions struct {
	upstreamURL  string
	limiter      *auth.LoginLimiter
	maxAttempts  int
	redisClient  *redis.Client
	attemptLimit time.Duration
}

func newTestGateway(t *testing.T, opts gatewayOptions) (*fiber.App, *memoryUserRepo) {
	t.Helper()

	logger := zap.NewNop()
	repo := &memoryUserRepo{users: map[string]*domain.User{}}

	hash, err := auth.HashPassword("correct", bcrypt.MinCost)
	require.NoError(t, err)
	repo.users["alice"] = &domain.User{
		ID:           "id-alice",
		Username:     "alice",
		PasswordHash: hash,
		Roles:        []string{domain.DefaultMembership},
	}

	tokens := auth.NewTokenManager(gatewaySecret, time.Hour)
	limiter := opts.limiter
	if limiter == nil {
		window := opts.attemptLimit
		if window == 0 {
			window = time.Minute
		}
		limiter = auth.NewLoginLimiter(opts.redisClient, opts.maxAttempts, window, logger)
	}

	authService := service.NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, service.Dependencies{
		UserRepo: repo,
		Verifier: auth.NewCredentialVerifier(repo, logger),
		Tokens:   tokens,
		Limiter:  limiter,
	}, logger)

	app := fiber.New()
	RegisterMiddlewares(app, logger, observability.NewMetrics(), "*", 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("gateway-service", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(authService),
		Proxy:          handlers.NewProxyHandler(opts.upstreamURL, logger),
		AuthMiddleware: auth.NewMiddleware(tokens, repo, logger),
	})
	return app, repo
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func loginToken(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()

	resp := postJSON(t, app, "/authenticate", dto.AuthenticationRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var authResp dto.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&authResp))
	require.NotEmpty(t, authResp.Token)
	return authResp.Token
}

func TestAuthenticateReturnsToken(t *testing.T) {
	app, _ := newTestGateway(t, gatewayOptions{})

	resp := postJSON(t, app, "/authenticate", dto.AuthenticationRequest{Username: "alice", Password: "correct"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var authResp dto.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&authResp))
	assert.NotEmpty(t, authResp.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), authResp.ExpiresAt, time.Minute)
}

func TestAuthenticateRejectsBadCredentialsWithGenericMessage(t *testing.T) {
	app, _ := newTestGateway(t, gatewayOptions{})

	for _, req := range []dto.AuthenticationRequest{
		{Username: "alice", Password: "wrong"},
		{Username: "mallory", Password: "correct"},
	} {
		resp := postJSON(t, app, "/authenticate", req)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "invalid username or password")
		assert.NotContains(t, string(body), "wrong")
		assert.NotContains(t, string(body), req.Password)
	}
}

func TestAuthenticateRejectsMissingFields(t *testing.T) {
	app, _ := newTestGateway(t, gatewayOptions{})

	resp := postJSON(t, app, "/authenticate", dto.AuthenticationRequest{Username: "alice"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthenticateBlocksAfterRepeatedFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	app, _ := newTestGateway(t, gatewayOptions{redisClient: client, maxAttempts: 2})

	for i := 0; i < 2; i++ {
		resp := postJSON(t, app, "/authenticate", dto.AuthenticationRequest{Username: "alice", Password: "wrong"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	// Even the correct password is rejected while the lockout lasts.
	resp := postJSON(t, app, "/authenticate", dto.AuthenticationRequest{Username: "alice", Password: "correct"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestCreateUserThenAuthenticate(t *testing.T) {
	app, repo := newTestGateway(t, gatewayOptions{})

	resp := postJSON(t, app, "/users", dto.AuthenticationRequest{Username: "bob", Password: "hunter2"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var userResp dto.UserResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&userResp))
	assert.Equal(t, "bob", userResp.Username)
	assert.Equal(t, []string{domain.DefaultMembership}, userResp.Roles)
	assert.NotEqual(t, "hunter2", repo.users["bob"].PasswordHash)

	token := loginToken(t, app, "bob", "hunter2")
	assert.NotEmpty(t, token)
}

func TestCreateUserRejectsDuplicate(t *testing.T) {
	app, _ := newTestGateway(t, gatewayOptions{})

	resp := postJSON(t, app, "/users", dto.AuthenticationRequest{Username: "alice", Password: "other"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestProtectedRouteForwardsWithValidToken(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("backend says hi from " + r.URL.Path))
	}))
	t.Cleanup(upstream.Close)

	app, _ := newTestGateway(t, gatewayOptions{upstreamURL: upstream.URL})
	token := loginToken(t, app, "alice", "correct")

	req := httptest.NewRequest(http.MethodGet, "/api/dogs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "backend says hi from /dogs", string(body))
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	app, _ := newTestGateway(t, gatewayOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/dogs", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRouteRejectsGarbageToken(t *testing.T) {
	app, _ := newTestGateway(t, gatewayOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/dogs", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "TOKEN_MALFORMED")
}

func TestProtectedRouteRejectsExpiredToken(t *testing.T) {
	app, _ := newTestGateway(t, gatewayOptions{})

	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-11 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(gatewaySecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/dogs", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "TOKEN_EXPIRED")
}

func TestProtectedRouteRejectsUnknownSubject(t *testing.T) {
	app, _ := newTestGateway(t, gatewayOptions{})

	// Signed with the right key, but for an account the store has never
	// heard of.
	ghost, _, err := auth.NewTokenManager(gatewaySecret, time.Hour).Issue(domain.Identity{Username: "ghost"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/dogs", nil)
	req.Header.Set("Authorization", "Bearer "+ghost)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "SUBJECT_MISMATCH")
}

func TestSmokeRoute(t *testing.T) {
	app, _ := newTestGateway(t, gatewayOptions{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/lucas", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hi lucas", string(body))
}

func TestHealthLive(t *testing.T) {
	app, _ := newTestGateway(t, gatewayOptions{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
