package main

import (
	"net/http/httptest"
	"testing"
	"time"

	"wisefido-casebook/internal/audit"
	"wisefido-casebook/internal/auth"
	httpapi "wisefido-casebook/internal/http"
	"wisefido-casebook/internal/repository"
	"wisefido-casebook/internal/service"
	"wisefido-casebook/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newInProcessServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	st := repository.NewMemoryStore()
	sessions := auth.NewSessions(
		auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour),
		auth.NewRevocationList(store.NewMemoryKV()),
	)
	authn := httpapi.NewAuthenticator(sessions, "token", logger)

	router := httpapi.NewRouter(logger)
	router.RegisterHealthRoutes()
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(service.NewAuthService(st, hasher, sessions, logger), authn,
		httpapi.CookieConfig{Name: "token"}, logger))
	router.RegisterCaseHistoryRoutes(httpapi.NewCaseHistoryHandler(service.NewCaseHistoryService(st, audit.NopPublisher{}, logger), authn, logger))
	router.RegisterSessionLogRoutes(httpapi.NewSessionLogHandler(service.NewSessionLogService(st, audit.NopPublisher{}, logger), authn, logger))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestScenario_PassesAgainstFreshServer(t *testing.T) {
	srv := newInProcessServer(t)
	run := newScenario(srv.URL, 5*time.Second, "t1", zap.NewNop())
	require.NoError(t, run.Execute())
	assert.Greater(t, run.steps, 15)
}

func TestScenario_PreexistingProviderOwnsCase(t *testing.T) {
	srv := newInProcessServer(t)
	first := newScenario(srv.URL, 5*time.Second, "first", zap.NewNop())
	require.NoError(t, first.Execute())

	// second run: the earliest provider from the first run is assigned
	second := newScenario(srv.URL, 5*time.Second, "second", zap.NewNop())
	require.NoError(t, second.Execute())
	assert.Less(t, second.steps, first.steps)
}

func TestAPIClient_StatusMismatch(t *testing.T) {
	srv := newInProcessServer(t)
	c := newAPIClient("anon", srv.URL, time.Second)
	_, err := c.call("GET", "/auth/me", nil, 200, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNAUTHENTICATED")
}
