package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/config"
	internalContext "github.com/jamesdouglasskirk96/Nerava-sub005/internal/context"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"

	"github.com/stretchr/testify/require"
)

func newTestMiddleware(t *testing.T, adminEmails []string) *Middleware {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	errH := errHandler.New("", "http://localhost", nil, logger)

	cfg := &config.Config{BaseURL: "http://localhost"}
	cfg.Admin.Emails = adminEmails

	return New(errH, logger, nil, cfg, nil)
}

func adminTestRequest(driver *models.Driver) *http.Request {
	req := httptest.NewRequest("POST", "/v1/nova/grants", nil)
	if driver == nil {
		return req
	}
	return internalContext.ContextSetAuthenticatedDriver(req, driver)
}

func TestRequireAdmin_AllowsListedOperator(t *testing.T) {
	mid := newTestMiddleware(t, []string{"ops@nerava.app"})

	called := false
	next := func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}

	rr := httptest.NewRecorder()
	mid.RequireAdmin(next).ServeHTTP(rr, adminTestRequest(&models.Driver{
		ID:    "driver-1",
		Email: "Ops@Nerava.app",
	}))

	require.True(t, called)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireAdmin_ForbidsRegularDriver(t *testing.T) {
	mid := newTestMiddleware(t, []string{"ops@nerava.app"})

	called := false
	next := func(w http.ResponseWriter, r *http.Request) {
		called = true
	}

	rr := httptest.NewRecorder()
	mid.RequireAdmin(next).ServeHTTP(rr, adminTestRequest(&models.Driver{
		ID:    "driver-2",
		Email: "driver@example.com",
	}))

	require.False(t, called)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireAdmin_RequiresAuthentication(t *testing.T) {
	mid := newTestMiddleware(t, []string{"ops@nerava.app"})

	rr := httptest.NewRecorder()
	mid.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {}).ServeHTTP(rr, adminTestRequest(nil))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
