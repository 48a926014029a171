package context

import (
	"context"
	"net/http"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
)

type contextKey string

const (
	authenticatedDriverContextKey = contextKey("authenticatedDriver")
)

func ContextSetAuthenticatedDriver(r *http.Request, driver *models.Driver) *http.Request {
	ctx := context.WithValue(r.Context(), authenticatedDriverContextKey, driver)
	return r.WithContext(ctx)
}

func ContextGetAuthenticatedDriver(r *http.Request) *models.Driver {
	driver, ok := r.Context().Value(authenticatedDriverContextKey).(*models.Driver)
	if !ok {
		return nil
	}

	return driver
}
