package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/config"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/context"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/ratelimit"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/response"

	"github.com/pascaldekloe/jwt"
	"github.com/tomasen/realip"
)

type Middleware struct {
	errHandler *errHandler.ErrorRepository
	logger     *slog.Logger
	DriverRepo repository.DriverRepository
	config     *config.Config
	limiter    *ratelimit.Limiter
}

func New(errHandler *errHandler.ErrorRepository, logger *slog.Logger, driverRepo repository.DriverRepository, config *config.Config, limiter *ratelimit.Limiter) *Middleware {
	return &Middleware{
		errHandler: errHandler,
		logger:     logger,
		DriverRepo: driverRepo,
		config:     config,
		limiter:    limiter,
	}
}

func (mid *Middleware) RecoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err != nil {
				mid.errHandler.ServerError(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (mid *Middleware) LogAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mw := response.NewMetricsResponseWriter(w)
		next.ServeHTTP(mw, r)

		var (
			ip     = realip.FromRequest(r)
			method = r.Method
			url    = r.URL.String()
			proto  = r.Proto
		)

		userAttrs := slog.Group("user", "ip", ip)
		requestAttrs := slog.Group("request", "method", method, "url", url, "proto", proto)
		responseAttrs := slog.Group("response", "status", mw.StatusCode, "size", mw.BytesCount)

		mid.logger.Info("access", userAttrs, requestAttrs, responseAttrs)
	})
}

// RateLimit sheds requests per client IP. The bucket map lives in this
// process only; each instance enforces its own budget.
func (mid *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mid.config.RateLimit.Enabled {
			ip := realip.FromRequest(r)
			if !mid.limiter.Allow(ip) {
				mid.errHandler.TooManyRequests(w, r)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (mid *Middleware) Authenticate(next http.Handler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Authorization")

		authorizationHeader := r.Header.Get("Authorization")

		if authorizationHeader != "" {
			headerParts := strings.Split(authorizationHeader, " ")

			if len(headerParts) == 2 && headerParts[0] == "Bearer" {
				token := headerParts[1]

				claims, err := jwt.HMACCheck([]byte(token), []byte(mid.config.Jwt.SecretKey))
				if err != nil {
					mid.errHandler.InvalidAuthenticationToken(w, r)
					return
				}

				if !claims.Valid(time.Now()) {
					mid.errHandler.InvalidAuthenticationToken(w, r)
					return
				}

				if claims.Issuer != mid.config.BaseURL {
					mid.errHandler.InvalidAuthenticationToken(w, r)
					return
				}

				if !claims.AcceptAudience(mid.config.BaseURL) {
					mid.errHandler.InvalidAuthenticationToken(w, r)
					return
				}

				driverID := claims.Subject

				driver, found, err := mid.DriverRepo.GetOne(driverID)
				if err != nil {
					mid.errHandler.ServerError(w, r, err)
					return
				}

				if found {
					r = context.ContextSetAuthenticatedDriver(r, driver)
				}
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (mid *Middleware) RequireAuthenticatedDriver(next http.HandlerFunc) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authenticatedDriver := context.ContextGetAuthenticatedDriver(r)

		if authenticatedDriver == nil {
			mid.errHandler.AuthenticationRequired(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAdmin restricts a route to the operator accounts listed in
// ADMIN_EMAILS. Grants and wallet administration stay off limits to
// regular drivers.
func (mid *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return mid.RequireAuthenticatedDriver(func(w http.ResponseWriter, r *http.Request) {
		authenticatedDriver := context.ContextGetAuthenticatedDriver(r)

		for _, email := range mid.config.Admin.Emails {
			if strings.EqualFold(strings.TrimSpace(email), authenticatedDriver.Email) {
				next.ServeHTTP(w, r)
				return
			}
		}

		mid.errHandler.Forbidden(w, r)
	})
}
