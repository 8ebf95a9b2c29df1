package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/adeilh/gallery/auth"
)

// RequestObserver receives one observation per served request.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, d time.Duration)
}

// AuthMiddleware runs mw in front of the echo chain. Requests rejected by mw
// never reach next.
func AuthMiddleware(mw *auth.Middleware) MiddlewareFunc {
	if mw == nil {
		return func(next HandlerFunc) HandlerFunc {
			return func(c Context) error {
				return HTTPError(StatusUnauthorized, "auth middleware missing")
			}
		}
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			var nextErr error
			downstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c.SetRequest(r)
				nextErr = next(c)
			})
			mw.Handler(downstream).ServeHTTP(c.Response(), c.Request())
			return nextErr
		}
	}
}

// RequireRole rejects requests whose identity lacks role with 403 and a
// body naming the role. The route handler is not invoked.
func RequireRole(role string) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			if err := auth.Authorize(c.Request().Context(), role); err != nil {
				var missing *auth.MissingRoleError
				if errors.As(err, &missing) {
					return HTTPError(StatusForbidden, missing.Error())
				}
				return HTTPError(StatusForbidden, err.Error())
			}
			return next(c)
		}
	}
}

// RequestLogger attaches a request-scoped zerolog logger to the request
// context and logs one line per request. obs may be nil.
func RequestLogger(obs RequestObserver) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			start := time.Now()
			req := c.Request()
			rid := req.Header.Get("X-Request-ID")
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set("X-Request-ID", rid)

			logger := log.With().
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", c.RealIP()).
				Logger()
			c.SetRequest(req.WithContext(logger.WithContext(req.Context())))

			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status below is final.
				c.Error(err)
			}

			status := c.Response().Status
			duration := time.Since(start)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			if obs != nil {
				obs.ObserveRequest(req.Method, route, status, duration)
			}

			if status >= 500 {
				logger.Error().Err(err).Int("status", status).Dur("duration", duration).Msg("http request failed")
			} else {
				logger.Info().Int("status", status).Dur("duration", duration).Msg("http request served")
			}
			return nil
		}
	}
}
