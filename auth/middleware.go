package auth

import (
	"errors"
	"net/http"
)

type Middleware struct {
	authenticator  Authenticator
	skipper        MiddlewareSkipper
	errorHandler   MiddlewareErrorHandler
	allowAnonymous bool
}

func NewMiddleware(authn Authenticator, opts ...MiddlewareOption) (*Middleware, error) {
	cfg, err := newMiddlewareConfig(authn, opts...)
	if err != nil {
		return nil, err
	}
	return &Middleware{
		authenticator:  cfg.authenticator,
		skipper:        cfg.skipper,
		errorHandler:   cfg.errorHandler,
		allowAnonymous: cfg.allowAnonymous,
	}, nil
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	if m == nil {
		panic("auth: middleware is nil")
	}
	if next == nil {
		next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		id, err := m.authenticator.Authenticate(r)
		if err != nil {
			if m.allowAnonymous && errors.Is(err, ErrTokenNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			m.errorHandler(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
