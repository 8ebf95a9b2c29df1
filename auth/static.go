package auth

import (
	"net/http"
	"slices"
)

// StaticAuthenticator authenticates every request as the same identity.
// It stands in for a real identity provider during development and tests.
type StaticAuthenticator struct {
	identity Identity
}

func NewStaticAuthenticator(id Identity) *StaticAuthenticator {
	id.Roles = slices.Clone(id.Roles)
	return &StaticAuthenticator{identity: id}
}

func (a *StaticAuthenticator) Authenticate(*http.Request) (Identity, error) {
	id := a.identity
	id.Roles = slices.Clone(id.Roles)
	return id, nil
}
