package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adeilh/gallery/api"
	"github.com/adeilh/gallery/auth"
	cachememory "github.com/adeilh/gallery/cache/memory"
	"github.com/adeilh/gallery/config"
	docmemory "github.com/adeilh/gallery/db/memory"
)

func TestNewAuthenticatorMock(t *testing.T) {
	authn, err := newAuthenticator(config.Auth{Mode: config.AuthMock, UserID: "u-1", Roles: []string{auth.RoleConsumer}})
	require.NoError(t, err)

	id, err := authn.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.ID)
	assert.True(t, id.HasRole(auth.RoleConsumer))
}

func TestNewAuthenticatorJWT(t *testing.T) {
	_, err := newAuthenticator(config.Auth{Mode: config.AuthJWT, Secret: "short"})
	require.ErrorIs(t, err, auth.ErrJWTWeakSigningKey)

	authn, err := newAuthenticator(config.Auth{Mode: config.AuthJWT, Secret: strings.Repeat("k", 32)})
	require.NoError(t, err)
	_, err = authn.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, auth.ErrTokenNotFound)
}

func TestOpenLocalBackends(t *testing.T) {
	ctx := context.Background()
	var cleanup closers
	health := map[string]api.HealthCheck{}

	docs, err := openDocuments(ctx, config.Documents{Backend: config.BackendMemory}, &cleanup, health)
	require.NoError(t, err)
	assert.IsType(t, &docmemory.Store{}, docs)

	store, err := openCache(ctx, config.Cache{Backend: config.BackendMemory}, &cleanup, health)
	require.NoError(t, err)
	assert.IsType(t, &cachememory.Store{}, store)

	dir := filepath.Join(t.TempDir(), "uploads")
	cfg := config.Config{Port: 3000, Blobs: config.Blobs{Backend: config.BackendFS, UploadDir: dir}}
	blobs, served, err := openBlobs(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, dir, served)

	url, err := blobs.Put(ctx, "1-a.jpg", "image/jpeg", []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/uploads/1-a.jpg", url)

	assert.Empty(t, cleanup)
	assert.Empty(t, health)
}

func TestClosersRunInReverse(t *testing.T) {
	var order []int
	var c closers
	c.add(func(context.Context) error { order = append(order, 1); return nil })
	c.add(func(context.Context) error { order = append(order, 2); return assert.AnError })
	c.close(0)
	assert.Equal(t, []int{2, 1}, order)
}
