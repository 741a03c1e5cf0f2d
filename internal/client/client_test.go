// ABOUTME: Tests for the gateway HTTP client against an in-process gateway
// ABOUTME: Covers authenticate, enroll, sessions, and error unwrapping

package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/sigil/internal/auth"
	"github.com/2389/sigil/internal/config"
	"github.com/2389/sigil/internal/gateway"
	"github.com/2389/sigil/internal/lattice"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Client {
	t.Helper()

	cfg := config.Default()
	cfg.Scheme.Name = lattice.SchemeToy
	cfg.Scheme.Toy.Q = 23
	cfg.Scheme.Toy.N = 2
	cfg.Scheme.Toy.Matrix = [][]int64{{3, 5}, {7, 2}}
	cfg.Auth.JWTSecret = "client-test-secret-32-bytes!!!!!"
	for _, fn := range mutate {
		fn(cfg)
	}

	gw, err := gateway.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = gw.Shutdown(context.Background())
	})
	return New(srv.URL+"/", srv.Client())
}

func TestClient_RegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t)

	info, err := c.Scheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, lattice.SchemeToy, info.Name)
	require.NotNil(t, info.Toy)

	reg, err := c.Register(ctx, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, reg.SecretKey)

	key, err := KeyFromRegistration(reg, info)
	require.NoError(t, err)

	session, err := c.Authenticate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "login successful", session.Message)
	assert.Equal(t, "alice", session.PrincipalID)
	require.NotEmpty(t, session.Token)

	who, err := c.Session(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", who.PrincipalID)

	require.NoError(t, c.Logout(ctx, session.Token))

	_, err = c.Session(ctx, session.Token)
	assert.True(t, errors.Is(err, auth.ErrSessionRevoked), "got %v", err)
}

func TestClient_EnrollLocalKey(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t, func(cfg *config.Config) { cfg.Scheme.Name = lattice.SchemeDilithium2 })

	info, err := c.Scheme(ctx)
	require.NoError(t, err)
	assert.Nil(t, info.Toy)

	key, err := GenerateKey("bob", info)
	require.NoError(t, err)

	reg, err := c.Enroll(ctx, key.PrincipalID, key.PublicKey)
	require.NoError(t, err)
	assert.Empty(t, reg.SecretKey)
	assert.Equal(t, key.Fingerprint, reg.Fingerprint)

	_, err = c.Authenticate(ctx, key)
	require.NoError(t, err)

	got, err := c.Principal(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey, got.PublicKey)

	all, err := c.Principals(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "bob", all[0].PrincipalID)
}

func TestClient_ErrorsUnwrap(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t)

	_, err := c.Challenge(ctx, "nobody")
	assert.True(t, errors.Is(err, auth.ErrPrincipalNotFound), "got %v", err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, err = c.Register(ctx, "alice")
	require.NoError(t, err)
	_, err = c.Register(ctx, "alice")
	assert.True(t, errors.Is(err, auth.ErrPrincipalAlreadyExists), "got %v", err)

	_, err = c.Register(ctx, "bad id!")
	assert.True(t, errors.Is(err, auth.ErrInvalidInput), "got %v", err)

	_, err = c.Login(ctx, "alice", []byte{1, 2, 3})
	assert.True(t, errors.Is(err, auth.ErrNoOutstandingChallenge), "got %v", err)

	_, err = c.Challenge(ctx, "alice")
	require.NoError(t, err)
	_, err = c.Login(ctx, "alice", []byte{9, 9, 9})
	assert.True(t, errors.Is(err, auth.ErrInvalidSignature), "got %v", err)

	_, err = c.Session(ctx, "not-a-token")
	assert.True(t, errors.Is(err, auth.ErrInvalidToken), "got %v", err)
}

func TestClient_WrongKeyFails(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t, func(cfg *config.Config) { cfg.Scheme.Name = lattice.SchemeDilithium2 })

	info, err := c.Scheme(ctx)
	require.NoError(t, err)

	_, err = c.Register(ctx, "alice")
	require.NoError(t, err)

	impostor, err := GenerateKey("alice", info)
	require.NoError(t, err)

	_, err = c.Authenticate(ctx, impostor)
	assert.True(t, errors.Is(err, auth.ErrInvalidSignature), "got %v", err)
}

func TestHandleErrorResponse_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down\n"))
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Principals(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.Nil(t, apiErr.Unwrap())
}

func TestAPIError_Unwrap(t *testing.T) {
	tests := []struct {
		status  int
		message string
		want    error
	}{
		{http.StatusConflict, "principal already exists", auth.ErrPrincipalAlreadyExists},
		{http.StatusBadRequest, "no outstanding challenge", auth.ErrNoOutstandingChallenge},
		{http.StatusBadRequest, "invalid input: principal id is required", auth.ErrInvalidInput},
		{http.StatusUnauthorized, "invalid signature", auth.ErrInvalidSignature},
		{http.StatusUnauthorized, "session revoked", auth.ErrSessionRevoked},
		{http.StatusUnauthorized, "token expired", auth.ErrInvalidToken},
		{http.StatusServiceUnavailable, "session revocation unavailable", auth.ErrRevocationUnavailable},
	}
	for _, tt := range tests {
		err := error(&APIError{StatusCode: tt.status, Message: tt.message})
		assert.True(t, errors.Is(err, tt.want), "%d %q: got %v", tt.status, tt.message, err)
	}

	assert.Nil(t, (&APIError{StatusCode: http.StatusInternalServerError, Message: "internal error"}).Unwrap())
}
