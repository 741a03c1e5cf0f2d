// ABOUTME: Unit tests for authentication context functions
// ABOUTME: Tests context propagation helpers

package auth

import (
	"context"
	"testing"
	"time"
)

func TestFromContext_Present(t *testing.T) {
	expected := &AuthContext{
		PrincipalID: "test-id",
		SessionID:   "session-1",
		ExpiresAt:   time.Now().Add(time.Hour),
	}

	ctx := WithAuth(context.Background(), expected)
	got := FromContext(ctx)

	if got == nil {
		t.Fatal("FromContext() = nil, want non-nil")
	}

	if got.PrincipalID != expected.PrincipalID {
		t.Errorf("PrincipalID = %q, want %q", got.PrincipalID, expected.PrincipalID)
	}

	if got.SessionID != expected.SessionID {
		t.Errorf("SessionID = %q, want %q", got.SessionID, expected.SessionID)
	}
}

func TestFromContext_Missing(t *testing.T) {
	ctx := context.Background()
	got := FromContext(ctx)

	if got != nil {
		t.Errorf("FromContext() = %v, want nil", got)
	}
}

func TestFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), authContextKey{}, "not-an-auth-context")

	if got := FromContext(ctx); got != nil {
		t.Errorf("FromContext() = %v, want nil", got)
	}
}

func TestMustFromContext_Present(t *testing.T) {
	expected := &AuthContext{PrincipalID: "test-id"}

	ctx := WithAuth(context.Background(), expected)

	// Should not panic
	got := MustFromContext(ctx)

	if got.PrincipalID != expected.PrincipalID {
		t.Errorf("PrincipalID = %q, want %q", got.PrincipalID, expected.PrincipalID)
	}
}

func TestMustFromContext_Missing(t *testing.T) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r == nil {
			t.Error("MustFromContext() did not panic when auth context missing")
		}
	}()

	MustFromContext(ctx)
}
