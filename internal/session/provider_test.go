package session

import (
	"context"
	"errors"
	"testing"
)

func TestStaticProviderResolvesKnownTokens(t *testing.T) {
	provider := NewStaticProvider([]string{"tok-1:a@example.com", " tok-2 : b@example.com "})
	if provider.Size() != 2 {
		t.Fatalf("expected 2 identities, got %d", provider.Size())
	}

	identity, err := provider.Resolve(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.UserEmail != "a@example.com" {
		t.Fatalf("unexpected email %q", identity.UserEmail)
	}
	if identity.SessionID != "sess-tok-1" {
		t.Fatalf("unexpected session id %q", identity.SessionID)
	}

	identity, err = provider.Resolve(context.Background(), "tok-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.UserEmail != "b@example.com" {
		t.Fatalf("unexpected email %q", identity.UserEmail)
	}
}

func TestStaticProviderRejectsUnknownToken(t *testing.T) {
	provider := NewStaticProvider([]string{"tok-1:a@example.com"})
	if _, err := provider.Resolve(context.Background(), "nope"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestStaticProviderSkipsMalformedEntries(t *testing.T) {
	provider := NewStaticProvider([]string{"", "no-separator", ":missing-token", "missing-email:"})
	if provider.Size() != 0 {
		t.Fatalf("expected malformed entries to be dropped, got %d identities", provider.Size())
	}
}
