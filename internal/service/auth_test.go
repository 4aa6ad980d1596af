package service

import (
	"context"
	"errors"
	"testing"

	"github.com/totegamma/diamond-portal"
)

type mockIdentity struct {
	calls int
	users map[string]string
}

func (m *mockIdentity) UserInfo(ctx context.Context, token string) (diamond.User, error) {
	m.calls++
	sub, ok := m.users[token]
	if !ok {
		return diamond.User{}, errors.New("invalid token")
	}
	return diamond.User{Sub: sub}, nil
}

func TestAuthTokenResolvesAndCaches(t *testing.T) {
	identity := &mockIdentity{users: map[string]string{"tok-a": "u1"}}
	auth := NewAuthService(identity)

	for i := 0; i < 3; i++ {
		result, err := auth.AuthToken(context.Background(), "tok-a")
		if err != nil {
			t.Fatalf("auth failed: %v", err)
		}
		if result.Subject != "u1" {
			t.Fatalf("expected u1 got %s", result.Subject)
		}
	}

	if identity.calls != 1 {
		t.Fatalf("expected one userinfo lookup, got %d", identity.calls)
	}
}

func TestAuthTokenRejects(t *testing.T) {
	identity := &mockIdentity{users: map[string]string{}}
	auth := NewAuthService(identity)

	if _, err := auth.AuthToken(context.Background(), ""); err == nil {
		t.Fatalf("expected empty token to fail")
	}
	if _, err := auth.AuthToken(context.Background(), "bogus"); err == nil {
		t.Fatalf("expected unknown token to fail")
	}
	if _, err := auth.AuthToken(context.Background(), "bogus"); err == nil {
		t.Fatalf("failures must not be cached as successes")
	}
	if identity.calls != 2 {
		t.Fatalf("expected failed lookups to be retried, got %d calls", identity.calls)
	}
}
