package auth

import (
	"context"
	"testing"
)

func TestIdentityRoundtrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: 42, Email: "a@x.com", Name: "A"})

	id, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected identity in context")
	}
	if id.UserID != 42 || id.Email != "a@x.com" || id.Name != "A" {
		t.Errorf("identity = %+v", id)
	}
	if UserID(ctx) != 42 {
		t.Errorf("UserID = %d, want 42", UserID(ctx))
	}
	if Email(ctx) != "a@x.com" {
		t.Errorf("Email = %q, want a@x.com", Email(ctx))
	}
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()

	if _, ok := FromContext(ctx); ok {
		t.Error("expected no identity in empty context")
	}
	if UserID(ctx) != 0 {
		t.Errorf("UserID = %d, want 0", UserID(ctx))
	}
	if Email(ctx) != "" {
		t.Errorf("Email = %q, want empty", Email(ctx))
	}
}
