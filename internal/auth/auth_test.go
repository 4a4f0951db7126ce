package auth

import (
	"context"
	"testing"
)

func TestHashAPIKey(t *testing.T) {
	h1 := HashAPIKey("test-key-123")
	h2 := HashAPIKey("test-key-123")
	if h1 != h2 {
		t.Fatalf("same key produced different hashes: %q vs %q", h1, h2)
	}

	h3 := HashAPIKey("different-key")
	if h1 == h3 {
		t.Fatal("different keys produced the same hash")
	}

	if len(h1) != 64 {
		t.Fatalf("hash length = %d, want 64", len(h1))
	}
}

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		role  string
		valid bool
	}{
		{RoleAdmin, true},
		{RoleOperator, true},
		{RoleReadonly, true},
		{RoleAgent, true},
		{"superadmin", false},
		{"", false},
		{"Admin", false}, // case-sensitive
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			got := IsValidRole(tt.role)
			if got != tt.valid {
				t.Errorf("IsValidRole(%q) = %v, want %v", tt.role, got, tt.valid)
			}
		})
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()

	if id := FromContext(ctx); id != nil {
		t.Fatalf("expected nil, got %+v", id)
	}

	identity := &Identity{
		Subject: "apikey:abcd1234",
		Role:    RoleOperator,
		Method:  MethodAPIKey,
	}
	ctx = NewContext(ctx, identity)

	got := FromContext(ctx)
	if got == nil {
		t.Fatal("expected identity, got nil")
	}
	if got.Subject != "apikey:abcd1234" {
		t.Errorf("Subject = %q, want %q", got.Subject, "apikey:abcd1234")
	}
	if got.Role != RoleOperator {
		t.Errorf("Role = %q, want %q", got.Role, RoleOperator)
	}
}

func TestIdentityIsAgent(t *testing.T) {
	agent := &Identity{Method: MethodAgentKey, MachineID: "fm100abc"}
	if !agent.IsAgent() {
		t.Errorf("expected agent identity to report IsAgent() == true")
	}

	operator := &Identity{Method: MethodAPIKey}
	if operator.IsAgent() {
		t.Errorf("expected operator identity to report IsAgent() == false")
	}

	var nilIdentity *Identity
	if nilIdentity.IsAgent() {
		t.Errorf("expected nil identity to report IsAgent() == false")
	}
}
