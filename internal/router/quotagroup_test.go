package router

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cliproxy-gateway/gateway/internal/store"
)

func TestQuotaGroupsMembersSingletonWhenUnconfigured(t *testing.T) {
	groups := QuotaGroups{}
	key := QuotaGroupKey{Provider: store.ProviderClaude, Model: "claude-opus-4-6"}
	got := groups.Members(key)
	if len(got) != 1 || got[0] != key {
		t.Fatalf("expected singleton group, got %+v", got)
	}
}

func TestQuotaGroupsMembersReturnsConfiguredSiblings(t *testing.T) {
	a := QuotaGroupKey{Provider: store.ProviderClaude, Model: "claude-opus-4-6"}
	b := QuotaGroupKey{Provider: store.ProviderClaude, Model: "claude-opus-4-6-thinking"}
	groups := QuotaGroups{a: {a, b}, b: {a, b}}

	got := groups.Members(a)
	if len(got) != 2 {
		t.Fatalf("expected 2 siblings, got %+v", got)
	}
}

func TestDebitSuccessIncrementsAllMembers(t *testing.T) {
	a := QuotaGroupKey{Provider: store.ProviderClaude, Model: "claude-opus-4-6"}
	b := QuotaGroupKey{Provider: store.ProviderClaude, Model: "claude-opus-4-6-thinking"}
	groups := QuotaGroups{a: {a, b}, b: {a, b}}

	credA := &store.Credential{ID: "cred-a"}
	credB := &store.Credential{ID: "cred-b"}
	saved := map[string]int64{}

	err := DebitSuccess(groups, a, credA, func(k QuotaGroupKey) *store.Credential {
		if k == b {
			return credB
		}
		return nil
	}, func(c *store.Credential) error {
		saved[c.ID] = c.UsageCount
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved["cred-a"] != 1 || saved["cred-b"] != 1 {
		t.Fatalf("expected both members debited once, got %+v", saved)
	}
}

func TestDebitQuotaExceededCoolsAllMembers(t *testing.T) {
	a := QuotaGroupKey{Provider: store.ProviderClaude, Model: "claude-opus-4-6"}
	b := QuotaGroupKey{Provider: store.ProviderClaude, Model: "claude-opus-4-6-thinking"}
	groups := QuotaGroups{a: {a, b}, b: {a, b}}

	credA := &store.Credential{ID: "cred-a"}
	credB := &store.Credential{ID: "cred-b"}
	cooled := map[string]store.Status{}

	err := DebitQuotaExceeded(groups, a, credA, 0, func(k QuotaGroupKey) *store.Credential {
		if k == b {
			return credB
		}
		return nil
	}, func(c *store.Credential) error {
		cooled[c.ID] = c.Status
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cooled["cred-a"] != store.StatusCooling || cooled["cred-b"] != store.StatusCooling {
		t.Fatalf("expected both members cooling, got %+v", cooled)
	}
	if credA.CooldownUntil == nil || credB.CooldownUntil == nil {
		t.Fatal("expected CooldownUntil set on both credentials")
	}
}

func TestLoadQuotaGroupsMissingFileYieldsEmpty(t *testing.T) {
	groups, err := LoadQuotaGroups(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected empty groups, got %+v", groups)
	}
}

func TestLoadQuotaGroupsParsesGroups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quota-groups.yaml")
	content := `
groups:
  - - provider: claude
      model: claude-opus-4-6
    - provider: claude
      model: claude-opus-4-6-thinking
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	groups, err := LoadQuotaGroups(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	key := QuotaGroupKey{Provider: store.ProviderClaude, Model: "claude-opus-4-6"}
	members := groups.Members(key)
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %+v", members)
	}
}

func TestLoadQuotaGroupsInvalidYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quota-groups.yaml")
	if err := os.WriteFile(path, []byte("groups: [not valid"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	if _, err := LoadQuotaGroups(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}
