package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileCredentialStore_SaveAndList(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileCredentialStore(dir)
	if err != nil {
		t.Fatalf("NewFileCredentialStore: %v", err)
	}

	older := &Credential{ID: "a", Provider: ProviderClaude, Status: StatusReady, UpdatedAt: time.Now().Add(-time.Hour)}
	newer := &Credential{ID: "b", Provider: ProviderClaude, Status: StatusReady, UpdatedAt: time.Now()}
	if err := s.Save(older); err != nil {
		t.Fatalf("save older: %v", err)
	}
	if err := s.Save(newer); err != nil {
		t.Fatalf("save newer: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 credentials, got %d", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("expected b before a (updatedAt desc), got %s then %s", got[0].ID, got[1].ID)
	}
}

func TestFileCredentialStore_SanitizesID(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileCredentialStore(dir)
	if err != nil {
		t.Fatalf("NewFileCredentialStore: %v", err)
	}
	c := &Credential{ID: "../../etc/passwd", Provider: ProviderClaude, Status: StatusReady}
	if err := s.Save(c); err != nil {
		t.Fatalf("save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if filepath.IsAbs(e.Name()) || e.Name() == ".." {
			t.Fatalf("unsafe filename escaped sanitization: %s", e.Name())
		}
	}
}

func TestFileCredentialStore_SkipsCorruptRecords(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write broken file: %v", err)
	}
	s, err := NewFileCredentialStore(dir)
	if err != nil {
		t.Fatalf("NewFileCredentialStore: %v", err)
	}
	good := &Credential{ID: "good", Provider: ProviderClaude, Status: StatusReady}
	if err := s.Save(good); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "good" {
		t.Fatalf("expected only the good record to survive listing, got %+v", got)
	}
}

func TestCredential_Eligible(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	cases := []struct {
		name string
		c    *Credential
		want bool
	}{
		{"ready", &Credential{Status: StatusReady}, true},
		{"disabled", &Credential{Status: StatusReady, Disabled: true}, false},
		{"error status", &Credential{Status: StatusError}, false},
		{"cooling active", &Credential{Status: StatusReady, CooldownUntil: &future}, false},
		{"cooling expired", &Credential{Status: StatusReady, CooldownUntil: &past}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.Eligible(now); got != tc.want {
				t.Errorf("Eligible() = %v, want %v", got, tc.want)
			}
		})
	}
}
