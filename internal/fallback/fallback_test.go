package fallback

import (
	"path/filepath"
	"testing"

	"github.com/cliproxy-gateway/gateway/internal/router"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fallback.json")
	e, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestChainFallsBackToSingleEntryWhenNoVirtualModel(t *testing.T) {
	e := newTestEngine(t)
	chain := e.Chain("claude-opus-4-6", store.ProviderClaude)
	if len(chain) != 1 || chain[0].Provider != store.ProviderClaude || chain[0].ModelID != "claude-opus-4-6" {
		t.Fatalf("unexpected chain: %+v", chain)
	}
}

func TestChainOrdersByPriorityWhenVirtualModelEnabled(t *testing.T) {
	e := newTestEngine(t)
	m := &VirtualModel{
		Name:      "smart-coder",
		IsEnabled: true,
		Strategy:  router.StrategyFillFirst,
		Entries: []Entry{
			{Provider: store.ProviderCodex, ModelID: "gpt-5-codex", Priority: 2},
			{Provider: store.ProviderClaude, ModelID: "claude-opus-4-6", Priority: 1},
		},
	}
	if err := e.Upsert(m); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	chain := e.Chain("smart-coder", "")
	if len(chain) != 2 || chain[0].Provider != store.ProviderClaude || chain[1].Provider != store.ProviderCodex {
		t.Fatalf("unexpected chain ordering: %+v", chain)
	}
}

func TestDisabledVirtualModelFallsBackToSingleEntry(t *testing.T) {
	e := newTestEngine(t)
	m := &VirtualModel{
		Name:      "smart-coder",
		IsEnabled: false,
		Entries:   []Entry{{Provider: store.ProviderCodex, ModelID: "gpt-5-codex", Priority: 1}},
	}
	if err := e.Upsert(m); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	chain := e.Chain("smart-coder", store.ProviderClaude)
	if len(chain) != 1 || chain[0].Provider != store.ProviderClaude || chain[0].ModelID != "smart-coder" {
		t.Fatalf("expected single-entry fallback, got %+v", chain)
	}
}

func TestNewEntryStartsAtFullSuccessRate(t *testing.T) {
	e := newTestEngine(t)
	m := &VirtualModel{
		Name:      "smart-coder",
		IsEnabled: true,
		Entries:   []Entry{{Provider: store.ProviderCodex, ModelID: "gpt-5-codex", Priority: 1}},
	}
	if err := e.Upsert(m); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	got, ok := e.Get("smart-coder")
	if !ok {
		t.Fatal("expected virtual model to exist")
	}
	if got.Entries[0].SuccessRate != 1 {
		t.Fatalf("expected fresh entry success rate 1, got %v", got.Entries[0].SuccessRate)
	}
}

func TestRecordFailureEntersCoolingOnceRateDropsBelowHalf(t *testing.T) {
	e := newTestEngine(t)
	m := &VirtualModel{
		Name:      "smart-coder",
		IsEnabled: true,
		Entries:   []Entry{{Provider: store.ProviderCodex, ModelID: "gpt-5-codex", Priority: 1}},
	}
	if err := e.Upsert(m); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// success rate starts at 1 and decays by the EMA on each failure: 1,
	// 0.8, 0.64, 0.512, 0.4096 - it crosses below 0.5 on the 4th failure,
	// which is also past the 3-use cooling threshold.
	for i := 0; i < 4; i++ {
		if err := e.RecordFailure("smart-coder", store.ProviderCodex, "gpt-5-codex"); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	got, ok := e.Get("smart-coder")
	if !ok {
		t.Fatal("expected virtual model to exist")
	}
	if !got.Entries[0].Cooling {
		t.Fatalf("expected entry to be cooling once rate dropped below 0.5, got %+v", got.Entries[0])
	}
}

func TestRecordSuccessClearsCooling(t *testing.T) {
	e := newTestEngine(t)
	m := &VirtualModel{
		Name:      "smart-coder",
		IsEnabled: true,
		Entries:   []Entry{{Provider: store.ProviderCodex, ModelID: "gpt-5-codex", Priority: 1, Cooling: true}},
	}
	if err := e.Upsert(m); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := e.RecordSuccess("smart-coder", store.ProviderCodex, "gpt-5-codex"); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}
	got, _ := e.Get("smart-coder")
	if got.Entries[0].Cooling {
		t.Fatal("expected cooling to clear after success")
	}
}

func TestEngineReloadsPersistedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.json")
	e1, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e1.Upsert(&VirtualModel{Name: "x", IsEnabled: true}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	e2, err := New(path)
	if err != nil {
		t.Fatalf("New() reload error = %v", err)
	}
	if _, ok := e2.Get("x"); !ok {
		t.Fatal("expected reloaded engine to contain persisted virtual model")
	}
}
