package usage

import "testing"

func TestStatsAggregatesByProviderAndModel(t *testing.T) {
	s := NewStats()
	s.HandleUsage(nil, Record{Provider: "claude", Model: "claude-opus-4-6", Detail: Detail{InputTokens: 10, OutputTokens: 20, TotalTokens: 30}})
	s.HandleUsage(nil, Record{Provider: "claude", Model: "claude-opus-4-6", Failed: true, Detail: Detail{InputTokens: 5, OutputTokens: 0, TotalTokens: 5}})

	snap := s.Snapshot()
	key := ProviderModelKey{Provider: "claude", Model: "claude-opus-4-6"}
	got, ok := snap.Totals[key]
	if !ok {
		t.Fatal("expected bucket for claude/claude-opus-4-6")
	}
	if got.RequestCount != 2 || got.FailureCount != 1 || got.TotalTokens != 35 {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if snap.GrandTotal.RequestCount != 2 {
		t.Fatalf("grand total request count = %d", snap.GrandTotal.RequestCount)
	}
}

func TestStatsRequestsReturnsMostRecentLimit(t *testing.T) {
	s := NewStats()
	for i := 0; i < 5; i++ {
		s.HandleUsage(nil, Record{Provider: "codex", Model: "gpt-5-codex"})
	}
	got := s.Requests(2)
	if len(got) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(got))
	}
}

func TestStatsClearRequestsKeepsTotals(t *testing.T) {
	s := NewStats()
	s.HandleUsage(nil, Record{Provider: "codex", Model: "gpt-5-codex"})
	s.ClearRequests()
	if len(s.Requests(0)) != 0 {
		t.Fatal("expected request log cleared")
	}
	if s.Snapshot().GrandTotal.RequestCount != 1 {
		t.Fatal("expected totals to survive ClearRequests")
	}
}

func TestStatsResetClearsEverything(t *testing.T) {
	s := NewStats()
	s.HandleUsage(nil, Record{Provider: "codex", Model: "gpt-5-codex"})
	s.Reset()
	if s.Snapshot().GrandTotal.RequestCount != 0 {
		t.Fatal("expected totals cleared")
	}
	if len(s.Requests(0)) != 0 {
		t.Fatal("expected request log cleared")
	}
}
