package router

import (
	"math/rand"
	"testing"
	"time"

	"github.com/cliproxy-gateway/gateway/internal/store"
)

func cred(id string, usage int64, tier store.Tier) *store.Credential {
	return &store.Credential{ID: id, Tier: tier, UsageCount: usage, Status: store.StatusReady}
}

func TestFillFirstPicksFirstWithRemainingQuota(t *testing.T) {
	zero := int64(0)
	some := int64(5)
	candidates := []Candidate{
		{Credential: cred("a", 0, store.TierUnknown), QuotaRemaining: &zero},
		{Credential: cred("b", 0, store.TierUnknown), QuotaRemaining: &some},
		{Credential: cred("c", 0, store.TierUnknown), QuotaRemaining: &some},
	}
	got := Select(StrategyFillFirst, candidates, 0, nil)
	if got.Credential.ID != "b" {
		t.Fatalf("got %s, want b", got.Credential.ID)
	}
}

func TestFillFirstFallsBackToFirstWhenNoQuotaKnown(t *testing.T) {
	candidates := []Candidate{
		{Credential: cred("a", 0, store.TierUnknown)},
		{Credential: cred("b", 0, store.TierUnknown)},
	}
	got := Select(StrategyFillFirst, candidates, 0, nil)
	if got.Credential.ID != "a" {
		t.Fatalf("got %s, want a", got.Credential.ID)
	}
}

func TestRoundRobinZeroTauPicksArgminDeterministic(t *testing.T) {
	candidates := []Candidate{
		{Credential: cred("a", 5, store.TierUnknown)},
		{Credential: cred("b", 2, store.TierUnknown)},
		{Credential: cred("c", 2, store.TierUnknown)},
	}
	got := Select(StrategyRoundRobin, candidates, 0, nil)
	if got.Credential.ID != "b" {
		t.Fatalf("got %s, want b (lowest usage, lowest index tie-break)", got.Credential.ID)
	}
}

func TestRoundRobinWeightedRandomStaysWithinCandidates(t *testing.T) {
	candidates := []Candidate{
		{Credential: cred("a", 10, store.TierUnknown)},
		{Credential: cred("b", 0, store.TierUnknown)},
	}
	rng := rand.New(rand.NewSource(42))
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		got := Select(StrategyRoundRobin, candidates, 1.0, rng)
		if got == nil || (got.Credential.ID != "a" && got.Credential.ID != "b") {
			t.Fatalf("pick %d fell outside the candidate set: %+v", i, got)
		}
		seen[got.Credential.ID] = true
	}
	if len(seen) == 0 {
		t.Fatal("expected at least one pick")
	}
}

func TestSmartPriorityPrefersHigherFreqAndLowerPriorityNumber(t *testing.T) {
	candidates := []Candidate{
		{Credential: cred("a", 0, store.TierUnknown), Priority: 5, Frequency: FreqLimited, SuccessRate: 0.5},
		{Credential: cred("b", 0, store.TierUnknown), Priority: 1, Frequency: FreqPro, SuccessRate: 0.9},
	}
	got := Select(StrategySmartPriority, candidates, 0, nil)
	if got.Credential.ID != "b" {
		t.Fatalf("got %s, want b", got.Credential.ID)
	}
}

func TestFilterAndReorderDropsCoolingCredentials(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	cooling := cred("a", 0, store.TierUnknown)
	cooling.CooldownUntil = &future
	ready := cred("b", 0, store.TierUnknown)

	out := FilterAndReorder("unknown-model", []Candidate{{Credential: cooling}, {Credential: ready}}, now)
	if len(out) != 1 || out[0].Credential.ID != "b" {
		t.Fatalf("expected only b to survive, got %+v", out)
	}
}

func TestFilterAndReorderGatesOnMinimumTier(t *testing.T) {
	now := time.Now()
	free := cred("free", 0, store.TierFree)
	paid := cred("paid", 0, store.TierPaid)

	out := FilterAndReorder("claude-opus-4-6", []Candidate{{Credential: free}, {Credential: paid}}, now)
	if len(out) != 1 || out[0].Credential.ID != "paid" {
		t.Fatalf("expected only paid credential to survive tier gate, got %+v", out)
	}
}

func TestFilterAndReorderPermitsUnknownTier(t *testing.T) {
	now := time.Now()
	unknown := cred("unknown", 0, store.TierUnknown)

	out := FilterAndReorder("claude-opus-4-6", []Candidate{{Credential: unknown}}, now)
	if len(out) != 1 {
		t.Fatalf("expected unknown-tier credential to be permitted, got %+v", out)
	}
}

func TestNextCooldownEscalatesAndClamps(t *testing.T) {
	if NextCooldown(0) != 10*time.Second {
		t.Fatalf("step 0 = %v, want 10s", NextCooldown(0))
	}
	if NextCooldown(4) != 300*time.Second {
		t.Fatalf("step 4 = %v, want 300s", NextCooldown(4))
	}
	if NextCooldown(99) != 300*time.Second {
		t.Fatalf("step 99 = %v, want clamped 300s", NextCooldown(99))
	}
}
