// Package router implements credential selection (spec §4.4): tier
// filtering/reordering against the model registry, cooldown filtering, and
// one of three selection strategies over the surviving candidates.
package router

import (
	"math/rand"
	"sort"
	"time"

	"github.com/cliproxy-gateway/gateway/internal/registry"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

// Strategy names a credential-selection algorithm (spec §4.4).
type Strategy string

const (
	StrategyFillFirst     Strategy = "fillFirst"
	StrategyRoundRobin    Strategy = "roundRobin"
	StrategySmartPriority Strategy = "smartPriority"
)

// cooldownSchedule is the escalating cooldown ladder from spec §4.4,
// clamped at its final step.
var cooldownSchedule = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
	120 * time.Second,
	300 * time.Second,
}

// NextCooldown returns the cooldown duration for the step-th escalation
// (0-indexed), clamped at the schedule's final entry.
func NextCooldown(step int) time.Duration {
	if step < 0 {
		step = 0
	}
	if step >= len(cooldownSchedule) {
		step = len(cooldownSchedule) - 1
	}
	return cooldownSchedule[step]
}

// Frequency classifies how often a credential should be preferred under
// smartPriority, per spec §4.4's freq table.
type Frequency string

const (
	FreqPro         Frequency = "pro"
	FreqStandard    Frequency = "standard"
	FreqInfrequent  Frequency = "infrequent"
	FreqLimited     Frequency = "limited"
	FreqCooling     Frequency = "cooling"
)

var freqWeight = map[Frequency]float64{
	FreqPro:        1.0,
	FreqStandard:   0.75,
	FreqInfrequent: 0.50,
	FreqLimited:    0.25,
	FreqCooling:    0.10,
}

// Candidate pairs a credential with the inputs smartPriority needs beyond
// what's already on the Credential record.
type Candidate struct {
	Credential   *store.Credential
	Priority     int       // 1 is highest priority, per spec's (priority-1)/10 term
	Frequency    Frequency
	SuccessRate  float64 // bounded EMA in [0,1], per DESIGN.md's Open Question decision
	QuotaRemaining *int64 // nil means "unknown", per fillFirst's fallback rule
}

// FilterAndReorder applies spec §4.4 steps 1-3: tier-gate by the model's
// minimum tier, stable-sort by preferred tier, then drop cooled-down
// credentials. now is injected for testability.
func FilterAndReorder(modelID string, candidates []Candidate, now time.Time) []Candidate {
	mi, known := registry.Lookup(modelID)

	gated := candidates
	if known {
		gated = make([]Candidate, 0, len(candidates))
		for _, c := range candidates {
			if tierMeets(c.Credential.Tier, mi.MinTier) {
				gated = append(gated, c)
			}
		}
		if mi.PreferredTier != "" {
			sort.SliceStable(gated, func(i, j int) bool {
				return tierRank(gated[i].Credential.Tier, mi.PreferredTier) < tierRank(gated[j].Credential.Tier, mi.PreferredTier)
			})
		}
	}

	out := make([]Candidate, 0, len(gated))
	for _, c := range gated {
		if c.Credential.CooldownUntil != nil && c.Credential.CooldownUntil.After(now) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// tierMeets reports whether a candidate's tier satisfies a minimum tier
// gate. unknown tiers are permitted by every gate (spec §4.4: "but permit
// unknown").
func tierMeets(have, min store.Tier) bool {
	if min == "" || min == store.TierUnknown {
		return true
	}
	if have == store.TierUnknown {
		return true
	}
	return have == min || (min == store.TierFree && have == store.TierPaid)
}

// tierRank orders a candidate's tier relative to the preferred tier: an
// exact match sorts first, everything else keeps its relative order.
func tierRank(have, preferred store.Tier) int {
	if have == preferred {
		return 0
	}
	return 1
}

// Select applies spec §4.4 step 4. Candidates must already be filtered and
// reordered via FilterAndReorder. rng is injected so roundRobin's
// weighted-random path is deterministic in tests.
func Select(strategy Strategy, candidates []Candidate, tau float64, rng *rand.Rand) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	switch strategy {
	case StrategyRoundRobin:
		return selectRoundRobin(candidates, tau, rng)
	case StrategySmartPriority:
		return selectSmartPriority(candidates)
	default:
		return selectFillFirst(candidates)
	}
}

// selectFillFirst picks the first candidate with known non-zero remaining
// quota; if none report a quota remaining, it picks the first candidate.
func selectFillFirst(candidates []Candidate) *Candidate {
	for i := range candidates {
		if candidates[i].QuotaRemaining != nil && *candidates[i].QuotaRemaining > 0 {
			return &candidates[i]
		}
	}
	return &candidates[0]
}

// selectRoundRobin implements spec §4.4's rotation-tolerance formula: exact
// argmin when tau is zero, otherwise weighted-random with
// w_i = (max_u - u_i) + tau + 1.
func selectRoundRobin(candidates []Candidate, tau float64, rng *rand.Rand) *Candidate {
	if tau == 0 {
		best := 0
		for i := 1; i < len(candidates); i++ {
			if candidates[i].Credential.UsageCount < candidates[best].Credential.UsageCount {
				best = i
			}
		}
		return &candidates[best]
	}

	maxU := candidates[0].Credential.UsageCount
	for _, c := range candidates {
		if c.Credential.UsageCount > maxU {
			maxU = c.Credential.UsageCount
		}
	}

	weights := make([]float64, len(candidates))
	var total float64
	for i, c := range candidates {
		w := float64(maxU-c.Credential.UsageCount) + tau + 1
		weights[i] = w
		total += w
	}

	r := rng.Float64() * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if r <= cumulative {
			return &candidates[i]
		}
	}
	return &candidates[len(candidates)-1]
}

// selectSmartPriority maximizes spec §4.4's weighted formula:
// 0.4·freq + 0.4·(1 - (priority-1)/10) + 0.2·successRate.
func selectSmartPriority(candidates []Candidate) *Candidate {
	best := 0
	bestScore := smartScore(candidates[0])
	for i := 1; i < len(candidates); i++ {
		if score := smartScore(candidates[i]); score > bestScore {
			best = i
			bestScore = score
		}
	}
	return &candidates[best]
}

func smartScore(c Candidate) float64 {
	freq := freqWeight[c.Frequency]
	if _, ok := freqWeight[c.Frequency]; !ok {
		freq = freqWeight[FreqStandard]
	}
	priorityTerm := 1 - (float64(c.Priority-1) / 10)
	return 0.4*freq + 0.4*priorityTerm + 0.2*c.SuccessRate
}
