package router

import (
	"time"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

// QuotaGroupKey identifies a (provider, model) pair that shares usage
// accounting with its group siblings, per spec §4.4's "Quota groups".
type QuotaGroupKey struct {
	Provider store.Provider
	Model    string
}

// QuotaGroups maps a member key to every other key sharing its quota group,
// loaded from quota-groups.yaml (see SPEC_FULL.md's Supplemented Features).
type QuotaGroups map[QuotaGroupKey][]QuotaGroupKey

// Members returns every (provider, model) sharing a quota group with key,
// including key itself. A key with no configured group is its own
// singleton group.
func (g QuotaGroups) Members(key QuotaGroupKey) []QuotaGroupKey {
	if siblings, ok := g[key]; ok {
		return siblings
	}
	return []QuotaGroupKey{key}
}

// DebitSuccess applies recordSuccess to cred and propagates a usage-count
// bump to every sibling-group credential resolver returns, per spec §4.4:
// "a debit (success...) for any (provider, model) in a group debits every
// member's counters."
func DebitSuccess(groups QuotaGroups, key QuotaGroupKey, cred *store.Credential, resolveSibling func(QuotaGroupKey) *store.Credential, save func(*store.Credential) error) error {
	for _, member := range groups.Members(key) {
		target := cred
		if member != key {
			target = resolveSibling(member)
		}
		if target == nil {
			continue
		}
		target.UsageCount++
		target.UpdatedAt = time.Now().UTC()
		if err := save(target); err != nil {
			return apierror.Storage(err, "failed to persist quota-group debit for %s/%s", member.Provider, member.Model)
		}
	}
	return nil
}

// DebitQuotaExceeded puts cred, and every quota-group sibling's credential
// for the same underlying account, into cooldown at the given escalation
// step, per spec §4.4: "cooldowns induced by quota-exceeded apply to every
// member of the group for the affected credential."
func DebitQuotaExceeded(groups QuotaGroups, key QuotaGroupKey, cred *store.Credential, step int, resolveSibling func(QuotaGroupKey) *store.Credential, save func(*store.Credential) error) error {
	until := time.Now().UTC().Add(NextCooldown(step))
	for _, member := range groups.Members(key) {
		target := cred
		if member != key {
			target = resolveSibling(member)
		}
		if target == nil {
			continue
		}
		target.Status = store.StatusCooling
		target.CooldownUntil = &until
		target.CooldownReason = "quota exceeded"
		target.UpdatedAt = time.Now().UTC()
		if err := save(target); err != nil {
			return apierror.Storage(err, "failed to persist quota-group cooldown for %s/%s", member.Provider, member.Model)
		}
	}
	return nil
}
