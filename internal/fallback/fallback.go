// Package fallback implements the Fallback Engine (spec §4.5): virtual
// model configuration, chain resolution, and per-entry success/failure
// bookkeeping persisted to fallback.json.
package fallback

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
	"github.com/cliproxy-gateway/gateway/internal/router"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

// Entry is one ordered step in a virtual model's fallback chain.
type Entry struct {
	Provider store.Provider `json:"provider"`
	ModelID  string         `json:"model_id"`
	Priority int            `json:"priority"`

	UsageCount  int64     `json:"usage_count"`
	LastUsed    time.Time `json:"last_used,omitempty"`
	SuccessRate float64   `json:"success_rate"`
	Cooling     bool      `json:"cooling"`
	CoolUntil   time.Time `json:"cool_until,omitempty"`
}

// VirtualModel is one configured fallback chain.
type VirtualModel struct {
	Name      string          `json:"name"`
	IsEnabled bool            `json:"is_enabled"`
	Strategy  router.Strategy `json:"strategy"`
	Entries   []Entry         `json:"entries"`
}

// successRateAlpha is the bounded-EMA smoothing factor backing each entry's
// success rate (DESIGN.md Open Question decision #2).
const successRateAlpha = 0.2

// coolingThresholdUses is the minimum usage count before an entry's success
// rate can trigger cooldown (spec §4.5: "≥3 uses with success-rate < 0.5").
const coolingThresholdUses = 3

// Engine holds every configured virtual model and persists changes to a
// fallback.json file, matching the teacher's convention of keeping routing
// policy in a sibling config file rather than hardcoding it.
type Engine struct {
	mu     sync.Mutex
	path   string
	models map[string]*VirtualModel
}

// New constructs an Engine backed by path, loading any existing file.
func New(path string) (*Engine, error) {
	e := &Engine{path: path, models: make(map[string]*VirtualModel)}
	if err := e.load(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) load() error {
	data, err := os.ReadFile(e.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apierror.Storage(err, "failed to read fallback config")
	}
	var models []*VirtualModel
	if err := json.Unmarshal(data, &models); err != nil {
		return apierror.Storage(err, "fallback config is corrupt")
	}
	for _, m := range models {
		e.models[m.Name] = m
	}
	return nil
}

// save writes every configured virtual model atomically (write-temp,
// rename), mirroring the Credential Store's durability discipline.
func (e *Engine) save() error {
	list := make([]*VirtualModel, 0, len(e.models))
	for _, m := range e.models {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return apierror.Storage(err, "failed to marshal fallback config")
	}
	dir := filepath.Dir(e.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apierror.Storage(err, "failed to create fallback config directory")
	}
	tmp, err := os.CreateTemp(dir, ".fallback-*.tmp")
	if err != nil {
		return apierror.Storage(err, "failed to create temp fallback file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return apierror.Storage(err, "failed to write fallback config")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return apierror.Storage(err, "failed to close fallback config")
	}
	if err := os.Rename(tmpPath, e.path); err != nil {
		os.Remove(tmpPath)
		return apierror.Storage(err, "failed to persist fallback config")
	}
	return nil
}

// List returns every configured virtual model.
func (e *Engine) List() []*VirtualModel {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*VirtualModel, 0, len(e.models))
	for _, m := range e.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns a single virtual model by name.
func (e *Engine) Get(name string) (*VirtualModel, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.models[name]
	return m, ok
}

// normalizeEntries initializes each entry's success rate to 1 when it is
// still at its zero value, per spec §3's invariant that a fresh entry starts
// as if it had never failed. An entry with recorded usage keeps whatever
// rate RecordSuccess/RecordFailure already computed for it.
func normalizeEntries(entries []Entry) {
	for i := range entries {
		if entries[i].UsageCount == 0 && entries[i].SuccessRate == 0 {
			entries[i].SuccessRate = 1
		}
	}
}

// Upsert creates or replaces a virtual model and persists the change.
func (e *Engine) Upsert(m *VirtualModel) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	normalizeEntries(m.Entries)
	e.models[m.Name] = m
	return e.save()
}

// Delete removes a virtual model and persists the change.
func (e *Engine) Delete(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.models, name)
	return e.save()
}

// Export returns every virtual model for a management-surface export.
func (e *Engine) Export() []*VirtualModel { return e.List() }

// Import replaces every virtual model with the given set and persists it.
func (e *Engine) Import(models []*VirtualModel) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.models = make(map[string]*VirtualModel, len(models))
	for _, m := range models {
		normalizeEntries(m.Entries)
		e.models[m.Name] = m
	}
	return e.save()
}

// Chain resolves the ordered entries to try for a requested virtual model
// name, per spec §4.5. When no enabled virtual model matches, it returns a
// single-entry chain addressing the requested model directly on the given
// detected provider.
func (e *Engine) Chain(requestedModel string, detectedProvider store.Provider) []Entry {
	e.mu.Lock()
	m, ok := e.models[requestedModel]
	e.mu.Unlock()
	if !ok || !m.IsEnabled {
		return []Entry{{Provider: detectedProvider, ModelID: requestedModel, Priority: 1, SuccessRate: 1}}
	}
	entries := make([]Entry, len(m.Entries))
	copy(entries, m.Entries)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Priority < entries[j].Priority })
	return entries
}

// RecordSuccess bumps usage, updates the success-rate EMA upward, and clears
// any cooldown on the named virtual model's matching entry (spec §4.5).
func (e *Engine) RecordSuccess(virtualModel string, provider store.Provider, modelID string) error {
	return e.mutateEntry(virtualModel, provider, modelID, func(en *Entry) {
		en.UsageCount++
		en.LastUsed = time.Now().UTC()
		en.SuccessRate = en.SuccessRate + successRateAlpha*(1-en.SuccessRate)
		en.Cooling = false
	})
}

// RecordFailure bumps usage, updates the success-rate EMA downward, and
// marks the entry cooling once it has accrued ≥3 uses with success-rate
// below 0.5 (spec §4.5).
func (e *Engine) RecordFailure(virtualModel string, provider store.Provider, modelID string) error {
	return e.mutateEntry(virtualModel, provider, modelID, func(en *Entry) {
		en.UsageCount++
		en.LastUsed = time.Now().UTC()
		en.SuccessRate = en.SuccessRate + successRateAlpha*(0-en.SuccessRate)
		if en.UsageCount >= coolingThresholdUses && en.SuccessRate < 0.5 {
			en.Cooling = true
		}
	})
}

func (e *Engine) mutateEntry(virtualModel string, provider store.Provider, modelID string, fn func(*Entry)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.models[virtualModel]
	if !ok {
		return nil
	}
	for i := range m.Entries {
		if m.Entries[i].Provider == provider && m.Entries[i].ModelID == modelID {
			fn(&m.Entries[i])
			break
		}
	}
	return e.save()
}
