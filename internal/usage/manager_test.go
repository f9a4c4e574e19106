package usage

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingPlugin struct {
	mu      sync.Mutex
	records []Record
	done    chan struct{}
	want    int
}

func newRecordingPlugin(want int) *recordingPlugin {
	return &recordingPlugin{done: make(chan struct{}, 1), want: want}
}

func (p *recordingPlugin) HandleUsage(_ context.Context, record Record) {
	p.mu.Lock()
	p.records = append(p.records, record)
	n := len(p.records)
	p.mu.Unlock()
	if n == p.want {
		p.done <- struct{}{}
	}
}

func (p *recordingPlugin) wait(t *testing.T) {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for records to be dispatched")
	}
}

func TestManagerDispatchesPublishedRecordsToRegisteredPlugins(t *testing.T) {
	m := NewManager()
	plugin := newRecordingPlugin(2)
	m.Register(plugin)
	m.Start(context.Background())
	defer m.Stop()

	m.Publish(context.Background(), Record{Provider: "claude", Model: "claude-opus-4-6"})
	m.Publish(context.Background(), Record{Provider: "codex", Model: "gpt-5-codex"})

	plugin.wait(t)

	plugin.mu.Lock()
	defer plugin.mu.Unlock()
	if len(plugin.records) != 2 {
		t.Fatalf("expected 2 records delivered, got %d", len(plugin.records))
	}
}

func TestManagerPublishStartsDispatcherLazily(t *testing.T) {
	m := NewManager()
	plugin := newRecordingPlugin(1)
	m.Register(plugin)
	defer m.Stop()

	m.Publish(context.Background(), Record{Provider: "claude", Model: "claude-opus-4-6"})

	plugin.wait(t)
}

func TestManagerStopDropsLaterPublishes(t *testing.T) {
	m := NewManager()
	plugin := newRecordingPlugin(1)
	m.Register(plugin)
	m.Start(context.Background())

	m.Publish(context.Background(), Record{Provider: "claude", Model: "claude-opus-4-6"})
	plugin.wait(t)

	m.Stop()
	m.Publish(context.Background(), Record{Provider: "codex", Model: "gpt-5-codex"})

	time.Sleep(50 * time.Millisecond)
	plugin.mu.Lock()
	defer plugin.mu.Unlock()
	if len(plugin.records) != 1 {
		t.Fatalf("expected publish after Stop to be dropped, got %d records", len(plugin.records))
	}
}

func TestManagerHandlesNilManagerGracefully(t *testing.T) {
	var m *Manager
	m.Start(context.Background())
	m.Register(&recordingPlugin{done: make(chan struct{}, 1)})
	m.Publish(context.Background(), Record{})
	m.Stop()
}
