package bridge

import "sync"

// Event names published by the bridge.
const (
	EventInitStart    = "runtime_init_start"
	EventInitReady    = "runtime_init_ready"
	EventInitError    = "runtime_init_error"
	EventImportReady  = "module_import_ready"
	EventImportError  = "module_import_error"
	EventRuntimeClose = "runtime_close"
)

// Event is a runtime lifecycle event.
type Event struct {
	Name   string
	Module string
	Fields map[string]any
}

// EventPublisher receives bridge events. Publish must not block or panic.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MemoryPublisher stores events in memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the published event names in order.
func (p *MemoryPublisher) Names() []string {
	evs := p.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Name
	}
	return out
}
