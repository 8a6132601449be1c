package events

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. the journal,
// RPC listeners).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Record is the wire-friendly form of an event.
type Record struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Recordable is implemented by events that can flatten themselves into a
// Record.
type Recordable interface {
	Event
	Record() *Record
}

// Fanout forwards every event to each configured emitter in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Buffer collects events so they can be flushed once the surrounding
// transaction has committed.
type Buffer struct {
	pending []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

// Flush hands every buffered event to the emitter and resets the buffer.
func (b *Buffer) Flush(to Emitter) {
	if to == nil {
		b.pending = nil
		return
	}
	for _, evt := range b.pending {
		to.Emit(evt)
	}
	b.pending = nil
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int { return len(b.pending) }
