// Package events implements the small synchronous topic/event bus the sync
// engine, pull scheduler, and webhook handler use to announce state changes
// (§4.5 `state.updated`/`conflict.detected`/`rebase.*`, §4.7, §4.9
// `agent:started`/`agent:completed`/`agent:error`), grounded on the
// topic-keyed Subscribe pattern used across the pack's node types (e.g.
// orbas1-Synnergy's BaseNode.Subscribe(topic)) and generalized from
// channel delivery to in-process callback delivery since there is no
// network transport between emitter and listener here.
package events

import "sync"

// Event is one emitted notification: a topic name plus an arbitrary,
// topic-specific payload.
type Event struct {
	Topic   string
	Payload any
}

// Handler receives emitted events. Handlers run synchronously, in
// registration order, on the emitting goroutine; a handler that blocks
// blocks the emitter.
type Handler func(Event)

// Emitter is a minimal, concurrency-safe topic/event bus.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewEmitter returns a ready-to-use Emitter.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[string][]Handler)}
}

// On registers handler for topic, returning an unsubscribe function.
func (e *Emitter) On(topic string, handler Handler) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.handlers[topic] = append(e.handlers[topic], handler)
	idx := len(e.handlers[topic]) - 1

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		hs := e.handlers[topic]
		if idx < len(hs) {
			hs[idx] = nil
		}
	}
}

// Emit synchronously invokes every live handler registered for topic with
// payload.
func (e *Emitter) Emit(topic string, payload any) {
	e.mu.RLock()
	hs := append([]Handler(nil), e.handlers[topic]...)
	e.mu.RUnlock()

	evt := Event{Topic: topic, Payload: payload}
	for _, h := range hs {
		if h != nil {
			h(evt)
		}
	}
}

// Topic name constants used across the sync engine and scheduler.
const (
	TopicConflictDetected = "conflict.detected"
	TopicStateUpdated     = "state.updated"
	TopicRebaseStarted    = "rebase.started"
	TopicRebaseResolved   = "rebase.resolved"
	TopicAgentStarted     = "agent:started"
	TopicAgentCompleted   = "agent:completed"
	TopicAgentError       = "agent:error"
)
