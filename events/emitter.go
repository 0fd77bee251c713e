package events

import (
	"log"
	"sync"
)

// EventType labels what happened.
type EventType string

const (
	EventUserAdmitted      EventType = "user_admitted"
	EventBlockMined        EventType = "block_mined"
	EventDepthUnlocked     EventType = "depth_unlocked"
	EventDifficultyChanged EventType = "difficulty_changed"
	EventRewardClaimed     EventType = "reward_claimed"
)

// All lists every event type, in a stable order, for subscribers that want
// the full stream (e.g. the durable journal).
var All = []EventType{
	EventUserAdmitted,
	EventBlockMined,
	EventDepthUnlocked,
	EventDifficultyChanged,
	EventRewardClaimed,
}

// Event carries a typed payload emitted after a committed state change.
type Event struct {
	Type EventType      `json:"type"`
	User string         `json:"user"`
	Time int64          `json:"time"` // unix seconds, engine clock
	Data map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash the server or abort a mining call that already committed.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[events] handler panicked for %s: %v", ev.Type, r)
				}
			}()
			h(ev)
		}()
	}
}
