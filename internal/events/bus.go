// Package events fans review session lifecycle notifications out to any
// number of in-process listeners.
package events

import (
	"maps"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Type string

const (
	Start    Type = "start"
	Submit   Type = "submit"
	Complete Type = "complete"
	Pause    Type = "pause"
	Resume   Type = "resume"
	Error    Type = "error"
)

type Event struct {
	Type      Type           `json:"type"`
	SessionID string         `json:"sessionId"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

type Handler func(Event)

// Publisher is what the engine needs from a bus.
type Publisher interface {
	Subscribe(h Handler) (unsubscribe func())
	Publish(e Event)
}

type subscription struct {
	id int
	h  Handler
}

// Bus delivers events synchronously, in subscription order. A handler that
// panics is logged and skipped; the others still get the event.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h. Call the returned function to stop receiving
// events; calling it more than once is harmless.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, h: h})
	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.subs {
		if b.subs[i].id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish delivers e to every current subscriber. Each handler gets its own
// copy of e.Data.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	for _, s := range subs {
		ev := e
		if e.Data != nil {
			ev.Data = maps.Clone(e.Data)
		}
		dispatch(s.h, ev)
	}
}

func dispatch(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("event", string(e.Type)).
				Str("session", e.SessionID).Msg("event-handler-panicked")
		}
	}()
	h(e)
}
