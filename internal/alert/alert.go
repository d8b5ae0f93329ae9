// Package alert carries user facing feedback from the cart and checkout flows
// to whatever renders it. Emitting never blocks and never fails.
package alert

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/log"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

type Event struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func Success(message string) Event { return Event{Kind: KindSuccess, Message: message} }
func Error(message string) Event   { return Event{Kind: KindError, Message: message} }
func Warning(message string) Event { return Event{Kind: KindWarning, Message: message} }
func Info(message string) Event    { return Event{Kind: KindInfo, Message: message} }

type Channel interface {
	Emit(c context.Context, event Event)
}

// Buffer collects the events of a single request so they can be returned
// alongside the response.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

func NewBuffer() *Buffer {
	return &Buffer{events: []Event{}}
}

func (b *Buffer) Emit(c context.Context, event Event) {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()

	zerolog.Ctx(c).Debug().
		Str(log.KeyTag, "alert Buffer").
		Any(log.KeyFeedback, event).
		Msg("emitted feedback")
}

func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := make([]Event, len(b.events))
	copy(events, b.events)
	return events
}

func (b *Buffer) Last() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return Event{}, false
	}
	return b.events[len(b.events)-1], true
}

type discard struct{}

func (discard) Emit(context.Context, Event) {}

// Discard drops every event.
var Discard Channel = discard{}

type logChannel struct{}

func (logChannel) Emit(c context.Context, event Event) {
	zerolog.Ctx(c).Info().
		Str(log.KeyTag, "alert Log").
		Str("kind", string(event.Kind)).
		Msg(event.Message)
}

// Log writes every event to the logger carried by the context.
var Log Channel = logChannel{}
