package refgraph

import (
	"github.com/roach88/lifetimes/internal/ir"
)

// EventType names a simulator event.
type EventType string

const (
	EventScopeOpened       EventType = "scope_opened"
	EventScopeClosed       EventType = "scope_closed"
	EventObjectCreated     EventType = "object_created"
	EventReferenceAdded    EventType = "reference_added"
	EventReferenceReleased EventType = "reference_released"
	EventObjectDestroyed   EventType = "object_destroyed"
	EventWeakCleared       EventType = "weak_cleared"
	EventDanglingRead      EventType = "dangling_read"
)

// Event is one entry in the simulator's log.
//
// Holder and Scope identify where a reference originates: an object holder
// sets Holder, a scope frame sets Scope, and Root leaves both zero.
type Event struct {
	Seq    int64     `json:"seq"`
	Type   EventType `json:"type"`
	Object ObjectID  `json:"object,omitempty"`
	Label  string    `json:"label,omitempty"`
	Ref    RefID     `json:"ref,omitempty"`
	Kind   RefKind   `json:"kind,omitempty"`
	Holder ObjectID  `json:"holder,omitempty"`
	Scope  string    `json:"scope,omitempty"`
	Field  string    `json:"field,omitempty"`
}

// Record converts the event into its canonical IR form. Zero-valued fields
// are omitted so records stay stable as fields are added.
func (e Event) Record() ir.IRObject {
	rec := ir.IRObject{
		"seq":  ir.IRInt(e.Seq),
		"type": ir.IRString(e.Type),
	}
	if e.Object != 0 {
		rec["object"] = ir.IRInt(int64(e.Object))
	}
	if e.Label != "" {
		rec["label"] = ir.IRString(e.Label)
	}
	if e.Ref != 0 {
		rec["ref"] = ir.IRInt(int64(e.Ref))
	}
	if e.Kind != 0 {
		rec["kind"] = ir.IRString(e.Kind.String())
	}
	if e.Holder != 0 {
		rec["holder"] = ir.IRInt(int64(e.Holder))
	}
	if e.Scope != "" {
		rec["scope"] = ir.IRString(e.Scope)
	}
	if e.Field != "" {
		rec["field"] = ir.IRString(e.Field)
	}
	return rec
}

// Observer receives every event as it is recorded.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(e Event) {
	if f != nil {
		f(e)
	}
}
