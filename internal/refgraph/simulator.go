package refgraph

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/lifetimes/internal/ir"
)

// holder is anything references can originate from: Root, a scope frame or
// an object. refs keeps insertion order; fields maps a field name to the
// reference currently stored in it.
type holder struct {
	id     ObjectID // 0 for Root and scopes
	scope  string   // set for scope frames
	refs   []RefID
	fields map[string]RefID
}

func (h *holder) remove(id RefID) {
	if i := slices.Index(h.refs, id); i >= 0 {
		h.refs = slices.Delete(h.refs, i, i+1)
	}
}

type object struct {
	holder
	label  string
	state  State
	strong int
	weakIn []RefID
}

type reference struct {
	id      RefID
	kind    RefKind
	from    *holder
	to      ObjectID
	field   string
	cleared bool
}

// ObjectInfo is a snapshot of one object for inspection and reporting.
type ObjectInfo struct {
	ID          ObjectID `json:"id"`
	Label       string   `json:"label"`
	State       string   `json:"state"`
	StrongCount int      `json:"strong_count"`
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithClock sets the sequencer used to stamp events.
func WithClock(c Sequencer) Option {
	return func(s *Simulator) {
		s.clock = c
	}
}

// WithTokenGenerator sets the generator for the run token.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Simulator) {
		s.tokens = g
	}
}

// WithLogger sets the structured logger. Defaults to discarding output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers an observer. May be given more than once;
// observers are notified in registration order.
func WithObserver(o Observer) Option {
	return func(s *Simulator) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// Simulator is an arena of objects and the references between them.
type Simulator struct {
	clock     Sequencer
	tokens    TokenGenerator
	logger    *slog.Logger
	observers []Observer

	runToken   string
	root       *holder
	objects    map[ObjectID]*object
	refs       map[RefID]*reference
	scopes     []*Scope
	nextObject ObjectID
	nextRef    RefID
	events     []Event
	destroyed  []ObjectID
}

// New creates an empty simulator.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		clock:   NewClock(),
		tokens:  UUIDv7Generator{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		root:    &holder{fields: map[string]RefID{}},
		objects: make(map[ObjectID]*object),
		refs:    make(map[RefID]*reference),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runToken = s.tokens.Generate()
	return s
}

// RunToken returns the token that tags this simulator's event log.
func (s *Simulator) RunToken() string {
	return s.runToken
}

// CreateObject allocates a live object held strongly by Root.
func (s *Simulator) CreateObject(label string) ObjectID {
	id := s.allocate(label)
	s.link(s.root, id, Strong, "")
	return id
}

func (s *Simulator) allocate(label string) ObjectID {
	s.nextObject++
	id := s.nextObject
	s.objects[id] = &object{
		holder: holder{id: id, fields: map[string]RefID{}},
		label:  label,
		state:  Live,
	}
	s.emit(Event{Type: EventObjectCreated, Object: id, Label: label})
	s.logger.Debug("object created", "object", id, "label", label)
	return id
}

// AddReference creates a reference of kind from a holder to a live target.
//
// from is Root or a live object. Fails with DANGLING_TARGET when to is
// destroyed or was never allocated, and with INVALID_HOLDER when from is not
// a live holder.
func (s *Simulator) AddReference(from, to ObjectID, kind RefKind) (RefID, error) {
	h, err := s.holderFor(from)
	if err != nil {
		return 0, err
	}
	return s.addReference(h, to, kind, "")
}

func (s *Simulator) addReference(h *holder, to ObjectID, kind RefKind, field string) (RefID, error) {
	if kind < Strong || kind > Unowned {
		return 0, newInvalidKindError(kind)
	}
	target, ok := s.objects[to]
	if !ok || to == Root {
		return 0, newDanglingTargetError(h.id, to, false)
	}
	if target.state != Live {
		return 0, newDanglingTargetError(h.id, to, true)
	}
	return s.link(h, to, kind, field), nil
}

// link records a reference whose endpoints are already validated.
func (s *Simulator) link(h *holder, to ObjectID, kind RefKind, field string) RefID {
	s.nextRef++
	r := &reference{id: s.nextRef, kind: kind, from: h, to: to, field: field}
	s.refs[r.id] = r
	h.refs = append(h.refs, r.id)

	target := s.objects[to]
	switch kind {
	case Strong:
		target.strong++
	case Weak:
		target.weakIn = append(target.weakIn, r.id)
	}

	s.emit(Event{
		Type:   EventReferenceAdded,
		Object: to,
		Ref:    r.id,
		Kind:   kind,
		Holder: h.id,
		Scope:  h.scope,
		Field:  field,
	})
	return r.id
}

// SetField stores a reference to to in the holder's named field, replacing
// (and releasing) whatever the field held before. The new reference is
// taken before the old one is released, so reassigning a field to its
// current strong target never destroys it.
func (s *Simulator) SetField(from ObjectID, field string, to ObjectID, kind RefKind) (RefID, error) {
	h, err := s.holderFor(from)
	if err != nil {
		return 0, err
	}
	return s.setField(h, field, to, kind)
}

func (s *Simulator) setField(h *holder, field string, to ObjectID, kind RefKind) (RefID, error) {
	if field == "" {
		return 0, fmt.Errorf("set field: empty field name")
	}
	old, hadOld := h.fields[field]
	id, err := s.addReference(h, to, kind, field)
	if err != nil {
		return 0, err
	}
	h.fields[field] = id
	if hadOld {
		if r, ok := s.refs[old]; ok {
			s.release(r)
		}
	}
	return id, nil
}

// ClearField releases the reference stored in the holder's field. Clearing
// an empty field is a no-op.
func (s *Simulator) ClearField(from ObjectID, field string) error {
	h, err := s.holderFor(from)
	if err != nil {
		return err
	}
	s.clearField(h, field)
	return nil
}

func (s *Simulator) clearField(h *holder, field string) {
	if id, ok := h.fields[field]; ok {
		if r, ok := s.refs[id]; ok {
			s.release(r)
		}
	}
}

// Field returns the reference stored in the holder's field.
func (s *Simulator) Field(from ObjectID, field string) (RefID, bool) {
	h, err := s.holderFor(from)
	if err != nil {
		return 0, false
	}
	id, ok := h.fields[field]
	return id, ok
}

// ReleaseStrong releases the earliest strong reference from the holder to
// to. If that was the target's last strong reference the target is
// destroyed, cascading through everything it alone kept alive.
func (s *Simulator) ReleaseStrong(from, to ObjectID) error {
	h, err := s.holderFor(from)
	if err != nil {
		return err
	}
	return s.releaseStrong(h, to)
}

func (s *Simulator) releaseStrong(h *holder, to ObjectID) error {
	for _, id := range h.refs {
		r := s.refs[id]
		if r.kind == Strong && r.to == to {
			s.release(r)
			return nil
		}
	}
	return &RuntimeError{
		Code:    ErrCodeNoStrongReference,
		Message: fmt.Sprintf("holder holds no strong reference to object %d", to),
		Holder:  h.id,
		Target:  to,
	}
}

// ReleaseReference releases a reference of any kind.
func (s *Simulator) ReleaseReference(ref RefID) error {
	r, ok := s.refs[ref]
	if !ok {
		return newUnknownReferenceError(ref)
	}
	s.release(r)
	return nil
}

// release detaches r from its holder and applies its kind's release rule.
func (s *Simulator) release(r *reference) {
	delete(s.refs, r.id)
	r.from.remove(r.id)
	if r.field != "" && r.from.fields[r.field] == r.id {
		delete(r.from.fields, r.field)
	}

	s.emit(Event{
		Type:   EventReferenceReleased,
		Object: r.to,
		Ref:    r.id,
		Kind:   r.kind,
		Holder: r.from.id,
		Scope:  r.from.scope,
		Field:  r.field,
	})

	target := s.objects[r.to]
	switch r.kind {
	case Strong:
		target.strong--
		if target.strong == 0 {
			s.destroy(target)
		}
	case Weak:
		if !r.cleared {
			if i := slices.Index(target.weakIn, r.id); i >= 0 {
				target.weakIn = slices.Delete(target.weakIn, i, i+1)
			}
		}
	}
}

// destroy runs exactly once per object, when its strong count reaches 0.
// Order: mark destroyed, empty inbound weak references, then release the
// object's own references in insertion order.
func (s *Simulator) destroy(o *object) {
	o.state = Destroyed
	s.destroyed = append(s.destroyed, o.id)
	s.emit(Event{Type: EventObjectDestroyed, Object: o.id, Label: o.label})
	s.logger.Debug("object destroyed", "object", o.id, "label", o.label)

	for _, id := range o.weakIn {
		r := s.refs[id]
		r.cleared = true
		s.emit(Event{
			Type:   EventWeakCleared,
			Object: o.id,
			Ref:    r.id,
			Kind:   Weak,
			Holder: r.from.id,
			Scope:  r.from.scope,
			Field:  r.field,
		})
	}
	o.weakIn = nil

	owned := slices.Clone(o.refs)
	for _, id := range owned {
		if r, ok := s.refs[id]; ok {
			s.release(r)
		}
	}
}

// ReadWeak reads a weak reference. ok is false once the target has been
// destroyed. The error is reserved for misuse: an unknown reference or one
// that is not weak.
func (s *Simulator) ReadWeak(ref RefID) (target ObjectID, ok bool, err error) {
	r, found := s.refs[ref]
	if !found {
		return 0, false, newUnknownReferenceError(ref)
	}
	if r.kind != Weak {
		return 0, false, newKindMismatchError(ref, r.kind, Weak)
	}
	if r.cleared {
		return 0, false, nil
	}
	return r.to, true, nil
}

// ReadUnowned reads an unowned reference. Reading after the target has been
// destroyed returns a fatal DANGLING_REFERENCE error; it is never reported
// as an empty result.
func (s *Simulator) ReadUnowned(ref RefID) (ObjectID, error) {
	r, found := s.refs[ref]
	if !found {
		return 0, newUnknownReferenceError(ref)
	}
	if r.kind != Unowned {
		return 0, newKindMismatchError(ref, r.kind, Unowned)
	}
	if s.objects[r.to].state != Live {
		s.emit(Event{
			Type:   EventDanglingRead,
			Object: r.to,
			Ref:    r.id,
			Kind:   Unowned,
			Holder: r.from.id,
			Scope:  r.from.scope,
			Field:  r.field,
		})
		s.logger.Error("dangling unowned read", "ref", r.id, "object", r.to)
		return 0, newDanglingReferenceError(r.id, r.from.id, r.to)
	}
	return r.to, nil
}

// MustReadUnowned is like ReadUnowned but panics with the *RuntimeError.
func (s *Simulator) MustReadUnowned(ref RefID) ObjectID {
	id, err := s.ReadUnowned(ref)
	if err != nil {
		panic(err)
	}
	return id
}

// ReadStrong reads a strong reference. Strong targets are always live.
func (s *Simulator) ReadStrong(ref RefID) (ObjectID, error) {
	r, found := s.refs[ref]
	if !found {
		return 0, newUnknownReferenceError(ref)
	}
	if r.kind != Strong {
		return 0, newKindMismatchError(ref, r.kind, Strong)
	}
	return r.to, nil
}

// Kind returns the kind of a held reference.
func (s *Simulator) Kind(ref RefID) (RefKind, bool) {
	r, ok := s.refs[ref]
	if !ok {
		return 0, false
	}
	return r.kind, true
}

// Shutdown ends the program: open scopes are closed, most recent first,
// then every Root reference is released in insertion order. It returns the
// objects still live afterwards, which are kept alive only by strong cycles.
func (s *Simulator) Shutdown() []ObjectID {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		s.scopes[i].close()
	}
	s.scopes = nil
	for _, id := range slices.Clone(s.root.refs) {
		if r, ok := s.refs[id]; ok {
			s.release(r)
		}
	}
	leaked := s.Live()
	if len(leaked) > 0 {
		s.logger.Warn("objects leaked at shutdown", "count", len(leaked))
	}
	return leaked
}

// IsLive reports whether id names a live object.
func (s *Simulator) IsLive(id ObjectID) bool {
	o, ok := s.objects[id]
	return ok && o.state == Live
}

// StrongCount returns the number of strong references to id.
func (s *Simulator) StrongCount(id ObjectID) (int, error) {
	o, ok := s.objects[id]
	if !ok {
		return 0, newDanglingTargetError(Root, id, false)
	}
	return o.strong, nil
}

// Label returns the label the object was created with.
func (s *Simulator) Label(id ObjectID) string {
	if o, ok := s.objects[id]; ok {
		return o.label
	}
	return ""
}

// Objects returns a snapshot of every object ever allocated, by ID.
func (s *Simulator) Objects() []ObjectInfo {
	out := make([]ObjectInfo, 0, len(s.objects))
	for id := ObjectID(1); id <= s.nextObject; id++ {
		o := s.objects[id]
		out = append(out, ObjectInfo{ID: id, Label: o.label, State: o.state.String(), StrongCount: o.strong})
	}
	return out
}

// Live returns the IDs of live objects in ascending order.
func (s *Simulator) Live() []ObjectID {
	var out []ObjectID
	for id := ObjectID(1); id <= s.nextObject; id++ {
		if s.objects[id].state == Live {
			out = append(out, id)
		}
	}
	return out
}

// Destroyed returns object IDs in the order they were destroyed.
func (s *Simulator) Destroyed() []ObjectID {
	return slices.Clone(s.destroyed)
}

// Events returns a copy of the event log.
func (s *Simulator) Events() []Event {
	return slices.Clone(s.events)
}

// Digest fingerprints the event log under the run token.
func (s *Simulator) Digest() (string, error) {
	records := make([]ir.IRObject, len(s.events))
	for i, e := range s.events {
		records[i] = e.Record()
	}
	return ir.TraceDigest(s.runToken, records)
}

func (s *Simulator) holderFor(id ObjectID) (*holder, error) {
	if id == Root {
		return s.root, nil
	}
	o, ok := s.objects[id]
	if !ok {
		return nil, newInvalidHolderError(id, false)
	}
	if o.state != Live {
		return nil, newInvalidHolderError(id, true)
	}
	return &o.holder, nil
}

func (s *Simulator) emit(e Event) {
	e.Seq = s.clock.Next()
	s.events = append(s.events, e)
	for _, o := range s.observers {
		o.OnEvent(e)
	}
}
