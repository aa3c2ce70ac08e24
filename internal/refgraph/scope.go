package refgraph

import (
	"fmt"
	"slices"
)

// Scope is a local binding frame. References held by a scope are released,
// in the order they were added, when the scope closes.
type Scope struct {
	holder
	sim    *Simulator
	closed bool
}

// OpenScope opens a named binding frame.
func (s *Simulator) OpenScope(name string) *Scope {
	sc := &Scope{
		holder: holder{scope: name, fields: map[string]RefID{}},
		sim:    s,
	}
	s.scopes = append(s.scopes, sc)
	s.emit(Event{Type: EventScopeOpened, Scope: name})
	return sc
}

// Name returns the scope's name.
func (sc *Scope) Name() string {
	return sc.scope
}

// Closed reports whether the scope has been closed.
func (sc *Scope) Closed() bool {
	return sc.closed
}

// CreateObject allocates a live object held strongly by the scope.
func (sc *Scope) CreateObject(label string) (ObjectID, error) {
	if err := sc.check(); err != nil {
		return 0, err
	}
	id := sc.sim.allocate(label)
	sc.sim.link(&sc.holder, id, Strong, "")
	return id, nil
}

// AddReference creates a reference from the scope to a live target.
func (sc *Scope) AddReference(to ObjectID, kind RefKind) (RefID, error) {
	if err := sc.check(); err != nil {
		return 0, err
	}
	return sc.sim.addReference(&sc.holder, to, kind, "")
}

// SetField binds a named local variable, replacing its previous value.
func (sc *Scope) SetField(field string, to ObjectID, kind RefKind) (RefID, error) {
	if err := sc.check(); err != nil {
		return 0, err
	}
	return sc.sim.setField(&sc.holder, field, to, kind)
}

// ClearField releases a named local variable.
func (sc *Scope) ClearField(field string) error {
	if err := sc.check(); err != nil {
		return err
	}
	sc.sim.clearField(&sc.holder, field)
	return nil
}

// Field returns the reference bound to a named local variable.
func (sc *Scope) Field(field string) (RefID, bool) {
	id, ok := sc.fields[field]
	return id, ok
}

// ReleaseStrong releases the scope's earliest strong reference to to.
func (sc *Scope) ReleaseStrong(to ObjectID) error {
	if err := sc.check(); err != nil {
		return err
	}
	return sc.sim.releaseStrong(&sc.holder, to)
}

// Close releases every reference the scope holds. Closing a closed scope
// is a no-op.
func (sc *Scope) Close() error {
	if sc.closed {
		return nil
	}
	sc.close()
	if i := slices.Index(sc.sim.scopes, sc); i >= 0 {
		sc.sim.scopes = slices.Delete(sc.sim.scopes, i, i+1)
	}
	return nil
}

func (sc *Scope) close() {
	sc.closed = true
	for _, id := range slices.Clone(sc.refs) {
		if r, ok := sc.sim.refs[id]; ok {
			sc.sim.release(r)
		}
	}
	sc.sim.emit(Event{Type: EventScopeClosed, Scope: sc.scope})
}

func (sc *Scope) check() error {
	if sc.closed {
		return &RuntimeError{
			Code:    ErrCodeScopeClosed,
			Message: fmt.Sprintf("scope %q is closed", sc.scope),
		}
	}
	return nil
}
