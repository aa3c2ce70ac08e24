package accessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/lifetimes/internal/kv"
)

// PersistedDefault is a typed view of one key in an external store.
//
// Reads return the stored value when it is present and decodes as T, and
// the default otherwise. Writes go straight to the store: Set returns only
// after the store call returns.
type PersistedDefault[T any] struct {
	store kv.Store
	key   string
	cfg   config[T]
}

// NewPersistedDefault binds key in store. Use WithDefault to set the
// fallback value and WithCodec to change the encoding.
func NewPersistedDefault[T any](store kv.Store, key string, opts ...Option[T]) (*PersistedDefault[T], error) {
	if store == nil {
		return nil, errors.New("accessor: nil store")
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	return &PersistedDefault[T]{store: store, key: key, cfg: newConfig(opts)}, nil
}

// Key returns the bound key.
func (p *PersistedDefault[T]) Key() string {
	return p.key
}

// Default returns the fallback value, if one was configured.
func (p *PersistedDefault[T]) Default() (T, bool) {
	if p.cfg.def == nil {
		var zero T
		return zero, false
	}
	return *p.cfg.def, true
}

// Get returns the stored value, or the default when the key is absent or
// holds a value of another type. ok is false only when neither exists.
// Store failures are returned as *StoreError.
func (p *PersistedDefault[T]) Get(ctx context.Context) (value T, ok bool, err error) {
	data, found, err := p.store.Get(ctx, p.key)
	if err != nil {
		var zero T
		return zero, false, &StoreError{Op: "get", Key: p.key, Err: err}
	}
	if found {
		v, decodeErr := p.cfg.codec.Decode(data)
		if decodeErr == nil {
			p.cfg.observe(Access{Container: ContainerPersisted, Op: "get", Key: p.key, Hit: true})
			return v, true, nil
		}
		p.cfg.logger.Debug("stored value does not decode, using default",
			"key", p.key, "error", decodeErr)
	}
	p.cfg.observe(Access{Container: ContainerPersisted, Op: "get", Key: p.key})
	def, hasDefault := p.Default()
	return def, hasDefault, nil
}

// Set writes *v to the store, or removes the key when v is nil.
func (p *PersistedDefault[T]) Set(ctx context.Context, v *T) error {
	p.cfg.observe(Access{Container: ContainerPersisted, Op: "set", Key: p.key})
	if v == nil {
		if err := p.store.Remove(ctx, p.key); err != nil {
			return &StoreError{Op: "remove", Key: p.key, Err: err}
		}
		p.cfg.logger.Debug("persisted value removed", "key", p.key)
		return nil
	}

	data, err := p.cfg.codec.Encode(*v)
	if err != nil {
		return fmt.Errorf("accessor: encode %q: %w", p.key, err)
	}
	if err := p.store.Set(ctx, p.key, data); err != nil {
		return &StoreError{Op: "set", Key: p.key, Err: err}
	}
	p.cfg.logger.Debug("persisted value written", "key", p.key, "bytes", len(data))
	return nil
}

// Put writes v.
func (p *PersistedDefault[T]) Put(ctx context.Context, v T) error {
	return p.Set(ctx, &v)
}

// Clear removes the key so reads fall back to the default.
func (p *PersistedDefault[T]) Clear(ctx context.Context) error {
	return p.Set(ctx, nil)
}
