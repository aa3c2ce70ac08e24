package accessor

import (
	"cmp"
	"io"
	"log/slog"
)

// Container names reported in Access records.
const (
	ContainerLazy      = "lazy"
	ContainerPersisted = "persisted"
	ContainerClamped   = "clamped"
)

// Access describes one getter or setter invocation on a container.
type Access struct {
	Container string
	Op        string // "get" or "set"
	Key       string // persisted containers only
	// Hit is true when a persisted read found a usable stored value, or when
	// a lazy read did not need to run the producer.
	Hit bool
	// Adjusted is true when a clamped write was moved onto a bound.
	Adjusted bool
}

// AccessObserver receives every Access.
type AccessObserver func(Access)

type config[T any] struct {
	def      *T
	min      *T
	max      *T
	codec    Codec[T]
	observer AccessObserver
	logger   *slog.Logger
}

func newConfig[T any](opts []Option[T]) config[T] {
	cfg := config[T]{
		codec:  JSONCodec[T]{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (c config[T]) observe(a Access) {
	if c.observer != nil {
		c.observer(a)
	}
}

// Option configures a container. Options that do not apply to a container
// are ignored by it.
type Option[T any] func(*config[T])

// WithDefault sets the value a PersistedDefault reads when its key is absent.
func WithDefault[T any](v T) Option[T] {
	return func(c *config[T]) {
		c.def = &v
	}
}

// WithCodec sets how a PersistedDefault encodes values. Defaults to JSON.
func WithCodec[T any](codec Codec[T]) Option[T] {
	return func(c *config[T]) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithMin sets the lower bound of a Clamped.
func WithMin[T cmp.Ordered](v T) Option[T] {
	return func(c *config[T]) {
		c.min = &v
	}
}

// WithMax sets the upper bound of a Clamped.
func WithMax[T cmp.Ordered](v T) Option[T] {
	return func(c *config[T]) {
		c.max = &v
	}
}

// WithObserver reports every getter and setter invocation to fn.
func WithObserver[T any](fn AccessObserver) Option[T] {
	return func(c *config[T]) {
		c.observer = fn
	}
}

// WithLogger sets the structured logger. Defaults to discarding output.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(c *config[T]) {
		if l != nil {
			c.logger = l
		}
	}
}
