package accessor

import (
	"cmp"
	"fmt"
)

// Clamped holds an ordered value kept within optional bounds. Bounds are
// fixed at construction. Every write, including the initial value, is
// checked against max first and then min.
type Clamped[T cmp.Ordered] struct {
	value T
	min   *T
	max   *T
	cfg   config[T]
}

// NewClamped builds a Clamped from initial and the WithMin/WithMax options.
// It fails with ErrMisconfiguredBounds when min > max or a bound is NaN.
func NewClamped[T cmp.Ordered](initial T, opts ...Option[T]) (*Clamped[T], error) {
	cfg := newConfig(opts)
	if cfg.min != nil && isNaN(*cfg.min) {
		return nil, fmt.Errorf("%w: min is NaN", ErrMisconfiguredBounds)
	}
	if cfg.max != nil && isNaN(*cfg.max) {
		return nil, fmt.Errorf("%w: max is NaN", ErrMisconfiguredBounds)
	}
	if cfg.min != nil && cfg.max != nil && cmp.Compare(*cfg.min, *cfg.max) > 0 {
		return nil, fmt.Errorf("%w: min %v > max %v", ErrMisconfiguredBounds, *cfg.min, *cfg.max)
	}

	c := &Clamped[T]{min: cfg.min, max: cfg.max, cfg: cfg}
	c.value, _ = c.clamp(initial)
	return c, nil
}

// Get returns the current value.
func (c *Clamped[T]) Get() T {
	c.cfg.observe(Access{Container: ContainerClamped, Op: "get"})
	return c.value
}

// Set stores v clamped into the bounds.
func (c *Clamped[T]) Set(v T) {
	var adjusted bool
	c.value, adjusted = c.clamp(v)
	c.cfg.observe(Access{Container: ContainerClamped, Op: "set", Adjusted: adjusted})
}

// Min returns the lower bound, if any.
func (c *Clamped[T]) Min() (T, bool) {
	return bound(c.min)
}

// Max returns the upper bound, if any.
func (c *Clamped[T]) Max() (T, bool) {
	return bound(c.max)
}

func (c *Clamped[T]) clamp(v T) (T, bool) {
	if c.max != nil && cmp.Compare(v, *c.max) > 0 {
		return *c.max, true
	}
	if c.min != nil && cmp.Compare(v, *c.min) < 0 {
		return *c.min, true
	}
	return v, false
}

func bound[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// isNaN reports whether v is a floating-point NaN, the only ordered value
// not equal to itself.
func isNaN[T cmp.Ordered](v T) bool {
	return v != v
}
