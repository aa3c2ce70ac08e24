package accessor

// Lazy holds a value that is produced on first read. The producer runs at
// most once; a Set before the first read discards it without running it.
type Lazy[T any] struct {
	producer    func() T
	value       T
	initialized bool
	cfg         config[T]
}

// NewLazy wraps producer. A nil producer materializes the zero value.
func NewLazy[T any](producer func() T, opts ...Option[T]) *Lazy[T] {
	return &Lazy[T]{producer: producer, cfg: newConfig(opts)}
}

// Get returns the value, running the producer if this is the first read.
func (l *Lazy[T]) Get() T {
	hit := l.initialized
	if !l.initialized {
		if l.producer != nil {
			l.value = l.producer()
		}
		l.producer = nil
		l.initialized = true
	}
	l.cfg.observe(Access{Container: ContainerLazy, Op: "get", Hit: hit})
	return l.value
}

// Set replaces the value. A pending producer is discarded unrun.
func (l *Lazy[T]) Set(v T) {
	l.value = v
	l.producer = nil
	l.initialized = true
	l.cfg.observe(Access{Container: ContainerLazy, Op: "set"})
}

// Initialized reports whether the value has been materialized or set.
func (l *Lazy[T]) Initialized() bool {
	return l.initialized
}
