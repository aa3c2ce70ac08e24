package harness

import "github.com/roach88/lifetimes/internal/refgraph"

// TraceEvent is a simulator event with object IDs replaced by scenario
// aliases.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Type   string `json:"type"`
	Object string `json:"object,omitempty"`
	Label  string `json:"label,omitempty"`
	Ref    int64  `json:"ref,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Holder string `json:"holder,omitempty"`
	Scope  string `json:"scope,omitempty"`
	Field  string `json:"field,omitempty"`
}

func (e TraceEvent) record() map[string]any {
	m := map[string]any{
		"seq":  e.Seq,
		"type": e.Type,
	}
	for k, v := range map[string]string{
		"object": e.Object,
		"label":  e.Label,
		"kind":   e.Kind,
		"holder": e.Holder,
		"scope":  e.Scope,
		"field":  e.Field,
	} {
		if v != "" {
			m[k] = v
		}
	}
	if e.Ref != 0 {
		m["ref"] = e.Ref
	}
	return m
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every step met its expectation and every assertion
	// held.
	Pass bool `json:"pass"`

	RunToken string `json:"run_token"`

	// Digest fingerprints the raw event log.
	Digest string `json:"digest"`

	// Halted is set when a fatal runtime error stopped the run early.
	Halted bool `json:"halted,omitempty"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Live lists aliases of objects live at the end, by creation order.
	Live []string `json:"live"`

	// Destroyed lists aliases in destruction order.
	Destroyed []string `json:"destroyed"`

	// Leaked lists aliases still live after a shutdown step.
	Leaked []string `json:"leaked,omitempty"`

	// StrongCounts maps every alias to its final strong reference count.
	StrongCounts map[string]int `json:"strong_counts"`

	// Events is the raw event log, for persistence.
	Events []refgraph.Event `json:"-"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:         true,
		Trace:        []TraceEvent{},
		Errors:       []string{},
		Live:         []string{},
		Destroyed:    []string{},
		StrongCounts: map[string]int{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
