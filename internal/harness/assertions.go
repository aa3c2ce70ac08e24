package harness

import (
	"fmt"
	"slices"
	"strings"

	exprlang "github.com/expr-lang/expr"

	"github.com/roach88/lifetimes/internal/refgraph"
)

// Assertion type constants.
const (
	AssertDestroyedOrder = "destroyed_order"
	AssertLive           = "live"
	AssertDestroyed      = "destroyed"
	AssertLeaked         = "leaked"
	AssertEventCount     = "event_count"
	AssertExpr           = "expr"
)

// Assertion checks the final state or trace of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Objects lists aliases. destroyed_order and live compare it exactly;
	// destroyed and leaked require each alias to be present.
	Objects []string `yaml:"objects,omitempty"`

	// Event and Count are used by event_count.
	Event string `yaml:"event,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Expr is a boolean expr-lang expression for the expr type.
	Expr string `yaml:"expr,omitempty"`
}

var eventTypes = []refgraph.EventType{
	refgraph.EventScopeOpened,
	refgraph.EventScopeClosed,
	refgraph.EventObjectCreated,
	refgraph.EventReferenceAdded,
	refgraph.EventReferenceReleased,
	refgraph.EventObjectDestroyed,
	refgraph.EventWeakCleared,
	refgraph.EventDanglingRead,
}

func validateAssertion(a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertDestroyedOrder, AssertLive:
	case AssertDestroyed, AssertLeaked:
		if len(a.Objects) == 0 {
			return fmt.Errorf("objects list is required for %s", a.Type)
		}
	case AssertEventCount:
		if !slices.Contains(eventTypes, refgraph.EventType(a.Event)) {
			return fmt.Errorf("unknown event type %q", a.Event)
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative")
		}
	case AssertExpr:
		if a.Expr == "" {
			return fmt.Errorf("expr is required")
		}
		if _, err := exprlang.Compile(a.Expr, exprlang.Env(exprEnv(NewResult())), exprlang.AsBool()); err != nil {
			return fmt.Errorf("expr: %w", err)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s\n  expected: %s\n  actual:   %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertDestroyedOrder:
		return assertExact(a.Type, a.Objects, result.Destroyed)
	case AssertLive:
		return assertExact(a.Type, a.Objects, result.Live)
	case AssertDestroyed:
		return assertContains(a.Type, a.Objects, result.Destroyed)
	case AssertLeaked:
		return assertContains(a.Type, a.Objects, result.Leaked)
	case AssertEventCount:
		n := countEvents(result.Trace)[a.Event]
		if n != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d %s events", a.Count, a.Event),
				Actual:   fmt.Sprintf("%d", n),
			}
		}
		return nil
	case AssertExpr:
		return assertExpr(result, a.Expr)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertExact(typ string, want, got []string) error {
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(want, got) {
		return &AssertionError{Type: typ, Expected: formatAliases(want), Actual: formatAliases(got)}
	}
	return nil
}

func assertContains(typ string, want, got []string) error {
	var missing []string
	for _, alias := range want {
		if !slices.Contains(got, alias) {
			missing = append(missing, alias)
		}
	}
	if len(missing) > 0 {
		return &AssertionError{
			Type:     typ,
			Expected: formatAliases(want),
			Actual:   fmt.Sprintf("%s (missing %s)", formatAliases(got), strings.Join(missing, ", ")),
		}
	}
	return nil
}

func formatAliases(aliases []string) string {
	return "[" + strings.Join(aliases, ", ") + "]"
}

func countEvents(trace []TraceEvent) map[string]int {
	counts := make(map[string]int, len(eventTypes))
	for _, t := range eventTypes {
		counts[string(t)] = 0
	}
	for _, e := range trace {
		counts[e.Type]++
	}
	return counts
}

// exprEnv exposes a result to expr-lang assertions.
func exprEnv(result *Result) map[string]any {
	leaked := result.Leaked
	if leaked == nil {
		leaked = []string{}
	}
	return map[string]any{
		"live":      result.Live,
		"destroyed": result.Destroyed,
		"leaked":    leaked,
		"events":    countEvents(result.Trace),
		"strong":    result.StrongCounts,
		"halted":    result.Halted,
	}
}

func assertExpr(result *Result, expression string) error {
	env := exprEnv(result)
	program, err := exprlang.Compile(expression, exprlang.Env(env), exprlang.AsBool())
	if err != nil {
		return fmt.Errorf("expr %q: %w", expression, err)
	}
	out, err := exprlang.Run(program, env)
	if err != nil {
		return fmt.Errorf("expr %q: %w", expression, err)
	}
	if ok, _ := out.(bool); !ok {
		return &AssertionError{Type: AssertExpr, Expected: expression, Actual: "false"}
	}
	return nil
}
