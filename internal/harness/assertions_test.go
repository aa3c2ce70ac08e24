package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	r := NewResult()
	r.Live = []string{"keeper"}
	r.Destroyed = []string{"b", "a"}
	r.StrongCounts = map[string]int{"keeper": 1, "a": 0, "b": 0}
	r.Trace = []TraceEvent{
		{Seq: 1, Type: "object_created"},
		{Seq: 2, Type: "object_created"},
		{Seq: 3, Type: "object_destroyed"},
		{Seq: 4, Type: "weak_cleared"},
		{Seq: 5, Type: "object_destroyed"},
	}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertDestroyedOrder, Objects: []string{"b", "a"}},
		{Type: AssertLive, Objects: []string{"keeper"}},
		{Type: AssertDestroyed, Objects: []string{"a"}},
		{Type: AssertEventCount, Event: "object_destroyed", Count: 2},
		{Type: AssertEventCount, Event: "dangling_read", Count: 0},
		{Type: AssertExpr, Expr: `"a" in destroyed && strong.keeper == 1`},
		{Type: AssertExpr, Expr: `events.weak_cleared == 1 && events.dangling_read == 0 && !halted`},
		{Type: AssertExpr, Expr: `len(leaked) == 0`},
	}
	assert.Empty(t, EvaluateAssertions(sampleResult(), assertions))
}

func TestEvaluateAssertions_Fail(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"order", Assertion{Type: AssertDestroyedOrder, Objects: []string{"a", "b"}}, "expected: [a, b]"},
		{"live", Assertion{Type: AssertLive}, "actual:   [keeper]"},
		{"destroyed", Assertion{Type: AssertDestroyed, Objects: []string{"keeper"}}, "missing keeper"},
		{"leaked", Assertion{Type: AssertLeaked, Objects: []string{"a"}}, "missing a"},
		{"count", Assertion{Type: AssertEventCount, Event: "weak_cleared", Count: 3}, "3 weak_cleared events"},
		{"expr false", Assertion{Type: AssertExpr, Expr: "len(live) == 0"}, "len(live) == 0"},
		{"expr runtime", Assertion{Type: AssertExpr, Expr: "destroyed[5] == \"x\""}, "expr"},
		{"unknown", Assertion{Type: "bogus"}, "unknown assertion type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			require.Len(t, failures, 1)
			assert.Contains(t, failures[0], "assertions[0]")
			assert.Contains(t, failures[0], tt.want)
		})
	}
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertLive, Expected: "[a]", Actual: "[]"}
	assert.Equal(t, "assertion failed: live\n  expected: [a]\n  actual:   []", err.Error())
}
