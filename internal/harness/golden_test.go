package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenarioDir = filepath.Join("..", "..", "testdata", "scenarios")

// TestScenarios runs the shipped scenarios and compares their traces with
// the golden files.
func TestScenarios(t *testing.T) {
	tests := []struct {
		name      string
		destroyed []string
		halted    bool
	}{
		{"weak_auto_nil", []string{"modelB1", "modelA1"}, false},
		{"unowned_dangling", []string{"modelB2"}, true},
		{"no_cascade", []string{"modelA3", "modelA4", "modelB3", "modelB4"}, false},
		{"student_unowned_card", []string{"bill", "card"}, false},
		{"student_weak_card", []string{"bill", "card"}, false},
		{"strong_cycle_leak", []string{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join(scenarioDir, tt.name+".yaml"))
			require.NoError(t, err)
			assert.Equal(t, tt.name, scenario.Name)
			assert.NotEmpty(t, scenario.RunToken)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)

			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, tt.destroyed, result.Destroyed)
			assert.Equal(t, tt.halted, result.Halted)
		})
	}
}

func TestSnapshot_Canonical(t *testing.T) {
	result := NewResult()
	result.RunToken = "tok"
	result.Digest = "abc"
	result.Trace = []TraceEvent{
		{Seq: 1, Type: "object_created", Object: "a", Label: "A"},
		{Seq: 2, Type: "reference_added", Object: "a", Ref: 1, Kind: "strong", Scope: "main"},
	}

	data, err := Snapshot("snap", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"digest":"abc","run_token":"tok","scenario_name":"snap","trace":[`+
			`{"label":"A","object":"a","seq":1,"type":"object_created"},`+
			`{"kind":"strong","object":"a","ref":1,"scope":"main","seq":2,"type":"reference_added"}]}`,
		string(data))
}

func TestRunFile(t *testing.T) {
	result, err := RunFile(filepath.Join(scenarioDir, "student_weak_card.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "test-run-student-weak", result.RunToken)
	assert.Len(t, result.Events, 15)

	_, err = RunFile(filepath.Join(scenarioDir, "missing.yaml"))
	assert.Error(t, err)
}
