package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lifetimes/internal/refgraph"
)

// DefaultRunToken is the run token of scenarios that do not pin one.
const DefaultRunToken = "test-run-default"

// Scenario is one scripted run of the simulator.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// RunToken pins the run token. Defaults to DefaultRunToken.
	RunToken string `yaml:"run_token,omitempty"`

	// Classes lists CUE class definition files, relative to the scenario
	// file. When present, created objects may name a class and field kinds
	// and target types are checked against it.
	Classes []string `yaml:"classes,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

func (s *Scenario) runToken() string {
	if s.RunToken == "" {
		return DefaultRunToken
	}
	return s.RunToken
}

// Step is a single scenario action. Exactly one action key must be set.
type Step struct {
	Open     string `yaml:"open,omitempty"`
	Close    string `yaml:"close,omitempty"`
	Create   string `yaml:"create,omitempty"`
	Set      string `yaml:"set,omitempty"`
	Clear    string `yaml:"clear,omitempty"`
	Release  string `yaml:"release,omitempty"`
	Read     string `yaml:"read,omitempty"`
	Shutdown bool   `yaml:"shutdown,omitempty"`

	// Class labels a created object and enables field checks.
	Class string `yaml:"class,omitempty"`

	// In names the scope that holds a created object or that releases its
	// strong reference. Empty means Root.
	In string `yaml:"in,omitempty"`

	// To is the target alias of a set step.
	To string `yaml:"to,omitempty"`

	// Kind is the reference kind of a set step. Optional when the holder's
	// class declares the field.
	Kind string `yaml:"kind,omitempty"`

	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect describes the expected outcome of a step.
type StepExpect struct {
	// Target is the alias a read should resolve to.
	Target string `yaml:"target,omitempty"`

	// Empty means a weak read should find its target destroyed.
	Empty bool `yaml:"empty,omitempty"`

	// Error is the runtime error code the step should fail with.
	Error string `yaml:"error,omitempty"`
}

// Action returns the step's action name.
func (s Step) Action() string {
	switch {
	case s.Open != "":
		return "open"
	case s.Close != "":
		return "close"
	case s.Create != "":
		return "create"
	case s.Set != "":
		return "set"
	case s.Clear != "":
		return "clear"
	case s.Release != "":
		return "release"
	case s.Read != "":
		return "read"
	case s.Shutdown:
		return "shutdown"
	}
	return ""
}

func (s Step) actionCount() int {
	n := 0
	for _, v := range []string{s.Open, s.Close, s.Create, s.Set, s.Clear, s.Release, s.Read} {
		if v != "" {
			n++
		}
	}
	if s.Shutdown {
		n++
	}
	return n
}

// splitFieldPath splits "holder.field".
func splitFieldPath(path string) (holder, field string, err error) {
	holder, field, ok := strings.Cut(path, ".")
	if !ok || holder == "" || field == "" {
		return "", "", fmt.Errorf("%q is not of the form holder.field", path)
	}
	return holder, field, nil
}

// LoadScenario reads a scenario file. Unknown keys are rejected and class
// paths are resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, p := range scenario.Classes {
		if !filepath.IsAbs(p) {
			scenario.Classes[i] = filepath.Join(base, p)
		}
	}
	for _, p := range scenario.Classes {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("invalid scenario: class file not found: %s", p)
		}
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(&s.Assertions[i]); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.actionCount() {
	case 0:
		return fmt.Errorf("no action given")
	case 1:
	default:
		return fmt.Errorf("more than one action given")
	}

	action := step.Action()
	switch action {
	case "set":
		if step.To == "" {
			return fmt.Errorf("set: to is required")
		}
		if step.Kind != "" {
			if _, err := refgraph.ParseRefKind(step.Kind); err != nil {
				return fmt.Errorf("set: %w", err)
			}
		}
		if _, _, err := splitFieldPath(step.Set); err != nil {
			return fmt.Errorf("set: %w", err)
		}
	case "clear":
		if _, _, err := splitFieldPath(step.Clear); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
	case "read":
		if _, _, err := splitFieldPath(step.Read); err != nil {
			return fmt.Errorf("read: %w", err)
		}
	}

	if action != "create" && step.Class != "" {
		return fmt.Errorf("%s: class only applies to create", action)
	}
	if action != "create" && action != "release" && step.In != "" {
		return fmt.Errorf("%s: in only applies to create and release", action)
	}
	if action != "set" && (step.To != "" || step.Kind != "") {
		return fmt.Errorf("%s: to and kind only apply to set", action)
	}

	if e := step.Expect; e != nil {
		if (e.Target != "" || e.Empty) && action != "read" {
			return fmt.Errorf("%s: expect target and empty only apply to read", action)
		}
		if e.Target != "" && e.Empty {
			return fmt.Errorf("read: expect target and empty are exclusive")
		}
		if e.Error != "" && (e.Target != "" || e.Empty) {
			return fmt.Errorf("%s: expect error excludes target and empty", action)
		}
	}
	return nil
}
