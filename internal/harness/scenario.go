package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted playthrough with assertions on its trace and final
// state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is an optional experience config file or directory. Relative
	// paths are resolved against the scenario file. Empty runs the built-in
	// experience.
	Config string `yaml:"config,omitempty"`

	// ReducedMotion sets the initial reduced-motion preference.
	ReducedMotion bool `yaml:"reduced_motion,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scripted action.
type Step struct {
	// Do names the action, e.g. "advance" or "pulse".
	Do string `yaml:"do"`

	// Args holds the action arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect optionally checks the action's outcome.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks one step's outcome.
type Expect struct {
	// OK is the expected boolean result of the action.
	OK *bool `yaml:"ok,omitempty"`

	// Scene is the scene expected to be active after the action.
	Scene string `yaml:"scene,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an invocation or event matching Match appears
	// - "trace_order": Order appears as a subsequence of trace labels
	// - "trace_count": exactly Count entries match
	// - "final_state": State keys hold the Expect values
	Type string `yaml:"type"`

	// Action selects invocations of this action.
	Action string `yaml:"action,omitempty"`

	// Event selects session events of this kind.
	Event string `yaml:"event,omitempty"`

	// Match holds field values the selected entry must carry. Subset match.
	Match map[string]any `yaml:"match,omitempty"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`

	// Order is the expected label order (trace_order).
	Order []string `yaml:"order,omitempty"`

	// Expect contains expected state values (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. A relative Config path
// is resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields, or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	sc, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if sc.Config != "" && !filepath.IsAbs(sc.Config) {
		sc.Config = filepath.Join(filepath.Dir(path), sc.Config)
	}
	if sc.Config != "" {
		if _, err := os.Stat(sc.Config); err != nil {
			return nil, fmt.Errorf("invalid scenario: config not found: %s", sc.Config)
		}
	}
	return sc, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// validateScenario checks that required fields are present and valid.
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
		if step.Do == "" {
			return fmt.Errorf("steps[%d]: do is required", i)
		}
		if _, ok := actions[step.Do]; !ok {
			return fmt.Errorf("steps[%d]: unknown action %q", i, step.Do)
		}
		if step.Expect != nil && step.Expect.OK == nil && step.Expect.Scene == "" {
			return fmt.Errorf("steps[%d].expect: ok or scene is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains, AssertTraceCount:
		if (a.Action == "") == (a.Event == "") {
			return fmt.Errorf("assertions[%d]: exactly one of action or event is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Order) == 0 {
			return fmt.Errorf("assertions[%d]: order list is required for trace_order", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		for key := range a.Expect {
			if !stateKeys[key] {
				return fmt.Errorf("assertions[%d]: unknown state key %q", index, key)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
