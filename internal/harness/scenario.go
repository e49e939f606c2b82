package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/scripthost/internal/entity"
)

// Scenario defines a script host test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files use it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the host program source, run as ${ROOT}/main.js.
	Program string `yaml:"program"`

	// Files are written under ${ROOT}, keyed by relative path.
	Files map[string]string `yaml:"files,omitempty"`

	// Remote scripts are served at ${REMOTE}, keyed by relative path.
	Remote map[string]string `yaml:"remote,omitempty"`

	// Steps drive the running host in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one action against the running host. Exactly one field is set.
type Step struct {
	LoadEntity   *LoadEntityStep `yaml:"load_entity,omitempty"`
	UnloadEntity string          `yaml:"unload_entity,omitempty"`
	DeleteEntity string          `yaml:"delete_entity,omitempty"`
	Emit         *EmitStep       `yaml:"emit,omitempty"`
	Call         *CallStep       `yaml:"call,omitempty"`
	Evaluate     string          `yaml:"evaluate,omitempty"`
	Wait         string          `yaml:"wait,omitempty"`
}

// LoadEntityStep loads an entity script.
type LoadEntityStep struct {
	Entity string `yaml:"entity"`
	Script string `yaml:"script"`
	Force  bool   `yaml:"force,omitempty"`
}

// EmitStep delivers an upstream entity event.
type EmitStep struct {
	Entity string `yaml:"entity"`
	Event  string `yaml:"event"`
	Args   []any  `yaml:"args,omitempty"`
}

// CallStep calls a method of an entity script.
type CallStep struct {
	Entity string `yaml:"entity"`
	Method string `yaml:"method"`
	Args   []any  `yaml:"args,omitempty"`
}

// Step names, as recorded in the trace.
const (
	StepLoadEntity   = "load_entity"
	StepUnloadEntity = "unload_entity"
	StepDeleteEntity = "delete_entity"
	StepEmit         = "emit"
	StepCall         = "call"
	StepEvaluate     = "evaluate"
	StepWait         = "wait"
)

// Kind returns the name of the step's action, or "" when none or several
// are set.
func (s Step) Kind() string {
	var kinds []string
	if s.LoadEntity != nil {
		kinds = append(kinds, StepLoadEntity)
	}
	if s.UnloadEntity != "" {
		kinds = append(kinds, StepUnloadEntity)
	}
	if s.DeleteEntity != "" {
		kinds = append(kinds, StepDeleteEntity)
	}
	if s.Emit != nil {
		kinds = append(kinds, StepEmit)
	}
	if s.Call != nil {
		kinds = append(kinds, StepCall)
	}
	if s.Evaluate != "" {
		kinds = append(kinds, StepEvaluate)
	}
	if s.Wait != "" {
		kinds = append(kinds, StepWait)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count,
	// host_state, final_state.
	Type string `yaml:"type"`

	// Event, Name, Entity and Message select trace events (trace_contains,
	// trace_count). Empty fields match anything.
	Event   string `yaml:"event,omitempty"`
	Name    string `yaml:"name,omitempty"`
	Entity  string `yaml:"entity,omitempty"`
	Message string `yaml:"message,omitempty"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected order of event keys (trace_order). See
	// TraceEvent.Key.
	Events []string `yaml:"events,omitempty"`

	// Table and Where select one database row (final_state).
	Table string         `yaml:"table,omitempty"`
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds expected values: host counters (host_state) or row
	// fields (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertHostState     = "host_state"
	AssertFinalState    = "final_state"
)

// Host state counters.
const (
	StateEntityScripts = "entity_scripts"
	StateTimers        = "timers"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, ok := s.Files["main.js"]; ok {
		return fmt.Errorf("files: main.js is reserved for the program")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s Step) error {
	kind := s.Kind()
	if kind == "" {
		return fmt.Errorf("steps[%d]: exactly one action is required", index)
	}

	var id string
	switch kind {
	case StepLoadEntity:
		if s.LoadEntity.Script == "" {
			return fmt.Errorf("steps[%d]: script is required for load_entity", index)
		}
		id = s.LoadEntity.Entity
	case StepUnloadEntity:
		id = s.UnloadEntity
	case StepDeleteEntity:
		id = s.DeleteEntity
	case StepEmit:
		if !entity.IsEventCategory(s.Emit.Event) {
			return fmt.Errorf("steps[%d]: unknown entity event %q", index, s.Emit.Event)
		}
		id = s.Emit.Entity
	case StepCall:
		if s.Call.Method == "" {
			return fmt.Errorf("steps[%d]: method is required for call", index)
		}
		id = s.Call.Entity
	case StepWait:
		d, err := time.ParseDuration(s.Wait)
		if err != nil || d < 0 {
			return fmt.Errorf("steps[%d]: invalid wait duration %q", index, s.Wait)
		}
		return nil
	case StepEvaluate:
		return nil
	}

	parsed, err := entity.Parse(id)
	if err != nil || parsed.IsNil() {
		return fmt.Errorf("steps[%d]: %s needs a valid entity id, got %q", index, kind, id)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertHostState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for host_state", index)
		}
		for key := range a.Expect {
			if key != StateEntityScripts && key != StateTimers {
				return fmt.Errorf("assertions[%d]: unknown host_state field %q", index, key)
			}
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
