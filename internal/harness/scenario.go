package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the hex program identity. Empty uses the default.
	Program string `yaml:"program,omitempty"`

	// Timestamp is the fixed unix time of every tick. Zero uses the default.
	Timestamp int64 `yaml:"timestamp,omitempty"`

	// Rent enables deposits. Nil runs without accounting.
	Rent *RentSpec `yaml:"rent,omitempty"`

	// Identities are the names steps may act as.
	Identities []string `yaml:"identities"`

	// Fund credits identities before the first step.
	Fund map[string]uint64 `yaml:"fund,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// RentSpec mirrors storage.Rent.
type RentSpec struct {
	BaseBytes int    `yaml:"base_bytes"`
	PerByte   uint64 `yaml:"per_byte"`
}

// Step is one call into the memo service.
type Step struct {
	// Action is one of store, close, load or derive.
	Action string `yaml:"action"`

	// As is the acting identity (the author for store and derive).
	As string `yaml:"as,omitempty"`

	Text    string `yaml:"text,omitempty"`
	TextLen int    `yaml:"text_len,omitempty"`
	Nonce   uint64 `yaml:"nonce,omitempty"`

	// Address is a saved name or a hex pubkey.
	Address string `yaml:"address,omitempty"`

	// Save names the resulting address for later steps.
	Save string `yaml:"save,omitempty"`

	// Expect checks the outcome. Nil expects success.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Error is the expected memo error kind, e.g. "Unauthorized".
	Error string `yaml:"error,omitempty"`

	// Fields is a subset match against the step result.
	Fields map[string]any `yaml:",inline"`
}

// Assertion validates the state at the end of a run.
type Assertion struct {
	Type     string `yaml:"type"`
	Count    int    `yaml:"count,omitempty"`
	Address  string `yaml:"address,omitempty"`
	Identity string `yaml:"identity,omitempty"`
	Amount   uint64 `yaml:"amount,omitempty"`
}

// Step actions.
const (
	ActionStore  = "store"
	ActionClose  = "close"
	ActionLoad   = "load"
	ActionDerive = "derive"
)

// Assertion type constants.
const (
	AssertEventCount = "event_count"
	AssertExists     = "exists"
	AssertAbsent     = "absent"
	AssertBalance    = "balance"
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

// ParseScenario parses and validates scenario YAML.
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

// validateScenario checks that required fields are present and that every
// name a step refers to is declared before use.
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

	identities := make(map[string]bool, len(s.Identities))
	for _, name := range s.Identities {
		if name == "" {
			return fmt.Errorf("identity names must be non-empty")
		}
		if identities[name] {
			return fmt.Errorf("duplicate identity %q", name)
		}
		identities[name] = true
	}
	for name := range s.Fund {
		if !identities[name] {
			return fmt.Errorf("fund: unknown identity %q", name)
		}
	}

	saved := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(step, identities, saved); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Save != "" {
			saved[step.Save] = true
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, identities); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, identities, saved map[string]bool) error {
	needsActor := false
	needsAddress := false
	switch step.Action {
	case ActionStore, ActionDerive:
		needsActor = true
	case ActionClose:
		needsActor, needsAddress = true, true
	case ActionLoad:
		needsAddress = true
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}

	if needsActor {
		if step.As == "" {
			return fmt.Errorf("%s: as is required", step.Action)
		}
		if !identities[step.As] {
			return fmt.Errorf("%s: unknown identity %q", step.Action, step.As)
		}
	}
	if needsAddress && step.Address == "" {
		return fmt.Errorf("%s: address is required", step.Action)
	}
	if step.Text != "" && step.TextLen > 0 {
		return fmt.Errorf("text and text_len are mutually exclusive")
	}
	if step.TextLen < 0 {
		return fmt.Errorf("text_len must be non-negative")
	}
	if step.Save != "" && saved[step.Save] {
		return fmt.Errorf("name %q already saved", step.Save)
	}
	return nil
}

func validateAssertion(a Assertion, identities map[string]bool) error {
	switch a.Type {
	case AssertEventCount:
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for event_count")
		}
	case AssertExists, AssertAbsent:
		if a.Address == "" {
			return fmt.Errorf("address is required for %s", a.Type)
		}
	case AssertBalance:
		if !identities[a.Identity] {
			return fmt.Errorf("unknown identity %q for balance", a.Identity)
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
