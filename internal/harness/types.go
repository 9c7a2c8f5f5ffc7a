package harness

import (
	"github.com/roach88/memostore/internal/events"
)

// Outcome of a successful step.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int            `json:"seq"`
	Action  string         `json:"action"`
	Args    map[string]any `json:"args"`
	Outcome string         `json:"outcome"` // "ok" or a memo error kind
	Result  map[string]any `json:"result,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Events are the published MemoCreated events, in order.
	Events []events.MemoCreated `json:"-"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// names maps identity pubkeys back to scenario names for rendering.
	names map[string]string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		names:  make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace appends a step to the trace.
func (r *Result) AddStepTrace(action string, args map[string]any, outcome string, result map[string]any) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     len(r.Trace) + 1,
		Action:  action,
		Args:    args,
		Outcome: outcome,
		Result:  result,
	})
}

// displayName returns the scenario name of a pubkey in hex form, or the
// hex itself.
func (r *Result) displayName(hex string) string {
	if name, ok := r.names[hex]; ok {
		return name
	}
	return hex
}
