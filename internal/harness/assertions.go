package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/memostore/internal/memo"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %v -> %s\n", ev.Seq, ev.Action, ev.Args, ev.Outcome)
	}
	return buf.String()
}

// evaluateAssertions checks every assertion and returns the failure
// messages.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion, result *Result) []string {
	var msgs []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, a, result); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion, result *Result) error {
	switch a.Type {
	case AssertEventCount:
		if got := len(result.Events); got != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d events", a.Count),
				Actual:   fmt.Sprintf("%d events", got),
				Trace:    result.Trace,
			}
		}
		return nil

	case AssertExists, AssertAbsent:
		addr, err := h.resolve(a.Address)
		if err != nil {
			return err
		}
		_, err = h.service.Load(ctx, addr)
		exists := err == nil
		if err != nil && !errors.Is(err, memo.ErrNotFound) {
			return err
		}
		if exists != (a.Type == AssertExists) {
			state := map[bool]string{true: "memo present", false: "no memo"}
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s at %s", state[a.Type == AssertExists], a.Address),
				Actual:   state[exists],
				Trace:    result.Trace,
			}
		}
		return nil

	case AssertBalance:
		got, err := h.store.Balance(ctx, h.identities[a.Identity])
		if err != nil {
			return err
		}
		if got != a.Amount {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s has %d", a.Identity, a.Amount),
				Actual:   fmt.Sprintf("%d", got),
				Trace:    result.Trace,
			}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}
