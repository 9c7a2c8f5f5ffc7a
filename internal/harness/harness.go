package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/memostore/internal/address"
	"github.com/roach88/memostore/internal/config"
	"github.com/roach88/memostore/internal/events"
	"github.com/roach88/memostore/internal/identity"
	"github.com/roach88/memostore/internal/memo"
	"github.com/roach88/memostore/internal/storage"
	"github.com/roach88/memostore/internal/storage/memstore"
	"github.com/roach88/memostore/internal/testutil"
)

// Harness holds the per-run state of one scenario.
type Harness struct {
	service    *memo.Service
	store      *memstore.Store
	recorder   *events.Recorder
	identities map[string]address.Pubkey
	saved      map[string]address.Pubkey
	logger     *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory store for isolation. A failed
// expectation is recorded on the result; only infrastructure failures and
// unresolvable references return an error.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	programHex := scenario.Program
	if programHex == "" {
		programHex = config.DefaultProgramID
	}
	program, err := address.ParsePubkey(programHex)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}

	var rent storage.Rent
	if scenario.Rent != nil {
		rent = storage.Rent{BaseBytes: scenario.Rent.BaseBytes, PerByte: scenario.Rent.PerByte}
	}
	st := memstore.New(rent)
	defer st.Close()

	clk := testutil.NewDeterministicClock()
	if scenario.Timestamp != 0 {
		clk = testutil.NewDeterministicClockAt(scenario.Timestamp)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := events.NewRecorder()
	h := &Harness{
		service:    memo.NewService(program, st, clk, events.NewEmitter(recorder, logger)),
		store:      st,
		recorder:   recorder,
		identities: make(map[string]address.Pubkey, len(scenario.Identities)),
		saved:      make(map[string]address.Pubkey),
		logger:     logger,
	}

	result := NewResult()
	for _, name := range scenario.Identities {
		pk := identity.Named(name)
		h.identities[name] = pk
		result.names[pk.String()] = name
	}
	for _, name := range scenario.Identities {
		if amount, ok := scenario.Fund[name]; ok {
			if _, err := st.Fund(ctx, h.identities[name], amount); err != nil {
				return nil, fmt.Errorf("fund %s: %w", name, err)
			}
		}
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}
	}
	result.Events = recorder.Events()

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions, result) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep runs one step, records it in the trace and checks its
// expectation.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	args, out, opErr, err := h.invoke(ctx, step, result)
	if err != nil {
		return err
	}

	outcome := OutcomeOK
	if opErr != nil {
		kind, ok := memo.KindOf(opErr)
		if !ok {
			return opErr
		}
		outcome = string(kind)
		out = nil
	}
	result.AddStepTrace(step.Action, args, outcome, out)

	h.logger.Debug("step completed", "step", i+1, "action", step.Action, "outcome", outcome)

	if step.Save != "" && opErr == nil {
		hexAddr, _ := out["address"].(string)
		addr, err := address.ParsePubkey(hexAddr)
		if err != nil {
			return fmt.Errorf("save %q: %w", step.Save, err)
		}
		h.saved[step.Save] = addr
	}

	checkExpectation(i, step, outcome, out, h.saved, result)
	return nil
}

// invoke calls the service. opErr is a domain failure that the scenario may
// expect; err aborts the run.
func (h *Harness) invoke(ctx context.Context, step Step, result *Result) (args, out map[string]any, opErr, err error) {
	switch step.Action {
	case ActionStore:
		text := step.Text
		args = map[string]any{"as": step.As, "nonce": step.Nonce}
		if step.TextLen > 0 {
			text = strings.Repeat("a", step.TextLen)
			args["text_len"] = step.TextLen
		} else {
			args["text"] = text
		}
		addr, cerr := h.service.Create(ctx, h.identities[step.As], step.Nonce, text)
		if cerr != nil {
			return args, nil, cerr, nil
		}
		rec, err := h.service.Load(ctx, addr)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reload created memo: %w", err)
		}
		return args, map[string]any{"address": addr.String(), "bump": rec.Bump}, nil, nil

	case ActionClose:
		args = map[string]any{"as": step.As, "address": step.Address}
		addr, err := h.resolve(step.Address)
		if err != nil {
			return nil, nil, nil, err
		}
		res, cerr := h.service.Delete(ctx, h.identities[step.As], addr)
		if cerr != nil {
			return args, nil, cerr, nil
		}
		return args, map[string]any{
			"address": res.Address.String(),
			"author":  result.displayName(res.Author.String()),
			"refund":  res.Refund,
		}, nil, nil

	case ActionLoad:
		args = map[string]any{"address": step.Address}
		addr, err := h.resolve(step.Address)
		if err != nil {
			return nil, nil, nil, err
		}
		rec, cerr := h.service.Load(ctx, addr)
		if cerr != nil {
			return args, nil, cerr, nil
		}
		return args, map[string]any{
			"address":   addr.String(),
			"author":    result.displayName(rec.Author.String()),
			"text":      rec.Text,
			"nonce":     rec.Nonce,
			"timestamp": rec.Timestamp,
			"bump":      rec.Bump,
		}, nil, nil

	case ActionDerive:
		args = map[string]any{"as": step.As, "nonce": step.Nonce}
		addr, bump := h.service.Derive(h.identities[step.As], step.Nonce)
		return args, map[string]any{"address": addr.String(), "bump": bump}, nil, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown action %q", step.Action)
}

// resolve maps a saved name or hex pubkey to an address.
func (h *Harness) resolve(ref string) (address.Pubkey, error) {
	if addr, ok := h.saved[ref]; ok {
		return addr, nil
	}
	addr, err := address.ParsePubkey(ref)
	if err != nil {
		return address.Pubkey{}, fmt.Errorf("address %q is neither a saved name nor a pubkey", ref)
	}
	return addr, nil
}

// checkExpectation compares a step outcome against its expect clause.
func checkExpectation(i int, step Step, outcome string, out map[string]any, saved map[string]address.Pubkey, result *Result) {
	want := OutcomeOK
	if step.Expect != nil && step.Expect.Error != "" {
		want = step.Expect.Error
	}
	if outcome != want {
		result.AddError(fmt.Sprintf("step %d (%s): expected %s, got %s", i+1, step.Action, want, outcome))
		return
	}
	if step.Expect == nil || outcome != OutcomeOK {
		return
	}

	for field, expected := range step.Expect.Fields {
		actual, ok := out[field]
		if !ok {
			result.AddError(fmt.Sprintf("step %d (%s): result has no field %q", i+1, step.Action, field))
			continue
		}
		if s, isRef := expected.(string); isRef {
			if addr, ok := saved[s]; ok {
				expected = addr.String()
			}
		}
		if !valuesEqual(expected, actual) {
			result.AddError(fmt.Sprintf("step %d (%s): field %q: expected %v, got %v", i+1, step.Action, field, expected, actual))
		}
	}
}

// valuesEqual compares a YAML-decoded expectation with a result value.
// Numbers decode from YAML as int while results carry sized integers, so
// both sides are compared in their printed form.
func valuesEqual(expected, actual any) bool {
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}
