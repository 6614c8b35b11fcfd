// Package executor carries out an approved plan as an ordered sequence of
// monetary operations. Steps run strictly sequentially because later steps
// depend on funds unlocked by earlier ones; the first failure aborts
// everything downstream. Once a step succeeds its on-chain effect is
// irreversible, so the final step list is preserved for reconciliation
// whatever the outcome.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ssandoval/treasury-cli/internal/custody"
	clierr "github.com/ssandoval/treasury-cli/internal/errors"
	"github.com/ssandoval/treasury-cli/internal/id"
	"github.com/ssandoval/treasury-cli/internal/model"
	"github.com/ssandoval/treasury-cli/internal/planner"
	"github.com/ssandoval/treasury-cli/internal/registry"
)

type Submitter interface {
	Submit(ctx context.Context, req custody.SubmitRequest) (string, error)
}

type Poller interface {
	Poll(ctx context.Context, handle string, interval, timeout time.Duration) (custody.PollResult, error)
}

// Recorder receives the terminal result for post-hoc reconciliation. It is
// never read back into an executor.
type Recorder interface {
	Record(result model.ExecutionResult) error
}

type Options struct {
	PollInterval time.Duration
	StepTimeout  time.Duration
}

func DefaultOptions() Options {
	return Options{PollInterval: 2 * time.Second, StepTimeout: 2 * time.Minute}
}

type Runtime struct {
	Submitter Submitter
	Poller    Poller
	Quoter    planner.Quoter
	Balances  planner.BalanceReader

	LiquidityWallet string

	// Events, when set, receives a StepUpdate for every status transition.
	// The caller must drain it; sends block.
	Events chan<- model.StepUpdate

	Journal Recorder
	Log     *slog.Logger
	Opts    Options

	now func() time.Time
}

// Execute consumes the plan exactly once. It returns with every step in a
// terminal state or still Pending-turned-Aborted; no step is left Running.
// There are no retries at this layer: a failed execution is reported upward
// for a human decision, and retrying means building a fresh plan.
func (r *Runtime) Execute(ctx context.Context, plan *model.Plan) model.ExecutionResult {
	if plan == nil {
		return model.ExecutionResult{Success: false, Error: "missing plan", CompletedAt: r.timestamp()}
	}
	if !plan.CanExecute {
		reason := plan.Reason
		if reason == "" {
			reason = "plan is not executable"
		}
		return r.finish(plan, false, reason)
	}
	if len(plan.Steps) == 0 {
		return r.finish(plan, false, "plan has no steps")
	}
	if r.Opts.PollInterval <= 0 {
		r.Opts.PollInterval = 2 * time.Second
	}
	if r.Opts.StepTimeout <= 0 {
		r.Opts.StepTimeout = 2 * time.Minute
	}

	for i := range plan.Steps {
		step := &plan.Steps[i]
		if step.Status == model.StepStatusSkipped || step.Status == model.StepStatusSuccess {
			continue
		}
		if err := r.runStep(ctx, plan, step); err != nil {
			r.failStep(plan, step, err)
			r.abortRemaining(plan, i+1)
			return r.finish(plan, false, fmt.Sprintf("step %s failed: %v", step.ID, err))
		}
	}
	return r.finish(plan, true, "")
}

// runStep drives one step from Pending to Success, or returns the error that
// should fail it. A panic while the step is in flight is converted to an
// error so the executor always terminates cleanly.
func (r *Runtime) runStep(ctx context.Context, plan *model.Plan, step *model.Step) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = clierr.New(clierr.CodeInternal, fmt.Sprintf("panic while executing step: %v", rec))
		}
	}()

	req, err := r.buildSubmitRequest(ctx, step)
	if err != nil {
		return err
	}

	handle, err := r.Submitter.Submit(ctx, req)
	if err != nil {
		return err
	}
	step.TxHandle = handle
	r.transition(plan, step, model.StepStatusRunning)

	result, err := r.Poller.Poll(ctx, handle, r.Opts.PollInterval, r.Opts.StepTimeout)
	if err != nil {
		return err
	}
	switch result.State {
	case custody.StateConfirmed:
		step.TxHash = result.TxHash
		r.transition(plan, step, model.StepStatusSuccess)
		return nil
	case custody.StateTimeout:
		return clierr.New(clierr.CodeConfirmTimeout, fmt.Sprintf(
			"no confirmation within %s; final on-chain state is unverified, check the chain before any retry", r.Opts.StepTimeout))
	case custody.StateFailed, custody.StateCancelled:
		return clierr.New(clierr.CodeUnavailable, result.ErrorReason)
	default:
		return clierr.New(clierr.CodeInternal, fmt.Sprintf("poller returned unknown state %q", result.State))
	}
}

// buildSubmitRequest turns a logical step into a concrete custody request.
// Swap bounds always come from a quote derived here, immediately before
// submission; the planning-time quote is never submitted.
func (r *Runtime) buildSubmitRequest(ctx context.Context, step *model.Step) (custody.SubmitRequest, error) {
	req := custody.SubmitRequest{
		SourceWallet:    step.SourceWallet,
		ChainID:         step.ChainID,
		Kind:            step.Kind,
		Asset:           step.Asset,
		AmountBaseUnits: step.AmountBaseUnits,
	}
	switch step.Kind {
	case model.StepKindTransfer:
		req.Recipient = step.Recipient
	case model.StepKindBridge:
		req.RouteRef = step.RouteRef
		req.DestChainID = step.DestChainID
	case model.StepKindSwap:
		maxInput, err := r.requoteSwap(ctx, step)
		if err != nil {
			return custody.SubmitRequest{}, err
		}
		req.PoolRef = step.PoolRef
		req.MaxInputBaseUnits = maxInput.String()
	default:
		return custody.SubmitRequest{}, clierr.New(clierr.CodeSubmission, fmt.Sprintf("unknown step kind %q", step.Kind))
	}
	return req, nil
}

func (r *Runtime) requoteSwap(ctx context.Context, step *model.Step) (*big.Int, error) {
	exactOut, err := id.ParseBaseUnits(step.AmountBaseUnits)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSubmission, "swap step has invalid output amount", err)
	}
	quote, err := r.Quoter.Quote(ctx, step.PoolRef, exactOut)
	if err != nil {
		return nil, err
	}
	maxInput, err := id.ParseBaseUnits(quote.MaxInputBaseUnits)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "parse re-quoted max input", err)
	}

	currency, ok := registry.LookupCurrency(step.Asset)
	if !ok {
		return nil, clierr.New(clierr.CodeInternal, fmt.Sprintf("swap step names unknown currency %q", step.Asset))
	}
	balances, err := r.Balances.Balances(ctx, r.LiquidityWallet)
	if err != nil {
		return nil, err
	}
	available := big.NewInt(0)
	for _, b := range balances {
		if b.ChainID == step.ChainID && b.Asset == currency.VolatileSymbol {
			if v, perr := id.ParseBaseUnits(b.AmountBaseUnits); perr == nil {
				available = v
			}
			break
		}
	}
	if maxInput.Cmp(available) > 0 {
		return nil, clierr.New(clierr.CodeQuoteStale, fmt.Sprintf(
			"re-quote requires up to %s %s but only %s is available",
			id.FormatBaseUnits(maxInput, currency.VolatileDecimals), currency.VolatileSymbol,
			id.FormatBaseUnits(available, currency.VolatileDecimals)))
	}
	return maxInput, nil
}

func (r *Runtime) transition(plan *model.Plan, step *model.Step, status model.StepStatus) {
	if step.Status.Terminal() {
		return
	}
	step.Status = status
	r.emit(plan, step)
}

func (r *Runtime) failStep(plan *model.Plan, step *model.Step, err error) {
	if step.Status.Terminal() {
		return
	}
	step.Status = model.StepStatusFailed
	step.Error = err.Error()
	if clierr.HasCode(err, clierr.CodeConfirmTimeout) {
		r.logger().Warn("step confirmation timed out, final state unknown",
			"plan_id", plan.PlanID, "step_id", step.ID, "tx_handle", step.TxHandle)
	} else {
		r.logger().Error("step failed", "plan_id", plan.PlanID, "step_id", step.ID, "error", err)
	}
	r.emit(plan, step)
}

// abortRemaining marks every not-yet-started step Aborted so callers never
// have to infer the abort from the overall result.
func (r *Runtime) abortRemaining(plan *model.Plan, from int) {
	for i := from; i < len(plan.Steps); i++ {
		step := &plan.Steps[i]
		if step.Status != model.StepStatusPending {
			continue
		}
		step.Status = model.StepStatusAborted
		step.Error = "aborted: an earlier step failed"
		r.emit(plan, step)
	}
}

func (r *Runtime) emit(plan *model.Plan, step *model.Step) {
	if r.Events == nil {
		return
	}
	r.Events <- model.StepUpdate{
		PlanID:  plan.PlanID,
		StepID:  step.ID,
		Status:  step.Status,
		TxHash:  step.TxHash,
		Error:   step.Error,
		Emitted: r.timestamp(),
	}
}

func (r *Runtime) finish(plan *model.Plan, success bool, errMsg string) model.ExecutionResult {
	result := model.ExecutionResult{
		PlanID:      plan.PlanID,
		Success:     success,
		Error:       errMsg,
		Steps:       append([]model.Step(nil), plan.Steps...),
		CompletedAt: r.timestamp(),
	}
	if r.Journal != nil {
		if err := r.Journal.Record(result); err != nil {
			r.logger().Error("record execution in journal", "plan_id", plan.PlanID, "error", err)
		}
	}
	return result
}

func (r *Runtime) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

func (r *Runtime) timestamp() string {
	now := r.now
	if now == nil {
		now = time.Now
	}
	return now().UTC().Format(time.RFC3339)
}
