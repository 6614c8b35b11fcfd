package model

import "time"

const EnvelopeVersion = "v1"

type StepKind string

const (
	StepKindSwap     StepKind = "swap"
	StepKindBridge   StepKind = "bridge"
	StepKindTransfer StepKind = "transfer"
)

type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusRunning StepStatus = "running"
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
	StepStatusAborted StepStatus = "aborted"
)

// Terminal reports whether a status is write-once final.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepStatusSuccess, StepStatusFailed, StepStatusSkipped, StepStatusAborted:
		return true
	}
	return false
}

// Invoice is the immutable payment request a plan is built for.
type Invoice struct {
	AmountDecimal    string `json:"amount_decimal"`
	Currency         string `json:"currency"`
	RecipientAddress string `json:"recipient_address"`
}

// WalletBalance is a read-only snapshot of one asset on one chain, refreshed
// per planning cycle.
type WalletBalance struct {
	ChainID         string `json:"chain_id"`
	Asset           string `json:"asset"`
	AmountBaseUnits string `json:"amount_base_units"`
	AmountDecimal   string `json:"amount_decimal"`
	Decimals        int    `json:"decimals"`
}

// Quote is an ephemeral exact-output price. A quote captured at planning time
// is informational only; the executor re-derives a fresh one immediately
// before submitting a swap.
type Quote struct {
	PoolRef                string `json:"pool_ref"`
	DesiredOutputBaseUnits string `json:"desired_output_base_units"`
	RequiredInputBaseUnits string `json:"required_input_base_units"`
	MaxInputBaseUnits      string `json:"max_input_base_units"`
	SlippageBps            int64  `json:"slippage_bps"`
	FetchedAt              string `json:"fetched_at"`
}

type Step struct {
	ID              string     `json:"id"`
	Kind            StepKind   `json:"kind"`
	Status          StepStatus `json:"status"`
	Description     string     `json:"description"`
	ChainID         string     `json:"chain_id"`
	SourceWallet    string     `json:"source_wallet"`
	Asset           string     `json:"asset"`
	AmountBaseUnits string     `json:"amount_base_units"`
	AmountDecimal   string     `json:"amount_decimal"`
	PoolRef         string     `json:"pool_ref,omitempty"`
	RouteRef        string     `json:"route_ref,omitempty"`
	DestChainID     string     `json:"dest_chain_id,omitempty"`
	Recipient       string     `json:"recipient,omitempty"`
	TxHandle        string     `json:"tx_handle,omitempty"`
	TxHash          string     `json:"tx_hash,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Plan is built once per session, approved by a human, and consumed exactly
// once by the executor. Building a plan never mutates external state.
type Plan struct {
	PlanID            string          `json:"plan_id"`
	Invoice           Invoice         `json:"invoice"`
	SettlementBalance WalletBalance   `json:"settlement_balance"`
	LiquidityBalances []WalletBalance `json:"liquidity_balances,omitempty"`
	DeficitBaseUnits  string          `json:"deficit_base_units"`
	DeficitDecimal    string          `json:"deficit_decimal"`
	PlanningQuote     *Quote          `json:"planning_quote,omitempty"`
	Steps             []Step          `json:"steps"`
	CanExecute        bool            `json:"can_execute"`
	Reason            string          `json:"reason,omitempty"`
	CreatedAt         string          `json:"created_at"`
}

type ExecutionResult struct {
	PlanID      string `json:"plan_id"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	Steps       []Step `json:"steps"`
	CompletedAt string `json:"completed_at"`
}

// StepUpdate is the progress message pushed by the executor as a step changes
// status. Consumers apply updates to a local step list keyed by StepID.
type StepUpdate struct {
	PlanID  string     `json:"plan_id"`
	StepID  string     `json:"step_id"`
	Status  StepStatus `json:"status"`
	TxHash  string     `json:"tx_hash,omitempty"`
	Error   string     `json:"error,omitempty"`
	Emitted string     `json:"emitted"`
}

type Envelope struct {
	Version string       `json:"version"`
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorBody   `json:"error"`
	Meta    EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
}
