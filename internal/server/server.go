// Package server exposes plan building and execution over HTTP. Execution
// progress is streamed as server-sent events so a consumer can apply step
// updates to a local list keyed by step id.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	clierr "github.com/ssandoval/treasury-cli/internal/errors"
	"github.com/ssandoval/treasury-cli/internal/model"
)

type PlanBuilder interface {
	Build(ctx context.Context, invoice model.Invoice) (model.Plan, error)
}

type PlanExecutor interface {
	Execute(ctx context.Context, plan *model.Plan, events chan<- model.StepUpdate) model.ExecutionResult
}

type Server struct {
	plans PlanBuilder
	exec  PlanExecutor
	log   *slog.Logger
}

func New(plans PlanBuilder, exec PlanExecutor, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{plans: plans, exec: exec, log: log}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/plan", s.handlePlan)
	mux.HandleFunc("POST /v1/execute", s.handleExecute)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		httpError(w, http.StatusBadRequest, "read request body")
		return
	}
	var invoice model.Invoice
	if err := json.Unmarshal(body, &invoice); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("decode invoice: %v", err))
		return
	}

	plan, err := s.plans.Build(r.Context(), invoice)
	if err != nil {
		s.writePlanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// executeRequest is a request-of-intent. The client may include the plan it
// previously built, but the server never executes it as-is: the plan is
// rebuilt from fresh balances, and a client plan whose funding path no longer
// matches is rejected as stale.
type executeRequest struct {
	Invoice model.Invoice `json:"invoice"`
	Plan    *clientPlan   `json:"plan"`
}

type clientPlan struct {
	Steps []clientPlanStep `json:"steps"`
}

type clientPlanStep struct {
	Kind model.StepKind `json:"kind"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		httpError(w, http.StatusBadRequest, "read request body")
		return
	}
	if err := validateExecuteRequest(body); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req executeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("decode execute request: %v", err))
		return
	}

	plan, err := s.plans.Build(r.Context(), req.Invoice)
	if err != nil {
		s.writePlanError(w, err)
		return
	}
	if !plan.CanExecute {
		httpError(w, http.StatusBadRequest, plan.Reason)
		return
	}
	if req.Plan != nil {
		if !sameStepKinds(req.Plan.Steps, plan.Steps) {
			httpError(w, http.StatusConflict, "submitted plan is stale: the funding path has changed, rebuild the plan")
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, flusher, "execution_start", plan); err != nil {
		return
	}

	updates := make(chan model.StepUpdate, 16)
	resultCh := make(chan model.ExecutionResult, 1)
	panicCh := make(chan string, 1)
	go func() {
		defer close(updates)
		defer func() {
			if rec := recover(); rec != nil {
				panicCh <- fmt.Sprintf("internal fault: %v", rec)
			}
		}()
		resultCh <- s.exec.Execute(r.Context(), &plan, updates)
	}()

	for update := range updates {
		if err := writeEvent(w, flusher, "step_update", update); err != nil {
			s.log.Warn("event stream consumer went away", "plan_id", plan.PlanID)
			// Execution continues; broadcast transactions cannot be un-sent.
		}
	}

	select {
	case result := <-resultCh:
		_ = writeEvent(w, flusher, "execution_complete", result)
	case msg := <-panicCh:
		s.log.Error("execution terminated abnormally", "plan_id", plan.PlanID, "fault", msg)
		_ = writeEvent(w, flusher, "execution_error", map[string]string{"error": msg})
	}
}

func (s *Server) writePlanError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if typed, ok := clierr.As(err); ok {
		switch typed.Code {
		case clierr.CodeUsage, clierr.CodeUnsupported:
			status = http.StatusBadRequest
		case clierr.CodeBalanceUnavailable, clierr.CodeUnavailable, clierr.CodeRateLimited:
			status = http.StatusBadGateway
		case clierr.CodeAuth:
			status = http.StatusBadGateway
		}
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("plan build failed", "error", err)
	}
	httpError(w, status, err.Error())
}

func sameStepKinds(client []clientPlanStep, rebuilt []model.Step) bool {
	if len(client) != len(rebuilt) {
		return false
	}
	for i := range client {
		if client[i].Kind != rebuilt[i].Kind {
			return false
		}
	}
	return true
}

func writeEvent(w io.Writer, flusher http.Flusher, name string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, buf); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

const executeRequestSchema = `{
  "type": "object",
  "required": ["invoice"],
  "additionalProperties": false,
  "properties": {
    "invoice": {
      "type": "object",
      "required": ["amount_decimal", "currency", "recipient_address"],
      "properties": {
        "amount_decimal": {"type": "string", "minLength": 1},
        "currency": {"type": "string", "minLength": 1},
        "recipient_address": {"type": "string", "minLength": 1}
      }
    },
    "plan": {
      "type": "object",
      "properties": {
        "steps": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["kind"],
            "properties": {
              "kind": {"type": "string", "enum": ["swap", "bridge", "transfer"]}
            }
          }
        }
      }
    }
  }
}`

func validateExecuteRequest(body []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(executeRequestSchema),
		gojsonschema.NewBytesLoader(body),
	)
	if err != nil {
		return fmt.Errorf("validate execute request: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid execute request: %s", strings.Join(msgs, "; "))
	}
	return nil
}
