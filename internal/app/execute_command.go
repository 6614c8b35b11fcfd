package app

import (
	"context"

	"github.com/spf13/cobra"

	clierr "github.com/ssandoval/treasury-cli/internal/errors"
	"github.com/ssandoval/treasury-cli/internal/executor"
	"github.com/ssandoval/treasury-cli/internal/model"
	"github.com/ssandoval/treasury-cli/internal/planner"
)

func (s *runtimeState) newExecuteCommand() *cobra.Command {
	var amount, currency, recipient string
	var yes bool
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Build a fresh funding plan and execute it",
		Long: "Builds a plan from current balances and quotes, then executes it step by step.\n" +
			"A failed execution is never retried automatically; rebuild the plan instead.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.requireCustody(); err != nil {
				return err
			}
			if err := s.requireWallets(); err != nil {
				return err
			}
			if !yes {
				return clierr.New(clierr.CodeUsage, "execution moves real funds; pass --yes to confirm")
			}

			invoice := model.Invoice{
				AmountDecimal:    amount,
				Currency:         currency,
				RecipientAddress: recipient,
			}
			planCtx, cancel := context.WithTimeout(cmd.Context(), 3*s.settings.Timeout)
			plan, err := planner.Build(planCtx, s.plannerDeps(), invoice)
			cancel()
			if err != nil {
				return err
			}
			if !plan.CanExecute {
				return clierr.New(clierr.CodeUsage, plan.Reason)
			}
			s.openJournal()

			events := make(chan model.StepUpdate, 16)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for update := range events {
					s.log.Info("step update",
						"plan_id", update.PlanID,
						"step_id", update.StepID,
						"status", update.Status,
						"tx_hash", update.TxHash,
						"error", update.Error)
				}
			}()

			// Timeouts apply per step, not to the plan as a whole.
			result := s.newRuntime(events).Execute(cmd.Context(), &plan)
			close(events)
			<-done

			if !result.Success {
				s.exitCode = int(clierr.CodeUnavailable)
			}
			return s.renderResult("execute", result)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "Invoice amount as a decimal string")
	cmd.Flags().StringVar(&currency, "currency", "", "Invoice currency symbol")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Recipient address on the settlement chain")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm execution")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("currency")
	_ = cmd.MarkFlagRequired("recipient")
	return cmd
}

func (s *runtimeState) newRuntime(events chan<- model.StepUpdate) *executor.Runtime {
	rt := &executor.Runtime{
		Submitter:       s.custody,
		Poller:          s.custody,
		Quoter:          s.quoter,
		Balances:        s.custody,
		LiquidityWallet: s.settings.LiquidityWallet,
		Events:          events,
		Log:             s.log,
		Opts: executor.Options{
			PollInterval: s.settings.PollInterval,
			StepTimeout:  s.settings.StepTimeout,
		},
	}
	if s.journal != nil {
		rt.Journal = s.journal
	}
	return rt
}
