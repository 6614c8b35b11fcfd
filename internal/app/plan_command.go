package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ssandoval/treasury-cli/internal/model"
	"github.com/ssandoval/treasury-cli/internal/planner"
)

func (s *runtimeState) newPlanCommand() *cobra.Command {
	var amount, currency, recipient string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build a funding plan for an invoice without executing it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.requireCustody(); err != nil {
				return err
			}
			if err := s.requireWallets(); err != nil {
				return err
			}

			invoice := model.Invoice{
				AmountDecimal:    amount,
				Currency:         currency,
				RecipientAddress: recipient,
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 3*s.settings.Timeout)
			defer cancel()
			plan, err := planner.Build(ctx, s.plannerDeps(), invoice)
			if err != nil {
				return err
			}
			return s.renderData("plan", plan)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "Invoice amount as a decimal string")
	cmd.Flags().StringVar(&currency, "currency", "", "Invoice currency symbol")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Recipient address on the settlement chain")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("currency")
	_ = cmd.MarkFlagRequired("recipient")
	return cmd
}
