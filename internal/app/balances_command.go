package app

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/ssandoval/treasury-cli/internal/errors"
)

func (s *runtimeState) newBalancesCommand() *cobra.Command {
	var wallet string
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Read token balances of a treasury wallet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.requireCustody(); err != nil {
				return err
			}
			ref := strings.TrimSpace(wallet)
			if ref == "" {
				ref = s.settings.SettlementWallet
			}
			if ref == "" {
				return clierr.New(clierr.CodeUsage, "provide --wallet or configure wallets.settlement")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), s.settings.Timeout)
			defer cancel()
			balances, err := s.custody.Balances(ctx, ref)
			if err != nil {
				return err
			}
			return s.renderData("balances", balances)
		},
	}
	cmd.Flags().StringVar(&wallet, "wallet", "", "Wallet reference (defaults to the settlement wallet)")
	return cmd
}
