package app

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssandoval/treasury-cli/internal/config"
	"github.com/ssandoval/treasury-cli/internal/custody"
	clierr "github.com/ssandoval/treasury-cli/internal/errors"
	"github.com/ssandoval/treasury-cli/internal/httpx"
	"github.com/ssandoval/treasury-cli/internal/id"
	"github.com/ssandoval/treasury-cli/internal/journal"
	"github.com/ssandoval/treasury-cli/internal/model"
	"github.com/ssandoval/treasury-cli/internal/out"
	"github.com/ssandoval/treasury-cli/internal/planner"
	"github.com/ssandoval/treasury-cli/internal/policy"
	"github.com/ssandoval/treasury-cli/internal/pricing"
	"github.com/ssandoval/treasury-cli/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{stdout: stdout, stderr: stderr, now: time.Now}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	root        *cobra.Command
	log         *slog.Logger
	lastCommand string
	exitCode    int

	custody *custody.Client
	quoter  *pricing.Engine
	journal *journal.Store
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	if state.journal != nil {
		_ = state.journal.Close()
	}
	if err == nil {
		return state.exitCode
	}
	state.renderError(state.lastCommand, err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Treasury settlement planner and executor",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.log = slog.New(slog.NewTextHandler(s.runner.stderr, nil))

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			if s.custody == nil {
				httpClient := httpx.New(settings.Timeout, settings.Retries)
				s.custody = custody.New(httpClient, settings.CustodyBaseURL, settings.CustodyAPIKey)
				s.quoter = pricing.NewEngine(pricing.NewClient(httpClient, settings.PricingBaseURL), settings.SlippageBps)
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Upstream request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per upstream request")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newBalancesCommand())
	cmd.AddCommand(s.newPlanCommand())
	cmd.AddCommand(s.newExecuteCommand())
	cmd.AddCommand(s.newExecutionsCommand())
	cmd.AddCommand(s.newServeCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newVersionCommand())
	return cmd
}

func (s *runtimeState) requireCustody() error {
	if strings.TrimSpace(s.settings.CustodyBaseURL) == "" {
		return clierr.New(clierr.CodeUsage, "custody base URL is not configured (set custody.base_url or TREASURY_CUSTODY_URL)")
	}
	return nil
}

func (s *runtimeState) requireWallets() error {
	if strings.TrimSpace(s.settings.SettlementWallet) == "" {
		return clierr.New(clierr.CodeUsage, "settlement wallet is not configured (set wallets.settlement or TREASURY_SETTLEMENT_WALLET)")
	}
	if strings.TrimSpace(s.settings.LiquidityWallet) == "" {
		return clierr.New(clierr.CodeUsage, "liquidity wallet is not configured (set wallets.liquidity or TREASURY_LIQUIDITY_WALLET)")
	}
	return nil
}

func (s *runtimeState) plannerDeps() planner.Deps {
	return planner.Deps{
		Balances:               s.custody,
		Quoter:                 s.quoter,
		SettlementWallet:       s.settings.SettlementWallet,
		LiquidityWallet:        s.settings.LiquidityWallet,
		OperatingBufferDecimal: s.settings.OperatingBufferDecimal,
	}
}

func (s *runtimeState) openJournal() {
	if s.journal != nil {
		return
	}
	store, err := journal.Open(s.settings.JournalPath, s.settings.JournalLockPath)
	if err != nil {
		// Execution proceeds without an audit record rather than blocking a
		// payout on local disk trouble.
		s.log.Warn("open execution journal", "error", err)
		return
	}
	s.journal = store
}

func (s *runtimeState) renderData(command string, data any) error {
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    data,
		Meta:    s.envelopeMeta(command),
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderResult(command string, result model.ExecutionResult) error {
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: result.Success,
		Data:    result,
		Meta:    s.envelopeMeta(command),
	}
	if !result.Success {
		env.Error = &model.ErrorBody{Code: int(clierr.CodeUnavailable), Message: result.Error}
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(command string, err error) {
	code := clierr.CodeInternal
	if typed, ok := clierr.As(err); ok {
		code = typed.Code
	}
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Error:   &model.ErrorBody{Code: int(code), Message: err.Error()},
		Meta:    s.envelopeMeta(command),
	}
	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func (s *runtimeState) envelopeMeta(command string) model.EnvelopeMeta {
	return model.EnvelopeMeta{
		RequestID: id.NewRequestID(),
		Timestamp: s.runner.now().UTC(),
		Command:   command,
	}
}

func trimRootPath(commandPath string) string {
	parts := strings.Fields(strings.TrimSpace(commandPath))
	if len(parts) <= 1 {
		return ""
	}
	return strings.Join(parts[1:], " ")
}
