package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssandoval/treasury-cli/internal/model"
	"github.com/ssandoval/treasury-cli/internal/planner"
	"github.com/ssandoval/treasury-cli/internal/server"
)

func (s *runtimeState) newServeCommand() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve plan building and execution over HTTP with SSE progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.requireCustody(); err != nil {
				return err
			}
			if err := s.requireWallets(); err != nil {
				return err
			}
			s.openJournal()

			addr := strings.TrimSpace(listen)
			if addr == "" {
				addr = s.settings.ListenAddr
			}
			srv := server.New(planService{s}, execService{s}, s.log)
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			s.log.Info("listening", "addr", addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (defaults to server.listen)")
	return cmd
}

type planService struct{ s *runtimeState }

func (p planService) Build(ctx context.Context, invoice model.Invoice) (model.Plan, error) {
	return planner.Build(ctx, p.s.plannerDeps(), invoice)
}

type execService struct{ s *runtimeState }

func (e execService) Execute(ctx context.Context, plan *model.Plan, events chan<- model.StepUpdate) model.ExecutionResult {
	return e.s.newRuntime(events).Execute(ctx, plan)
}
