package app

import (
	"github.com/spf13/cobra"

	"github.com/ssandoval/treasury-cli/internal/version"
)

func (s *runtimeState) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.renderData("version", map[string]string{
				"name":    version.CLIName,
				"version": version.CLIVersion,
				"long":    version.Long(),
			})
		},
	}
}
