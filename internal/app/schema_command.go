package app

import (
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/ssandoval/treasury-cli/internal/errors"
	"github.com/ssandoval/treasury-cli/internal/schema"
)

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Describe the command tree in machine-readable form",
		RunE: func(cmd *cobra.Command, args []string) error {
			described, err := schema.Describe(s.root, strings.Join(args, " "))
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "describe command", err)
			}
			return s.renderData("schema", described)
		},
	}
}
