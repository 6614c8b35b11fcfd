// Package schema renders the command tree in machine-readable form so agent
// harnesses can discover the CLI surface without scraping help text.
package schema

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type Command struct {
	Path        string    `json:"path"`
	Short       string    `json:"short"`
	Flags       []Flag    `json:"flags,omitempty"`
	Subcommands []Command `json:"subcommands,omitempty"`
}

type Flag struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Usage   string `json:"usage"`
	Default string `json:"default,omitempty"`
}

// Describe resolves commandPath (space-separated, empty for the root) and
// serializes that subtree.
func Describe(root *cobra.Command, commandPath string) (Command, error) {
	cmd := root
	for _, part := range strings.Fields(strings.TrimSpace(commandPath)) {
		var next *cobra.Command
		for _, c := range cmd.Commands() {
			if c.Name() == part {
				next = c
				break
			}
		}
		if next == nil {
			return Command{}, fmt.Errorf("command not found: %s", commandPath)
		}
		cmd = next
	}
	return describe(cmd), nil
}

func describe(cmd *cobra.Command) Command {
	out := Command{
		Path:  strings.TrimSpace(cmd.CommandPath()),
		Short: cmd.Short,
		Flags: flags(cmd),
	}
	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" || sub.Name() == "completion" {
			continue
		}
		out.Subcommands = append(out.Subcommands, describe(sub))
	}
	return out
}

func flags(cmd *cobra.Command) []Flag {
	collected := make([]Flag, 0)
	visit := func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		collected = append(collected, Flag{
			Name:    f.Name,
			Type:    f.Value.Type(),
			Usage:   f.Usage,
			Default: f.DefValue,
		})
	}
	cmd.LocalFlags().VisitAll(visit)
	cmd.InheritedFlags().VisitAll(visit)
	return collected
}
