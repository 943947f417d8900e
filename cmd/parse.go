package cmd

import (
	"fmt"
	"strings"

	"github.com/josephlewis42/pipesh/core"
	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var parseAsYAML bool

var parseCmd = &cobra.Command{
	Use:   "parse LINE...",
	Short: "Show how a line is parsed without running it.",
	Long: `Parse joins its arguments with spaces, parses the result as a command
line and prints the pipeline stages, redirections and background flag.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		line := strings.Join(args, " ")
		parsed, err := shell.Parse(line)

		if !parseAsYAML {
			shell.Dump(cmd.OutOrStdout(), parsed, err)
		}

		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
			exitStatus = core.StatusParseError
			return nil
		}

		if parseAsYAML {
			out, err := yaml.Marshal(parsed)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().BoolVar(&parseAsYAML, "yaml", false, "print the parsed command as YAML")
}
