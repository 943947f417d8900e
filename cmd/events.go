package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var (
	reportSession string
	reportFormat  string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Explore the shell event log.",
}

// buildReport summarises the log in r, keeping only events from session if it
// isn't blank.
func buildReport(r io.Reader, session string) (*logger.Report, error) {
	var report logger.Report
	err := logger.ReadJSONLinesLog(r, func(le *logger.LogEntry) {
		if session != "" && le.SessionID != session {
			return
		}
		report.Update(le)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

var reportCommand = &cobra.Command{
	Use:   "report",
	Short: "Summarise commands, errors and jobs from the event log.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		fd, err := configuration.ReadAppLog()
		if err != nil {
			return err
		}
		defer fd.Close()

		report, err := buildReport(fd, reportSession)
		if err != nil {
			return fmt.Errorf("read %s: %w", fd.Name(), err)
		}

		var out []byte
		switch reportFormat {
		case "yaml":
			out, err = yaml.Marshal(report)
		case "json":
			out, err = json.MarshalIndent(report, "", "  ")
		default:
			return fmt.Errorf("unknown format %q, use yaml or json", reportFormat)
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(reportCommand)
	reportCommand.Flags().StringVar(&reportSession, "session", "", "only count events from this session id")
	reportCommand.Flags().StringVarP(&reportFormat, "format", "o", "yaml", "output format: yaml or json")
}
