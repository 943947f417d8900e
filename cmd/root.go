package cmd

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log"
	"os"
	"os/user"

	"github.com/josephlewis42/pipesh/core"
	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/spf13/cobra"
)

var (
	cfgPath     string
	commandLine string

	// exitStatus is what the process exits with once the command finishes.
	exitStatus int
)

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// openShell prepares a shell attached to the command's stdio. The returned
// closer flushes the event log. A log that can't be opened disables event
// recording rather than the shell.
func openShell(cmd *cobra.Command) (*core.Shell, io.Closer, error) {
	configuration, err := config.Initialize(cfgPath, log.New(io.Discard, "", 0))
	if err != nil {
		return nil, nil, err
	}

	recorder := logger.Discard()
	var appLog io.Closer = io.NopCloser(nil)
	if fd, err := configuration.OpenAppLog(); err != nil {
		log.New(cmd.ErrOrStderr(), "", 0).Printf("Event log disabled: %v", err)
	} else {
		recorder = logger.NewJsonLinesLogRecorder(fd)
		appLog = fd
	}
	events := recorder.NewSession()

	username := os.Getenv("USER")
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	events.Record(logger.SessionStart, logger.Fields{
		"user":        username,
		"pid":         os.Getpid(),
		"interactive": commandLine == "",
	})

	sh, err := core.NewShell(configuration, core.Stdio{
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	}, events)
	if err != nil {
		appLog.Close()
		return nil, nil, err
	}

	return sh, appLog, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Pipeline shell",
	Long: `An interactive shell that runs pipelines of programs with < and >
redirection and & background jobs. Ctrl-C at the prompt terminates the most
recently started background job.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		sh, closer, err := openShell(cmd)
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if cmd.Flags().Changed("command") {
			go sh.Router.Run(ctx)
			exitStatus = sh.RunLine(commandLine)
			return nil
		}

		exitStatus = sh.Run(ctx)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	os.Exit(exitStatus)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultDir(), "config path")
	rootCmd.Flags().StringVarP(&commandLine, "command", "c", "", "run a single line and exit with its status")
}
