package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/anmitsu/go-shlex"
	"github.com/fatih/color"
	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/jobs"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/josephlewis42/pipesh/core/shell"
)

const (
	// StatusParseError is returned for lines that don't parse.
	StatusParseError = 2

	DefaultPrompt = `\u@\h:\w\$ `
)

// Stdio holds the interpreter's standard streams.
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

type Shell struct {
	Config   *config.Configuration
	Executor *Executor
	Jobs     *jobs.Tracker
	Router   *Router
	Events   *logger.SessionLogger

	// Readline is only set while Run is active.
	Readline *readline.Instance

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Quit is set by the exit builtin, ExitStatus is the status to exit with.
	Quit       bool
	ExitStatus int

	history []string
}

// NewShell creates a shell. events may be nil to disable event logging.
func NewShell(cfg *config.Configuration, stdio Stdio, events *logger.SessionLogger) (*Shell, error) {
	cancelSignal, err := cfg.Signal()
	if err != nil {
		return nil, err
	}

	tracker := jobs.NewTracker()
	s := &Shell{
		Config: cfg,
		Jobs:   tracker,
		Events: events,
		Stdin:  stdio.Stdin,
		Stdout: stdio.Stdout,
		Stderr: stdio.Stderr,
	}

	s.Executor = &Executor{
		Stdin:    stdio.Stdin,
		Stdout:   stdio.Stdout,
		Stderr:   stdio.Stderr,
		Jobs:     tracker,
		Builtins: s.lookupBuiltin,
		Events:   events,
	}

	s.Router = NewRouter(tracker, s.Executor.ForegroundActive)
	s.Router.CancelSignal = cancelSignal
	s.Router.Notices = stdio.Stderr
	s.Router.Events = events

	return s, nil
}

func (s *Shell) lookupBuiltin(name string) (BuiltinFunc, bool) {
	builtin, ok := AllBuiltins[name]
	if !ok {
		return nil, false
	}

	return func(args []string) int {
		s.Events.Record(logger.Builtin, logger.Fields{
			"name": name,
			"args": args,
		})
		return builtin.Main(s, args)
	}, true
}

// Prompt expands the configured prompt.
func (s *Shell) Prompt() string {
	prompt := s.Config.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	green := fmt.Sprint
	blue := fmt.Sprint
	if s.Config.ColorPrompt {
		green = color.New(color.FgGreen, color.Bold).SprintFunc()
		blue = color.New(color.FgBlue, color.Bold).SprintFunc()
	}

	username := os.Getenv("USER")
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	host, _ := os.Hostname()

	pwd, _ := os.Getwd()
	if home, err := os.UserHomeDir(); err == nil && home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}

	prompt = strings.ReplaceAll(prompt, `\u`, green(username))
	prompt = strings.ReplaceAll(prompt, `\h`, green(host))
	prompt = strings.ReplaceAll(prompt, `\w`, blue(pwd))

	if os.Geteuid() == 0 {
		prompt = strings.ReplaceAll(prompt, `\$`, "#")
	} else {
		prompt = strings.ReplaceAll(prompt, `\$`, "$")
	}

	return prompt
}

// expandAliases replaces the program name of every stage that has an alias.
// Aliases aren't expanded recursively.
func (s *Shell) expandAliases(cmd *shell.Command) error {
	for i, stage := range cmd.Stages {
		alias, ok := s.Config.Aliases[stage.Name()]
		if !ok {
			continue
		}

		words, err := shlex.Split(alias, true)
		if err != nil {
			return fmt.Errorf("alias %s: %w", stage.Name(), err)
		}
		if len(words) == 0 {
			continue
		}
		cmd.Stages[i].Args = append(words, stage.Args[1:]...)
	}
	return nil
}

// RunLine parses and runs a single line and returns its exit status.
func (s *Shell) RunLine(line string) int {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0
	}

	cmd, err := shell.Parse(line)
	if s.Config.EchoParse {
		shell.Dump(s.Stdout, cmd, err)
	}
	if err != nil {
		fmt.Fprintf(s.Stderr, "%s: %v\n", config.AppName, err)
		s.Events.Record(logger.ParseError, logger.Fields{
			"line":  line,
			"error": err.Error(),
		})
		return StatusParseError
	}

	if err := s.expandAliases(cmd); err != nil {
		fmt.Fprintf(s.Stderr, "%s: %v\n", config.AppName, err)
		return 1
	}

	ec, err := OpenRedirects(cmd)
	if err != nil {
		fmt.Fprintf(s.Stderr, "%s: %v\n", config.AppName, err)
		return 1
	}

	status, err := s.Executor.Execute(cmd, ec)
	if err != nil {
		for _, msg := range strings.Split(err.Error(), "\n") {
			fmt.Fprintf(s.Stderr, "%s: %s\n", config.AppName, msg)
		}
	}

	var programs []string
	for _, stage := range cmd.Stages {
		programs = append(programs, stage.Name())
	}
	s.Events.Record(logger.RunCommand, logger.Fields{
		"line":       line,
		"programs":   programs,
		"stages":     len(cmd.Stages),
		"background": cmd.Background,
		"status":     status,
	})

	return status
}

func (s *Shell) newReadline() (*readline.Instance, error) {
	cfg := &readline.Config{
		Prompt:          s.Prompt(),
		HistoryFile:     s.Config.HistoryPath(),
		HistoryLimit:    s.Config.HistoryLimit,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           readline.NewCancelableStdin(s.Stdin),
		Stdout:          s.Stdout,
		Stderr:          s.Stderr,
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	return readline.NewEx(cfg)
}

// Run reads and executes lines until end of input or exit. It returns the
// interpreter's exit status.
func (s *Shell) Run(ctx context.Context) int {
	rl, err := s.newReadline()
	if err != nil {
		fmt.Fprintf(s.Stderr, "%s: %v\n", config.AppName, err)
		return 1
	}
	s.Readline = rl
	defer func() {
		rl.Close()
		s.Readline = nil
	}()

	// Job notices redraw the prompt when written through readline.
	s.Router.Notices = rl

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.Router.Run(ctx)

	for !s.Quit {
		// SIGCHLD may arrive before a job's waiter finished, catch stragglers.
		s.Router.RequestReap()

		rl.SetPrompt(s.Prompt())
		line, err := rl.Readline()

		switch {
		case errors.Is(err, io.EOF):
			return 0 // Input closed, quit.

		case errors.Is(err, readline.ErrInterrupt):
			s.Router.Interrupt()

		case err != nil:
			fmt.Fprintf(s.Stderr, "%s: readline: %v\n", config.AppName, err)
			return 1

		case strings.TrimSpace(line) == "":
			continue

		default:
			s.history = append(s.history, line)
			s.RunLine(line)
		}
	}

	return s.ExitStatus
}
