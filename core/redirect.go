package core

import (
	"os"

	"github.com/josephlewis42/pipesh/core/shell"
)

// RedirectFileMode is the permission used when an output redirection creates
// a file. The process umask still applies.
const RedirectFileMode = 0777

// ExecContext holds the descriptors a pipeline's ends are redirected to. Nil
// fields mean the interpreter's own stdin/stdout.
type ExecContext struct {
	Stdin  *os.File
	Stdout *os.File
}

// OpenRedirects opens the files named by the command's redirections. Nothing
// is left open on error.
func OpenRedirects(cmd *shell.Command) (*ExecContext, error) {
	ec := &ExecContext{}

	if cmd.Input != "" {
		fd, err := os.OpenFile(cmd.Input, os.O_RDONLY, 0)
		if err != nil {
			return nil, err
		}
		ec.Stdin = fd
	}

	if cmd.Output != "" {
		fd, err := os.OpenFile(cmd.Output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, RedirectFileMode)
		if err != nil {
			ec.Close()
			return nil, err
		}
		ec.Stdout = fd
	}

	return ec, nil
}

// Close closes any open redirection. It's safe to call more than once.
func (ec *ExecContext) Close() error {
	if ec == nil {
		return nil
	}

	var lastErr error
	for _, fd := range []**os.File{&ec.Stdin, &ec.Stdout} {
		if *fd == nil {
			continue
		}
		if err := (*fd).Close(); err != nil {
			lastErr = err
		}
		*fd = nil
	}
	return lastErr
}
