package shell

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCommand is returned when a pipeline segment holds no words.
	ErrEmptyCommand = errors.New("missing command")
	// ErrDuplicateRedirect is returned when stdin or stdout is redirected twice.
	ErrDuplicateRedirect = errors.New("duplicate redirection")
	// ErrMissingFilename is returned when a redirection ends the line.
	ErrMissingFilename = errors.New("missing filename")
	// ErrIllegalFilename is returned when a redirection target fails IsFilename.
	ErrIllegalFilename = errors.New("illegal filename")
	// ErrIllegalBackground is returned when anything follows '&'.
	ErrIllegalBackground = errors.New("illegal backgrounding")
	// ErrUnexpectedToken is returned for a word following a redirection target.
	ErrUnexpectedToken = errors.New("unexpected token")
)

// ParseError describes why a line could not be parsed.
type ParseError struct {
	// Err is one of the Err* sentinels in this package.
	Err error
	// Token is the offending token, empty at end of line.
	Token Token

	msg string
}

func (e *ParseError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	if e.Token.Text != "" {
		return fmt.Sprintf("%v near %q", e.Err, e.Token.Text)
	}
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Stage is a single program invocation in a pipeline.
type Stage struct {
	// Args holds the program name as Args[0] followed by its arguments.
	Args []string `json:"args"`
}

// Name returns the program name of the stage.
func (s Stage) Name() string {
	if len(s.Args) == 0 {
		return ""
	}
	return s.Args[0]
}

// Command is a parsed line: a pipeline plus its outer redirections.
type Command struct {
	// Input is the file replacing the first stage's stdin, empty if none.
	Input string `json:"stdin,omitempty"`
	// Output is the file replacing the last stage's stdout, empty if none.
	Output string `json:"stdout,omitempty"`
	// Background is set when the line ended with '&'.
	Background bool `json:"background"`
	// Stages are in the order they were typed; Stages[0] feeds Stages[1].
	Stages []Stage `json:"stages"`
}

// Parse turns a line into a Command. Any error is a *ParseError.
func Parse(line string) (*Command, error) {
	toks := Tokenize(line)
	cmd := &Command{}

	tokenAt := func(i int) Token {
		if i < len(toks) {
			return toks[i]
		}
		return Token{}
	}

	i := 0
	for {
		var args []string
		for i < len(toks) && toks[i].Kind == Word {
			args = append(args, toks[i].Text)
			i++
		}
		if len(args) == 0 {
			return nil, &ParseError{Err: ErrEmptyCommand, Token: tokenAt(i)}
		}
		cmd.Stages = append(cmd.Stages, Stage{Args: args})

	operators:
		for {
			if i == len(toks) {
				return cmd, nil
			}
			tok := toks[i]
			i++

			switch tok.Kind {
			case Pipe:
				break operators

			case Background:
				if i < len(toks) {
					return nil, &ParseError{Err: ErrIllegalBackground, Token: toks[i]}
				}
				cmd.Background = true
				return cmd, nil

			case RedirectIn, RedirectOut:
				target, stream := &cmd.Input, "stdin"
				if tok.Kind == RedirectOut {
					target, stream = &cmd.Output, "stdout"
				}
				if *target != "" {
					return nil, &ParseError{
						Err:   ErrDuplicateRedirect,
						Token: tok,
						msg:   fmt.Sprintf("duplicate redirection of %s", stream),
					}
				}
				if i == len(toks) {
					return nil, &ParseError{Err: ErrMissingFilename, Token: tok}
				}
				name := toks[i]
				i++
				if name.Kind != Word || !IsFilename(name.Text) {
					return nil, &ParseError{
						Err:   ErrIllegalFilename,
						Token: name,
						msg:   fmt.Sprintf("Illegal filename: %q", name.Text),
					}
				}
				*target = name.Text

			default:
				return nil, &ParseError{Err: ErrUnexpectedToken, Token: tok}
			}
		}
	}
}
