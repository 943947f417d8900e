package shell

import (
	"fmt"
	"io"
	"strings"
)

// String formats the command back into a line that parses to an equal Command.
func (c *Command) String() string {
	var parts []string
	for _, stage := range c.Stages {
		parts = append(parts, strings.Join(stage.Args, " "))
	}
	out := strings.Join(parts, " | ")

	if c.Input != "" {
		out += " < " + c.Input
	}
	if c.Output != "" {
		out += " > " + c.Output
	}
	if c.Background {
		out += " &"
	}
	return out
}

// Dump writes a human readable description of a parse result. A nil err
// reports status 1, otherwise -1 and nothing more.
func Dump(w io.Writer, cmd *Command, err error) {
	if err != nil || cmd == nil {
		fmt.Fprintf(w, "Parse returned %d:\n", -1)
		return
	}

	fmt.Fprintf(w, "Parse returned %d:\n", 1)
	fmt.Fprintf(w, "   stdin : %s\n", orNone(cmd.Input))
	fmt.Fprintf(w, "   stdout: %s\n", orNone(cmd.Output))
	bg := "no"
	if cmd.Background {
		bg = "yes"
	}
	fmt.Fprintf(w, "   bg    : %s\n", bg)

	for _, stage := range cmd.Stages {
		fmt.Fprint(w, "    [")
		for _, arg := range stage.Args {
			fmt.Fprintf(w, "%s ", arg)
		}
		fmt.Fprintln(w, "]")
	}
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}
