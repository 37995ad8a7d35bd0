package command

import (
	"bufio"
	"fmt"

	"github.com/dekarrin/campman/internal/cmerr"
)

// Reader gives lines of command input. ReadCommand blocks until a line that is
// not blank is available; at end of input it returns "" and io.EOF.
type Reader interface {
	ReadCommand() (string, error)
}

// Get reads lines from r until one parses as a Command and returns it. Lines
// that do not parse are answered on out with the reason and a hint, then
// skipped. Whether the command is allowed right now is not checked.
func Get(r Reader, out *bufio.Writer) (Command, error) {
	for {
		line, err := r.ReadCommand()
		if err != nil {
			return Command{}, fmt.Errorf("could not get input: %w", err)
		}

		cmd, err := Parse(line)
		if err == nil {
			if cmd.Verb != "" {
				return cmd, nil
			}
			continue
		}

		fmt.Fprintf(out, "%s\nTry HELP for valid commands\n", cmerr.ConsoleMessage(err))
		if err := out.Flush(); err != nil {
			return Command{}, fmt.Errorf("could not write output: %w", err)
		}
	}
}
