// Package input reads campman console input from a terminal or from any other
// stream.
package input

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// Reader is where the console gets its input. Every method blocks until a
// line is available. At end of input the returned string is empty and the
// error is io.EOF.
type Reader interface {
	// ReadCommand returns the next line that is not blank, trimmed of
	// surrounding space.
	ReadCommand() (string, error)

	// ReadLine shows prompt and returns the next line, trimmed of surrounding
	// space. It may be empty.
	ReadLine(prompt string) (string, error)

	// ReadPassword shows prompt and returns the next line exactly as typed,
	// without echoing it where the input allows that.
	ReadPassword(prompt string) (string, error)

	Close() error
}

// nextCommand calls next until it gives a line that is not blank.
func nextCommand(next func() (string, error)) (string, error) {
	for {
		line, err := next()
		if err != nil {
			return "", err
		}
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
}

// DirectReader is a Reader over any io.Reader. It does not sanitize control
// and escape sequences and cannot hide passwords. Create one with
// NewDirectReader.
type DirectReader struct {
	r       *bufio.Reader
	prompts io.Writer
}

// NewDirectReader creates a DirectReader on r. Prompts are written to prompts,
// which is flushed after each one if it has a Flush method. If prompts is nil,
// prompts are not shown.
func NewDirectReader(r io.Reader, prompts io.Writer) *DirectReader {
	return &DirectReader{
		r:       bufio.NewReader(r),
		prompts: prompts,
	}
}

// raw reads a line without its line ending. A final line with no line ending
// is returned with a nil error; the call after it gets io.EOF.
func (dr *DirectReader) raw() (string, error) {
	line, err := dr.r.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (dr *DirectReader) show(prompt string) error {
	if prompt == "" || dr.prompts == nil {
		return nil
	}
	if _, err := io.WriteString(dr.prompts, prompt); err != nil {
		return fmt.Errorf("could not write prompt: %w", err)
	}
	if f, ok := dr.prompts.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (dr *DirectReader) ReadCommand() (string, error) {
	return nextCommand(dr.raw)
}

func (dr *DirectReader) ReadLine(prompt string) (string, error) {
	if err := dr.show(prompt); err != nil {
		return "", err
	}
	line, err := dr.raw()
	return strings.TrimSpace(line), err
}

// ReadPassword shows prompt and reads the next line. The line is echoed if
// the underlying stream echoes.
func (dr *DirectReader) ReadPassword(prompt string) (string, error) {
	if err := dr.show(prompt); err != nil {
		return "", err
	}
	return dr.raw()
}

// Close does nothing; the underlying reader belongs to the caller.
func (dr *DirectReader) Close() error {
	return nil
}

// InteractiveReader is a Reader on stdin that goes through a go
// implementation of GNU readline, which keeps typing and editing escape
// sequences out of the input and gives command history. It should generally
// only be used when attached to a TTY. Create one with NewInteractiveReader.
type InteractiveReader struct {
	rl     *readline.Instance
	prompt string
}

// NewInteractiveReader initializes readline with the command prompt "> ".
// Any verbs given are offered as tab completions. The returned reader must be
// closed to restore the terminal.
func NewInteractiveReader(verbs ...string) (*InteractiveReader, error) {
	var completer readline.AutoCompleter
	if len(verbs) > 0 {
		items := make([]readline.PrefixCompleterInterface, len(verbs))
		for i := range verbs {
			items[i] = readline.PcItem(verbs[i])
		}
		completer = readline.NewPrefixCompleter(items...)
	}

	const prompt = "> "
	rl, err := readline.NewEx(&readline.Config{
		Prompt:       prompt,
		AutoComplete: completer,
	})
	if err != nil {
		return nil, fmt.Errorf("create readline config: %w", err)
	}

	return &InteractiveReader{rl: rl, prompt: prompt}, nil
}

func (ir *InteractiveReader) ReadCommand() (string, error) {
	return nextCommand(ir.rl.Readline)
}

// ReadLine swaps in prompt for just this line.
func (ir *InteractiveReader) ReadLine(prompt string) (string, error) {
	ir.rl.SetPrompt(prompt)
	defer ir.rl.SetPrompt(ir.prompt)

	line, err := ir.rl.Readline()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (ir *InteractiveReader) ReadPassword(prompt string) (string, error) {
	pw, err := ir.rl.ReadPassword(prompt)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func (ir *InteractiveReader) Close() error {
	return ir.rl.Close()
}
