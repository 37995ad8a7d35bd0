// Package command defines console command data types and handles parsing of
// commands from input sources.
package command

import (
	"strconv"
	"strings"

	"github.com/dekarrin/campman/internal/cmerr"
)

// Command is a valid command received from a console input source.
type Command struct {

	// Verb is the canonical name of the command being invoked, such as
	// "CAMPAIGNS", "LOGIN", or "QUIT". Some verbs have shorthand forms which
	// are typed differently, for instance "LS" could be typed instead of
	// "CAMPAIGNS", or "LOG IN" instead of "LOGIN", and for all those cases they
	// result in a Command with the canonical verb.
	Verb string

	// Args are the arguments that followed the verb, with their case kept as
	// typed and any quoting removed.
	Args []string
}

// Arg returns the i-th argument, or the empty string if there are not that
// many.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// IntArg parses the i-th argument as an integer. what names the argument in
// the error message.
func (c Command) IntArg(i int, what string) (int, error) {
	s := c.Arg(i)
	if s == "" {
		return 0, cmerr.Validation("%s requires %s", c.Verb, what)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, cmerr.Validation("%q is not a valid %s", s, what)
	}
	return n, nil
}

// Pairs splits the arguments from index start onward that have the form
// key=value. Keys are lower-cased. Arguments without an '=' are returned in
// rest.
func (c Command) Pairs(start int) (pairs map[string]string, rest []string) {
	pairs = map[string]string{}
	for i := start; i < len(c.Args); i++ {
		key, value, ok := strings.Cut(c.Args[i], "=")
		if !ok {
			rest = append(rest, c.Args[i])
			continue
		}
		pairs[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return pairs, rest
}

// HasFlag returns whether any argument is flag, compared case-insensitively.
func (c Command) HasFlag(flag string) bool {
	for _, a := range c.Args {
		if strings.EqualFold(a, flag) {
			return true
		}
	}
	return false
}
