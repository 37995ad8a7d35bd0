package command

import (
	"strings"

	"github.com/dekarrin/campman/internal/cmerr"
	"github.com/kballard/go-shellquote"
)

// Arity gives how many arguments a verb takes.
type Arity struct {
	Min int

	// Max is the most arguments allowed. -1 means no limit.
	Max int

	// Usage is shown when the arguments are wrong.
	Usage string
}

var (
	// Verbs maps every canonical verb to the arguments it takes.
	Verbs = map[string]Arity{
		"HELP":      {0, 1, "HELP [COMMAND]"},
		"LOGIN":     {1, 1, "LOGIN EMAIL"},
		"SETPASS":   {0, 1, "SETPASS [SETUP-TOKEN]"},
		"LOGOUT":    {0, 0, "LOGOUT"},
		"WHOAMI":    {0, 0, "WHOAMI"},
		"CAMPAIGNS": {0, 0, "CAMPAIGNS"},
		"NEW":       {0, 0, "NEW"},
		"EDIT":      {1, 1, "EDIT ID"},
		"DELETE":    {1, 1, "DELETE ID"},
		"IMAGES":    {1, 1, "IMAGES ID"},
		"UPLOAD":    {2, -1, "UPLOAD ID SLOT=PATH..."},
		"USERS":     {0, 0, "USERS"},
		"ADDUSER":   {1, 2, "ADDUSER EMAIL [ADMIN]"},
		"DELUSER":   {1, 1, "DELUSER ID"},
		"LOGS":      {0, 0, "LOGS"},
		"FILTER":    {1, -1, "FILTER KEY=VALUE..."},
		"PAGE":      {1, 1, "PAGE N"},
		"NEXT":      {0, 0, "NEXT"},
		"PREV":      {0, 0, "PREV"},
		"RESET":     {0, 0, "RESET"},
		"EXPORT":    {0, 0, "EXPORT"},
		"STATS":     {0, 2, "STATS [START-DATE [END-DATE]]"},
		"QUIT":      {0, 0, "QUIT"},
	}

	// VerbAliases maps shorthand verbs (which must be the first words in a
	// command) to their canonical forms. They are all uppercase.
	VerbAliases map[string]string = map[string]string{
		"LOG IN":       "LOGIN",
		"SIGNIN":       "LOGIN",
		"LOG OUT":      "LOGOUT",
		"SIGNOUT":      "LOGOUT",
		"SET PASSWORD": "SETPASS",
		"PASSWD":       "SETPASS",
		"ME":           "WHOAMI",
		"LS":           "CAMPAIGNS",
		"LIST":         "CAMPAIGNS",
		"ADD":          "NEW",
		"CREATE":       "NEW",
		"RM":           "DELETE",
		"ADD USER":     "ADDUSER",
		"DELETE USER":  "DELUSER",
		"RM USER":      "DELUSER",
		"ACTIVITY":     "LOGS",
		"N":            "NEXT",
		"P":            "PREV",
		"BYE":          "QUIT",
		"EXIT":         "QUIT",
		"?":            "HELP",
		"/?":           "HELP",
		"/H":           "HELP",
		"-H":           "HELP",
		"H":            "HELP",
	}
)

// Parse parses a command from the given text. Arguments may be quoted the way
// a shell quotes them. If the text is not a valid command, a non-nil error is
// returned.
//
// If an empty string or a string composed only of whitespace is passed in, nil
// error is returned and a zero value for Command will be returned.
func Parse(toParse string) (Command, error) {
	var parsedCmd Command

	originalTokens, err := shellquote.Split(toParse)
	if err != nil {
		return parsedCmd, cmerr.Validation("I can't read that: %s", err.Error())
	}

	// expand verb aliases up to 2 words long
	tokens := ExpandAliases(originalTokens, 2)

	if len(tokens) < 1 {
		return parsedCmd, nil
	}

	verb := strings.ToUpper(tokens[0])
	arity, ok := Verbs[verb]
	if !ok {
		return parsedCmd, cmerr.Validation("I don't know what you mean by %q", originalTokens[0])
	}

	args := tokens[1:]
	if len(args) < arity.Min || (arity.Max >= 0 && len(args) > arity.Max) {
		return parsedCmd, cmerr.Validation("Usage: %s", arity.Usage)
	}

	parsedCmd.Verb = verb
	if len(args) > 0 {
		parsedCmd.Args = args
	}
	return parsedCmd, nil
}

// ExpandAliases takes a slice of tokens of user input and runs alias expansion
// on it. Matching is case-insensitive; tokens after the alias keep their case.
// The returned slice contains the same tokens but with aliases expanded.
//
// The unexpanded tokens slice is not modified during this operation.
//
// Aliases up to aliasLimit words long are supported. If it is less than 0, it
// is assumed to be 0. Passing 0 means the given tokens will be returned
// unchanged.
//
// Aliases will not be multi-expanded; that is, expansion is not applied to the
// results of an expansion; if the caller needs it, they will need to call
// ExpandAliases again on its output.
func ExpandAliases(tokens []string, aliasLimit int) []string {
	expandedTokens := append([]string{}, tokens...)
	if aliasLimit < 1 {
		return expandedTokens
	}

	// only modify verb up to minimum of limit and number of tokens
	if aliasLimit > len(tokens) {
		aliasLimit = len(tokens)
	}

	// longest alias wins so that "DELETE USER" is not read as DELETE with an
	// argument of "USER".
	for curLimit := aliasLimit; curLimit >= 1; curLimit-- {
		checkStr := strings.ToUpper(strings.Join(tokens[:curLimit], " "))
		expansion, ok := VerbAliases[checkStr]
		if ok {
			replacementTokens := strings.Fields(expansion)
			expandedTokens = append(replacementTokens, tokens[curLimit:]...)
			return expandedTokens
		}
	}

	return expandedTokens
}
