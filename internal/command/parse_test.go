package command

import (
	"testing"

	"github.com/dekarrin/campman/internal/cmerr"
	"github.com/stretchr/testify/assert"
)

func Test_Parse(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expect    Command
		expectErr bool
	}{
		{name: "blank", input: "   ", expect: Command{}},
		{name: "single verb", input: "campaigns", expect: Command{Verb: "CAMPAIGNS"}},
		{name: "alias", input: "ls", expect: Command{Verb: "CAMPAIGNS"}},
		{name: "two-word alias", input: "log in admin@example.com", expect: Command{Verb: "LOGIN", Args: []string{"admin@example.com"}}},
		{name: "two-word alias wins over verb", input: "delete user 4", expect: Command{Verb: "DELUSER", Args: []string{"4"}}},
		{name: "verb with id", input: "DELETE 4", expect: Command{Verb: "DELETE", Args: []string{"4"}}},
		{name: "args keep case", input: "adduser Ops@Example.com admin", expect: Command{Verb: "ADDUSER", Args: []string{"Ops@Example.com", "admin"}}},
		{name: "quoted args", input: `upload 3 background="/tmp/my files/bg.png"`, expect: Command{Verb: "UPLOAD", Args: []string{"3", "background=/tmp/my files/bg.png"}}},
		{name: "filter pairs", input: "filter action=create_campaign status=success", expect: Command{Verb: "FILTER", Args: []string{"action=create_campaign", "status=success"}}},
		{name: "help alias", input: "?", expect: Command{Verb: "HELP"}},
		{name: "unknown verb", input: "dance", expectErr: true},
		{name: "too few args", input: "edit", expectErr: true},
		{name: "too many args", input: "quit now", expectErr: true},
		{name: "unbalanced quote", input: `login "admin`, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			actual, err := Parse(tc.input)
			if tc.expectErr {
				assert.ErrorIs(err, cmerr.ErrValidation)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.expect, actual)
		})
	}
}

func Test_ExpandAliases(t *testing.T) {
	testCases := []struct {
		name   string
		tokens []string
		limit  int
		expect []string
	}{
		{name: "no limit", tokens: []string{"ls"}, limit: 0, expect: []string{"ls"}},
		{name: "single", tokens: []string{"Ls"}, limit: 2, expect: []string{"CAMPAIGNS"}},
		{name: "double", tokens: []string{"Set", "password", "abc"}, limit: 2, expect: []string{"SETPASS", "abc"}},
		{name: "limit too low for double", tokens: []string{"log", "in"}, limit: 1, expect: []string{"log", "in"}},
		{name: "not an alias", tokens: []string{"users"}, limit: 2, expect: []string{"users"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, ExpandAliases(tc.tokens, tc.limit))
		})
	}
}

func Test_Command_args(t *testing.T) {
	assert := assert.New(t)

	cmd := Command{Verb: "UPLOAD", Args: []string{"12", "Logo=logo.png", "extra", "background = bg.jpg"}}

	id, err := cmd.IntArg(0, "campaign ID")
	assert.NoError(err)
	assert.Equal(12, id)

	_, err = cmd.IntArg(1, "campaign ID")
	assert.ErrorIs(err, cmerr.ErrValidation)
	_, err = cmd.IntArg(9, "campaign ID")
	assert.Equal("UPLOAD requires campaign ID", cmerr.ConsoleMessage(err))

	pairs, rest := cmd.Pairs(1)
	assert.Equal(map[string]string{"logo": "logo.png", "background": "bg.jpg"}, pairs)
	assert.Equal([]string{"extra"}, rest)

	assert.True(Command{Args: []string{"a@b.c", "Admin"}}.HasFlag("ADMIN"))
	assert.False(Command{Args: []string{"a@b.c"}}.HasFlag("ADMIN"))
	assert.Equal("", cmd.Arg(-1))
}
