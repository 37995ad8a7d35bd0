package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ParseLevel(t *testing.T) {
	testCases := []struct {
		input     string
		expect    slog.Level
		expectErr bool
	}{
		{input: "", expect: slog.LevelInfo},
		{input: "DEBUG", expect: slog.LevelDebug},
		{input: " warning ", expect: slog.LevelWarn},
		{input: "err", expect: slog.LevelError},
		{input: "loud", expect: slog.LevelInfo, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert := assert.New(t)

			actual, err := ParseLevel(tc.input)
			if tc.expectErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
			}
			assert.Equal(tc.expect, actual)
		})
	}
}

func Test_New_filtersByLevel(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	lg, err := New(Options{Level: "warn", Writer: &buf})
	if !assert.NoError(err) {
		return
	}

	lg.Info("hidden")
	lg.Warn("shown", "key", "value")

	assert.NotContains(buf.String(), "hidden")
	assert.Contains(buf.String(), "shown")
	assert.Contains(buf.String(), "key=value")
}

func Test_OrDiscard(t *testing.T) {
	assert := assert.New(t)

	assert.NotNil(OrDiscard(nil))
	lg := slog.Default()
	assert.Same(lg, OrDiscard(lg))
}
