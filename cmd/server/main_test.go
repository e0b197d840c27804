package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_BadArguments(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{name: "too many", args: []string{"2004", "extra"}},
		{name: "not a number", args: []string{"port"}},
		{name: "out of range", args: []string{"70000"}},
		{name: "zero", args: []string{"0"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("AIBIRD_PORT", "")
			var stderr bytes.Buffer
			assert.Equal(t, 1, run(tc.args, &stderr))
			assert.Contains(t, stderr.String(), usage)
		})
	}
}

func TestRun_BadEnvironment(t *testing.T) {
	t.Setenv("AIBIRD_SETTLE_DELAY", "later")

	var stderr bytes.Buffer
	assert.Equal(t, 1, run(nil, &stderr))
	assert.Contains(t, stderr.String(), "AIBIRD_SETTLE_DELAY")
}
