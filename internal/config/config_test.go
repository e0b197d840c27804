package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

var allKeys = []string{
	"AIBIRD_PORT", "AIBIRD_ADMIN_ADDR", "AIBIRD_PERCEPTION_URL", "AIBIRD_DATABASE_DSN",
	"AIBIRD_MAX_SESSIONS", "AIBIRD_SETTLE_DELAY", "AIBIRD_POLL_INTERVAL", "AIBIRD_STABLE_READS",
	"AIBIRD_MAX_READS", "AIBIRD_STATE_WAIT_ATTEMPTS", "AIBIRD_SLING_RETRY_LIMIT",
	"AIBIRD_CLICK_DELAY", "AIBIRD_DEVICE_TIMEOUT", "AIBIRD_LOG_LEVEL", "AIBIRD_LOG_DEV",
	"AIBIRD_WS_ORIGINS",
}

// clearEnv unsets every variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 2004, c.Port)
	assert.Equal(t, ":2004", c.ListenAddr())
	assert.Equal(t, ":8080", c.AdminAddr)
	assert.Equal(t, "ws://localhost:9000/agent", c.PerceptionURL)
	assert.Empty(t, c.DatabaseDSN)
	assert.Equal(t, 1, c.MaxSessions)
	assert.Equal(t, 30*time.Second, c.DeviceTimeout)
	assert.Equal(t, zapcore.InfoLevel, c.LogLevel)
	assert.False(t, c.LogDev)
	assert.Empty(t, c.WSOrigins)

	assert.Equal(t, 2*time.Second, c.Outcome.SettleDelay)
	assert.Equal(t, 300*time.Millisecond, c.Outcome.PollInterval)
	assert.Equal(t, 3, c.Outcome.StableReads)
	assert.Equal(t, 200, c.Outcome.MaxReads)
	assert.Equal(t, 200, c.Outcome.StateWaitAttempts)
	assert.Equal(t, 1_000_000, c.Executor.SlingRetryLimit)
	assert.Equal(t, 10*time.Millisecond, c.Executor.ClickDelay)

	b := c.Bridge()
	assert.Equal(t, c.Outcome, b.Outcome)
	assert.Equal(t, c.Executor, b.Executor)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AIBIRD_PORT", "3000")
	t.Setenv("AIBIRD_ADMIN_ADDR", "")
	t.Setenv("AIBIRD_MAX_SESSIONS", "0")
	t.Setenv("AIBIRD_SETTLE_DELAY", "500ms")
	t.Setenv("AIBIRD_POLL_INTERVAL", "50ms")
	t.Setenv("AIBIRD_STABLE_READS", "5")
	t.Setenv("AIBIRD_LOG_LEVEL", "debug")
	t.Setenv("AIBIRD_LOG_DEV", "true")
	t.Setenv("AIBIRD_DATABASE_DSN", "postgres://bridge@localhost/aibird")
	t.Setenv("AIBIRD_WS_ORIGINS", "lab.example.com, localhost:*,,")

	c, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 3000, c.Port)
	assert.Empty(t, c.AdminAddr)
	assert.Equal(t, 0, c.MaxSessions)
	assert.Equal(t, 500*time.Millisecond, c.Outcome.SettleDelay)
	assert.Equal(t, 50*time.Millisecond, c.Outcome.PollInterval)
	assert.Equal(t, 50*time.Millisecond, c.Executor.PollInterval)
	assert.Equal(t, 5, c.Outcome.StableReads)
	assert.Equal(t, zapcore.DebugLevel, c.LogLevel)
	assert.True(t, c.LogDev)
	assert.Equal(t, "postgres://bridge@localhost/aibird", c.DatabaseDSN)
	assert.Equal(t, []string{"lab.example.com", "localhost:*"}, c.WSOrigins)
}

func TestFromEnv_ReportsEveryBadValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("AIBIRD_PORT", "70000")
	t.Setenv("AIBIRD_SETTLE_DELAY", "soon")
	t.Setenv("AIBIRD_STABLE_READS", "0")
	t.Setenv("AIBIRD_LOG_LEVEL", "loud")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
	assert.True(t, strings.Contains(err.Error(), "AIBIRD_SETTLE_DELAY"))
}

func TestParsePort(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "2004", want: 2004},
		{in: "1", want: 1},
		{in: "65535", want: 65535},
		{in: "0", wantErr: true},
		{in: "65536", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParsePort(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("AIBIRD_PERCEPTION_URL", "")
	assert.Equal(t, "fallback", GetEnvDefault("AIBIRD_PERCEPTION_URL", "fallback"))
	t.Setenv("AIBIRD_PERCEPTION_URL", "ws://agent:9000")
	assert.Equal(t, "ws://agent:9000", GetEnvDefault("AIBIRD_PERCEPTION_URL", "fallback"))
}
