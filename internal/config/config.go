// Package config reads the bridge settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/DoyleJ11/aibird-bridge/internal/bridge"
	"github.com/DoyleJ11/aibird-bridge/internal/executor"
	"github.com/DoyleJ11/aibird-bridge/internal/outcome"
)

const DefaultPort = 2004

type Config struct {
	Port          int
	AdminAddr     string // empty disables the admin server
	PerceptionURL string
	DatabaseDSN   string // empty keeps history in memory
	MaxSessions   int
	DeviceTimeout time.Duration
	LogLevel      zapcore.Level
	LogDev        bool
	WSOrigins     []string // cross-origin hosts allowed to open /ws

	Outcome  outcome.Config
	Executor executor.Config
}

// Bridge is the part of the config the session runner needs.
func (c Config) Bridge() bridge.Config {
	return bridge.Config{Outcome: c.Outcome, Executor: c.Executor}
}

func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads .env if present, then the AIBIRD_* variables. Every malformed
// value is reported, not just the first.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	p := parser{}
	c := Config{
		Port:          p.getPort("AIBIRD_PORT", DefaultPort),
		AdminAddr:     ":8080",
		PerceptionURL: GetEnvDefault("AIBIRD_PERCEPTION_URL", "ws://localhost:9000/agent"),
		DatabaseDSN:   os.Getenv("AIBIRD_DATABASE_DSN"),
		MaxSessions:   p.getInt("AIBIRD_MAX_SESSIONS", 1, 0),
		DeviceTimeout: p.getDuration("AIBIRD_DEVICE_TIMEOUT", 30*time.Second),
		LogLevel:      p.getLevel("AIBIRD_LOG_LEVEL", zapcore.InfoLevel),
		LogDev:        p.getBool("AIBIRD_LOG_DEV", false),
		WSOrigins:     getList("AIBIRD_WS_ORIGINS"),
		Outcome: outcome.Config{
			SettleDelay:       p.getDuration("AIBIRD_SETTLE_DELAY", 2*time.Second),
			PollInterval:      p.getDuration("AIBIRD_POLL_INTERVAL", 300*time.Millisecond),
			StableReads:       p.getInt("AIBIRD_STABLE_READS", 3, 1),
			MaxReads:          p.getInt("AIBIRD_MAX_READS", 200, 1),
			StateWaitAttempts: p.getInt("AIBIRD_STATE_WAIT_ATTEMPTS", 200, 1),
		},
	}
	// An explicitly empty AIBIRD_ADMIN_ADDR disables the admin server.
	if v, ok := os.LookupEnv("AIBIRD_ADMIN_ADDR"); ok {
		c.AdminAddr = v
	}
	c.Executor = executor.Config{
		PollInterval:      c.Outcome.PollInterval,
		StateWaitAttempts: c.Outcome.StateWaitAttempts,
		SlingRetryLimit:   p.getInt("AIBIRD_SLING_RETRY_LIMIT", 1_000_000, 1),
		ClickDelay:        p.getDuration("AIBIRD_CLICK_DELAY", 10*time.Millisecond),
	}
	if p.err != nil {
		return Config{}, p.err
	}
	return c, nil
}

// ParsePort validates a TCP port given on the command line.
func ParsePort(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("port %q is not a number", s)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("port %d out of range", n)
	}
	return n, nil
}

func GetEnvDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getList splits a comma separated variable, dropping empty items.
func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parser collects every bad variable instead of stopping at the first.
type parser struct {
	err error
}

func (p *parser) fail(key, raw string, err error) {
	p.err = multierr.Append(p.err, fmt.Errorf("%s=%q: %w", key, raw, err))
}

func (p *parser) getInt(key string, def, least int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	if n < least {
		p.fail(key, raw, fmt.Errorf("must be at least %d", least))
		return def
	}
	return n
}

func (p *parser) getPort(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := ParsePort(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return n
}

func (p *parser) getDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	if d < 0 {
		p.fail(key, raw, errors.New("must not be negative"))
		return def
	}
	return d
}

func (p *parser) getBool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return b
}

func (p *parser) getLevel(key string, def zapcore.Level) zapcore.Level {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		p.fail(key, raw, err)
		return def
	}
	return lvl
}
