package bridge

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/khudiiash/three-ediitor/pkg/aggregator"
	"github.com/khudiiash/three-ediitor/pkg/relay"
)

// Config is the top-level bridge configuration.
type Config struct {
	ProjectsDir string           `yaml:"projects_dir" env:"THREE_ENGINE_PROJECTS_DIR"`
	Relay       RelayConfig      `yaml:"relay"`
	Aggregator  AggregatorConfig `yaml:"aggregator"`
	Engine      EngineConfig     `yaml:"engine"`
	Log         LogConfig        `yaml:"log"`
}

// RelayConfig configures the loopback endpoint.
type RelayConfig struct {
	Addr            string        `yaml:"addr" env:"THREE_EDITOR_RELAY_ADDR"`
	Backlog         int           `yaml:"backlog"`
	InboundCapacity int           `yaml:"inbound_capacity"`
	PingInterval    time.Duration `yaml:"ping_interval" env:"THREE_EDITOR_RELAY_PING_INTERVAL"`
}

// AggregatorConfig configures the event polling loop.
type AggregatorConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// EngineConfig describes how to launch the external engine process.
type EngineConfig struct {
	Command   string   `yaml:"command" env:"THREE_EDITOR_ENGINE_COMMAND"`
	Args      []string `yaml:"args"`
	Dir       string   `yaml:"dir" env:"THREE_EDITOR_ENGINE_DIR"`
	PublicDir string   `yaml:"public_dir" env:"THREE_EDITOR_ENGINE_PUBLIC_DIR"`
	Autostart bool     `yaml:"autostart" env:"THREE_EDITOR_ENGINE_AUTOSTART"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"THREE_EDITOR_LOG_LEVEL"`
	Format string `yaml:"format" env:"THREE_EDITOR_LOG_FORMAT"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	engine := EngineConfig{
		Command:   "npm",
		Args:      []string{"run", "dev"},
		Dir:       "src/engine",
		PublicDir: "src/engine/public",
		Autostart: true,
	}
	if runtime.GOOS == "windows" {
		engine.Command = "cmd"
		engine.Args = []string{"/C", "npm", "run", "dev"}
	}

	return Config{
		ProjectsDir: "projects",
		Relay: RelayConfig{
			Addr:            relay.DefaultAddr,
			Backlog:         relay.DefaultBacklog,
			InboundCapacity: relay.DefaultInboundCapacity,
			PingInterval:    10 * time.Second,
		},
		Aggregator: AggregatorConfig{Interval: aggregator.DefaultInterval},
		Engine:     engine,
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig layers configuration sources: Defaults, then the YAML file at
// path (skipped when path is empty), then environment overrides. Environment
// variables referenced as ${VAR} or $VAR in the YAML are expanded before
// parsing.
func LoadConfig(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
		if err != nil {
			return Config{}, fmt.Errorf("bridge: load config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("bridge: parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("bridge: parse env: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.ProjectsDir == "" {
		return fmt.Errorf("bridge: config: projects_dir is required")
	}

	host, _, err := net.SplitHostPort(c.Relay.Addr)
	if err != nil {
		return fmt.Errorf("bridge: config: relay.addr %q: %w", c.Relay.Addr, err)
	}
	if !isLoopback(host) {
		return fmt.Errorf("bridge: config: relay.addr %q must be a loopback address", c.Relay.Addr)
	}

	if c.Relay.Backlog < 1 {
		return fmt.Errorf("bridge: config: relay.backlog must be positive")
	}
	if c.Relay.InboundCapacity < 1 {
		return fmt.Errorf("bridge: config: relay.inbound_capacity must be positive")
	}
	if c.Relay.PingInterval < 0 {
		return fmt.Errorf("bridge: config: relay.ping_interval must not be negative")
	}
	if c.Aggregator.Interval <= 0 {
		return fmt.Errorf("bridge: config: aggregator.interval must be positive")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("bridge: config: %w", err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("bridge: config: log.format %q must be text or json", c.Log.Format)
	}

	return nil
}

// ParseLevel maps a configured level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}

	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
