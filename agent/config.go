package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/loopwright/drover/llm"
)

// Config holds the loop's tunables. Values come from DROVER_* environment
// variables, then explicit options, then defaults and clamping.
type Config struct {
	// Model is the model ID sent to the provider.
	Model string `env:"DROVER_MODEL"`
	// Provider selects the llm adapter. Inferred from the model catalog
	// when empty.
	Provider string `env:"DROVER_PROVIDER"`
	// Workdir confines file tools and shell commands.
	Workdir string `env:"DROVER_WORKDIR"`
	// SkillsDir is scanned for skill directories at startup. Defaults to
	// Workdir/skills.
	SkillsDir string `env:"DROVER_SKILLS_DIR"`

	MaxOutputTokens      int           `env:"DROVER_MAX_OUTPUT_TOKENS" envDefault:"160000"`
	MaxTruncationRetries int           `env:"DROVER_MAX_TRUNCATION_RETRIES" envDefault:"3"`
	MaxToolRounds        int           `env:"DROVER_MAX_TOOL_ROUNDS" envDefault:"200"`
	MaxSubagentDepth     int           `env:"DROVER_MAX_SUBAGENT_DEPTH" envDefault:"1"`
	RequestTimeout       time.Duration `env:"DROVER_REQUEST_TIMEOUT" envDefault:"600s"`
	// LoopDetection enables the repeated-call guard. Off by default.
	LoopDetection bool `env:"DROVER_LOOP_DETECTION"`

	Logger *zap.Logger `env:"-"`
}

// Option overrides one Config field after environment parsing.
type Option func(*Config)

func WithModel(model string) Option       { return func(c *Config) { c.Model = model } }
func WithProvider(provider string) Option { return func(c *Config) { c.Provider = provider } }
func WithWorkdir(dir string) Option       { return func(c *Config) { c.Workdir = dir } }
func WithSkillsDir(dir string) Option     { return func(c *Config) { c.SkillsDir = dir } }
func WithLogger(log *zap.Logger) Option   { return func(c *Config) { c.Logger = log } }

func WithMaxOutputTokens(n int) Option      { return func(c *Config) { c.MaxOutputTokens = n } }
func WithMaxTruncationRetries(n int) Option { return func(c *Config) { c.MaxTruncationRetries = n } }
func WithMaxToolRounds(n int) Option        { return func(c *Config) { c.MaxToolRounds = n } }
func WithMaxSubagentDepth(n int) Option     { return func(c *Config) { c.MaxSubagentDepth = n } }

func WithRequestTimeout(d time.Duration) Option { return func(c *Config) { c.RequestTimeout = d } }
func WithLoopDetection(enabled bool) Option     { return func(c *Config) { c.LoopDetection = enabled } }

// LoadConfig builds a Config from the environment, applies options, then
// fills defaults and clamps numeric fields.
func LoadConfig(opts ...Option) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize fills defaults and clamps numeric fields into valid ranges.
func (c *Config) normalize() error {
	if c.Model == "" {
		c.Model = llm.DefaultModel
	}
	if c.Provider == "" {
		if info := llm.GetModelInfo(c.Model); info != nil {
			c.Provider = info.Provider
		}
	}
	if c.Workdir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		c.Workdir = wd
	}
	if c.SkillsDir == "" {
		c.SkillsDir = filepath.Join(c.Workdir, "skills")
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	c.MaxOutputTokens = clampInt(c.MaxOutputTokens, 1000, 100_000_000)
	c.MaxTruncationRetries = clampInt(c.MaxTruncationRetries, 1, 10)
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = 200
	}
	if c.MaxSubagentDepth < 0 {
		c.MaxSubagentDepth = 0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 600 * time.Second
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
