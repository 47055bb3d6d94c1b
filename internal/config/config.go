// Package config loads reportcard settings from YAML with .env and
// environment variable overrides.
//
// Files are layered in this order, later entries winning:
//
//  1. <name>.<ext> (for example reportcard.yml)
//  2. <name>.local.<ext>, merged field by field over the base
//  3. .env.local / .env (or the file named by ENV_FILE)
//  4. variables named by `env` struct tags
//
// A missing base file is not an error; defaults apply.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pbaille/reportcard/internal/logger"
)

// DefaultPath is used when neither --config nor CONFIG_PATH is given.
const DefaultPath = "reportcard.yml"

// Config is the full application configuration.
type Config struct {
	DogName    string           `yaml:"dog_name" env:"REPORTCARD_DOG_NAME"`
	RecordsDir string           `yaml:"records_dir" env:"REPORTCARD_RECORDS_DIR"`
	DataDir    string           `yaml:"data_dir" env:"REPORTCARD_DATA_DIR"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Logging    logger.Config    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
}

// ClassifierConfig selects and tunes the classifier provider.
type ClassifierConfig struct {
	// Provider is "anthropic" or "rules".
	Provider  string        `yaml:"provider" env:"REPORTCARD_CLASSIFIER"`
	Model     string        `yaml:"model" env:"ANTHROPIC_MODEL"`
	APIKey    string        `yaml:"api_key" env:"ANTHROPIC_API_KEY"`
	Endpoint  string        `yaml:"endpoint" env:"ANTHROPIC_ENDPOINT"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout" env:"REPORTCARD_CLASSIFIER_TIMEOUT"`
	// Pacing is the minimum spacing between two classifier calls.
	Pacing time.Duration `yaml:"pacing" env:"REPORTCARD_CLASSIFIER_PACING"`
	// KnownFriends is the roster the rules provider matches names against.
	KnownFriends         []string `yaml:"known_friends" env:"REPORTCARD_KNOWN_FRIENDS"`
	FriendMatchThreshold float64  `yaml:"friend_match_threshold"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"REPORTCARD_ADDR"`
}

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderRules     = "rules"
)

// Defaults.
const (
	DefaultDogName              = "Dog"
	DefaultRecordsDir           = "data/records"
	DefaultDataDir              = "data/analysis"
	DefaultModel                = "claude-sonnet-4-20250514"
	DefaultEndpoint             = "https://api.anthropic.com/v1/messages"
	DefaultMaxTokens            = 1024
	DefaultTimeout              = 60 * time.Second
	DefaultPacing               = 100 * time.Millisecond
	DefaultFriendMatchThreshold = 0.9
	DefaultAddr                 = ":8080"
)

// Load reads the config at path, then layers the .local sibling, .env files
// and environment variables over it.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	var cfg Config
	if err := readYAML(path, &cfg); err != nil {
		return nil, err
	}

	var local Config
	if err := readYAML(localPath(path), &local); err != nil {
		return nil, err
	}
	if err := mergo.Merge(&cfg, local, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge local config: %w", err)
	}

	applyEnvOverrides(&cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the config path from CONFIG_PATH or the given default.
func Path(defaultPath string) string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return defaultPath
}

// SetDefaults fills every unset value.
func (c *Config) SetDefaults() {
	if c.DogName == "" {
		c.DogName = DefaultDogName
	}
	if c.RecordsDir == "" {
		c.RecordsDir = DefaultRecordsDir
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	cl := &c.Classifier
	if cl.Provider == "" {
		cl.Provider = ProviderAnthropic
	}
	if cl.Model == "" {
		cl.Model = DefaultModel
	}
	if cl.Endpoint == "" {
		cl.Endpoint = DefaultEndpoint
	}
	if cl.MaxTokens == 0 {
		cl.MaxTokens = DefaultMaxTokens
	}
	if cl.Timeout == 0 {
		cl.Timeout = DefaultTimeout
	}
	if cl.Pacing == 0 {
		cl.Pacing = DefaultPacing
	}
	if cl.FriendMatchThreshold == 0 {
		cl.FriendMatchThreshold = DefaultFriendMatchThreshold
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	c.Logging.SetDefaults()
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Classifier.Provider {
	case ProviderAnthropic, ProviderRules:
	default:
		errs = append(errs, fmt.Errorf("classifier.provider: unknown provider %q", c.Classifier.Provider))
	}
	if c.Classifier.Pacing < 0 {
		errs = append(errs, errors.New("classifier.pacing: must not be negative"))
	}
	if c.Classifier.Timeout < 0 {
		errs = append(errs, errors.New("classifier.timeout: must not be negative"))
	}
	if t := c.Classifier.FriendMatchThreshold; t < 0 || t > 1 {
		errs = append(errs, errors.New("classifier.friend_match_threshold: must be within [0, 1]"))
	}
	if strings.TrimSpace(c.DogName) == "" {
		errs = append(errs, errors.New("dog_name: must not be blank"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func readYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// localPath turns reportcard.yml into reportcard.local.yml.
func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// loadEnvFiles loads ENV_FILE if set, otherwise .env.local then .env.
// godotenv never overrides variables that are already set.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}
