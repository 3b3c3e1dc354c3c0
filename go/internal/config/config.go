// Package config loads the scoreboard server settings. Values come from
// built-in defaults, then an optional YAML file, then SCOREBOARD_*
// environment variables, each layer overriding the previous one.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// FileEnv names the variable holding the YAML config path.
const FileEnv = "SCOREBOARD_CONFIG"

// Persister kinds
const (
	PersisterMemory   = "memory"
	PersisterBolt     = "bolt"
	PersisterPostgres = "postgres"
	PersisterValkey   = "valkey"
)

// Config holds the server settings. Tags carry full variable names and no
// envconfig defaults, so an unset variable keeps the YAML or default value.
type Config struct {
	Port           string   `yaml:"port" envconfig:"SCOREBOARD_PORT"`
	LogLevel       string   `yaml:"logLevel" envconfig:"SCOREBOARD_LOG_LEVEL"`
	AllowedOrigins []string `yaml:"allowedOrigins" envconfig:"SCOREBOARD_ALLOWED_ORIGINS"`

	Persister      string        `yaml:"persister" envconfig:"SCOREBOARD_PERSISTER"`
	PersistTimeout time.Duration `yaml:"persistTimeout" envconfig:"SCOREBOARD_PERSIST_TIMEOUT"`
	BoltPath       string        `yaml:"boltPath" envconfig:"SCOREBOARD_BOLT_PATH"`
	PostgresKey    string        `yaml:"postgresKey" envconfig:"SCOREBOARD_POSTGRES_KEY"`
	ValkeyAddr     string        `yaml:"valkeyAddr" envconfig:"SCOREBOARD_VALKEY_ADDR"`
	ValkeyPassword string        `yaml:"valkeyPassword" envconfig:"SCOREBOARD_VALKEY_PASSWORD"`
	ValkeyKey      string        `yaml:"valkeyKey" envconfig:"SCOREBOARD_VALKEY_KEY"`

	ArchiveDSN string `yaml:"archiveDsn" envconfig:"SCOREBOARD_ARCHIVE_DSN"`
	ReportsDir string `yaml:"reportsDir" envconfig:"SCOREBOARD_REPORTS_DIR"`

	NATSURL         string `yaml:"natsUrl" envconfig:"SCOREBOARD_NATS_URL"`
	MirrorPrefix    string `yaml:"mirrorPrefix" envconfig:"SCOREBOARD_MIRROR_PREFIX"`
	ConsumerEnabled bool   `yaml:"consumerEnabled" envconfig:"SCOREBOARD_CONSUMER_ENABLED"`
	ConsumerStream  string `yaml:"consumerStream" envconfig:"SCOREBOARD_CONSUMER_STREAM"`
	ConsumerName    string `yaml:"consumerName" envconfig:"SCOREBOARD_CONSUMER_NAME"`
	ConsumerSubject string `yaml:"consumerSubject" envconfig:"SCOREBOARD_CONSUMER_SUBJECT"`

	InteropRate  float64 `yaml:"interopRate" envconfig:"SCOREBOARD_INTEROP_RATE"`
	InteropBurst int     `yaml:"interopBurst" envconfig:"SCOREBOARD_INTEROP_BURST"`

	BoardTickInterval  time.Duration `yaml:"boardTickInterval" envconfig:"SCOREBOARD_BOARD_TICK_INTERVAL"`
	MatchTimerInterval time.Duration `yaml:"matchTimerInterval" envconfig:"SCOREBOARD_MATCH_TIMER_INTERVAL"`
	ShutdownTimeout    time.Duration `yaml:"shutdownTimeout" envconfig:"SCOREBOARD_SHUTDOWN_TIMEOUT"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port:               "8080",
		LogLevel:           "info",
		Persister:          PersisterBolt,
		PersistTimeout:     5 * time.Second,
		BoltPath:           "scoreboard.db",
		ReportsDir:         "reports",
		PostgresKey:        "main",
		ValkeyAddr:         "localhost:6379",
		ValkeyKey:          "improvscore:board",
		MirrorPrefix:       "scoreboard",
		ConsumerStream:     "PACING",
		ConsumerName:       "improvscore-board",
		ConsumerSubject:    "pacing.>",
		InteropRate:        5,
		InteropBurst:       20,
		BoardTickInterval:  250 * time.Millisecond,
		MatchTimerInterval: 100 * time.Millisecond,
		ShutdownTimeout:    10 * time.Second,
	}
}

// Load reads .env, the YAML file named by SCOREBOARD_CONFIG and the
// environment, then validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read SCOREBOARD_* settings: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level %q: %w", c.LogLevel, err))
	}
	switch c.Persister {
	case PersisterMemory:
	case PersisterBolt:
		if c.BoltPath == "" {
			errs = append(errs, errors.New("bolt persister needs boltPath"))
		}
	case PersisterPostgres:
		if c.PostgresKey == "" {
			errs = append(errs, errors.New("postgres persister needs postgresKey"))
		}
	case PersisterValkey:
		if c.ValkeyAddr == "" || c.ValkeyKey == "" {
			errs = append(errs, errors.New("valkey persister needs valkeyAddr and valkeyKey"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown persister %q", c.Persister))
	}
	if c.ConsumerEnabled && c.NATSURL == "" {
		errs = append(errs, errors.New("the pacing consumer needs natsUrl"))
	}
	if c.InteropRate <= 0 || c.InteropBurst <= 0 {
		errs = append(errs, errors.New("interop rate and burst must be positive"))
	}
	if c.PersistTimeout <= 0 || c.ShutdownTimeout <= 0 || c.BoardTickInterval <= 0 || c.MatchTimerInterval <= 0 {
		errs = append(errs, errors.New("timeouts and intervals must be positive"))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level, info when it cannot be parsed.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
