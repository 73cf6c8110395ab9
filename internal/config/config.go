package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Transports understood by the ingest layer.
const (
	TransportQuestDB   = "questdb"
	TransportWebSocket = "websocket"
)

// SleepMillisLimit is the largest sleep a time.Duration can hold.
const SleepMillisLimit = math.MaxInt64 / int64(time.Millisecond)

// ErrInvalid is wrapped by every validation and parse failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for the generator. It is built once by Load
// and passed around by value.
type Config struct {
	Ingest    IngestConfig    `yaml:"ingest"`
	Generator GeneratorConfig `yaml:"generator"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IngestConfig contains connection settings for the ingestion endpoint
type IngestConfig struct {
	Transport      string        `yaml:"transport"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	BufferBytes    int           `yaml:"buffer_bytes"`
	URL            string        `yaml:"url"`
	AuthToken      string        `yaml:"auth_token"`
	MaxPendingRows int           `yaml:"max_pending_rows"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	AckTimeout     time.Duration `yaml:"ack_timeout"`
}

// Address returns host:port for line-protocol transports.
func (ic IngestConfig) Address() string {
	return fmt.Sprintf("%s:%d", ic.Host, ic.Port)
}

// GeneratorConfig controls how many readings are produced and how fast
type GeneratorConfig struct {
	Readings       int      `yaml:"readings"`
	MinSleepMillis int      `yaml:"min_sleep_millis"`
	MaxSleepMillis int      `yaml:"max_sleep_millis"`
	SensorIDs      []string `yaml:"sensor_ids"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path"`
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration: YAML file (optional), defaults, environment
// overrides, then validation.
func Load(path string) (Config, error) {
	var config Config

	if path != "" {
		yamlData, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(yamlData, &config); err != nil {
			return Config{}, fmt.Errorf("%w: failed to parse config file: %v", ErrInvalid, err)
		}
	}

	config.ApplyDefaults()
	if err := config.OverrideFromEnv(); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// ApplyDefaults sets default values for any unset fields
func (c *Config) ApplyDefaults() {
	if c.Ingest.Transport == "" {
		c.Ingest.Transport = TransportQuestDB
	}
	if c.Ingest.Port == 0 {
		c.Ingest.Port = 9009
	}
	if c.Ingest.BufferBytes == 0 {
		c.Ingest.BufferBytes = 4096
	}
	if c.Ingest.MaxPendingRows == 0 {
		c.Ingest.MaxPendingRows = 1000
	}
	if c.Ingest.ConnectTimeout == 0 {
		c.Ingest.ConnectTimeout = 10 * time.Second
	}
	if c.Ingest.AckTimeout == 0 {
		c.Ingest.AckTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// OverrideFromEnv overrides config values from environment variables.
// Only non-empty variables are applied; malformed numbers are errors.
func (c *Config) OverrideFromEnv() error {
	if v := os.Getenv("INGEST_TRANSPORT"); v != "" {
		c.Ingest.Transport = v
	}
	if v := os.Getenv("QUESTDB_HOST"); v != "" {
		c.Ingest.Host = v
	}
	if v := os.Getenv("INGEST_URL"); v != "" {
		c.Ingest.URL = v
	}
	if v := os.Getenv("INGEST_AUTH_TOKEN"); v != "" {
		c.Ingest.AuthToken = v
	}
	if v := os.Getenv("SENSOR_IDS"); v != "" {
		c.Generator.SensorIDs = ParseSensorIDs(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"QUESTDB_PORT", &c.Ingest.Port},
		{"QUESTDB_BUFFER_BYTES", &c.Ingest.BufferBytes},
		{"READINGS_TO_GENERATE", &c.Generator.Readings},
		{"MIN_SLEEP_MILLIS", &c.Generator.MinSleepMillis},
		{"MAX_SLEEP_MILLIS", &c.Generator.MaxSleepMillis},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, e.name, v)
		}
		*e.dst = n
	}
	return nil
}

// ParseSensorIDs splits a comma separated list, trimming blanks and dropping
// empty entries. Order is preserved.
func ParseSensorIDs(s string) []string {
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Ingest.Transport {
	case TransportQuestDB:
		if c.Ingest.Host == "" {
			return fmt.Errorf("%w: ingest host is required", ErrInvalid)
		}
		if c.Ingest.Port < 1 || c.Ingest.Port > 65535 {
			return fmt.Errorf("%w: ingest port must be between 1 and 65535", ErrInvalid)
		}
		if c.Ingest.BufferBytes <= 0 {
			return fmt.Errorf("%w: buffer bytes must be positive", ErrInvalid)
		}
	case TransportWebSocket:
		if !strings.HasPrefix(c.Ingest.URL, "ws://") && !strings.HasPrefix(c.Ingest.URL, "wss://") {
			return fmt.Errorf("%w: websocket url must start with ws:// or wss://", ErrInvalid)
		}
		if c.Ingest.MaxPendingRows < 2 {
			return fmt.Errorf("%w: max pending rows must hold at least one reading", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, c.Ingest.Transport)
	}

	if c.Generator.Readings < 0 {
		return fmt.Errorf("%w: readings to generate must not be negative", ErrInvalid)
	}
	if c.Generator.MinSleepMillis < 0 || c.Generator.MaxSleepMillis < 0 {
		return fmt.Errorf("%w: sleep millis must not be negative", ErrInvalid)
	}
	if int64(c.Generator.MaxSleepMillis) > SleepMillisLimit {
		return fmt.Errorf("%w: max sleep %dms exceeds %dms", ErrInvalid, c.Generator.MaxSleepMillis, SleepMillisLimit)
	}
	if c.Generator.MinSleepMillis > c.Generator.MaxSleepMillis {
		return fmt.Errorf("%w: min sleep %dms exceeds max sleep %dms",
			ErrInvalid, c.Generator.MinSleepMillis, c.Generator.MaxSleepMillis)
	}
	if len(c.Generator.SensorIDs) == 0 {
		return fmt.Errorf("%w: at least one sensor id is required", ErrInvalid)
	}
	return nil
}

// String returns a safe string representation (hides auth token)
func (c Config) String() string {
	return fmt.Sprintf("Config{Ingest: [Transport=%s, Addr=%s, URL=%s, Token=%s, BufferBytes=%d], Generator: %+v, Logging: %+v}",
		c.Ingest.Transport,
		c.Ingest.Address(),
		c.Ingest.URL,
		maskToken(c.Ingest.AuthToken),
		c.Ingest.BufferBytes,
		c.Generator,
		c.Logging,
	)
}

// maskToken masks all but first 4 characters of a token
func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
