/*
Package config loads service configuration in three layers: built-in
defaults, an optional YAML file, and WINNOW_ environment variables, each
overriding the one before.

Environment keys nest with a double underscore so field names may keep
single underscores: WINNOW_REASONING__BASE_URL sets reasoning.base_url.
*/
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/winnow/pkg/domain"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "WINNOW_"

const defaultsYAML = `
server:
  addr: ":8080"
  cors_origins: ["*"]
  read_timeout: 15s
  write_timeout: 120s
  shutdown_timeout: 10s
store:
  backend: memory
  file:
    dir: ./data
  redis:
    addr: "localhost:6379"
    password: ""
    db: 0
    ttl: 0s
reasoning:
  base_url: ""
  api_key: ""
  model: ""
  timeout: 60s
autosave:
  delay: 800ms
logging:
  level: info
  format: text
filter:
  lexicon_path: ""
`

// Config is the full service configuration.
type Config struct {
	Server    Server    `koanf:"server"`
	Store     Store     `koanf:"store"`
	Reasoning Reasoning `koanf:"reasoning"`
	Autosave  Autosave  `koanf:"autosave"`
	Logging   Logging   `koanf:"logging"`
	Filter    Filter    `koanf:"filter"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `koanf:"addr"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Store selects and configures the persistence backend.
type Store struct {
	Backend string     `koanf:"backend"`
	File    FileStore  `koanf:"file"`
	Redis   RedisStore `koanf:"redis"`
}

// FileStore configures the file-backed store.
type FileStore struct {
	Dir string `koanf:"dir"`
}

// RedisStore configures the Redis-backed store.
type RedisStore struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
}

// Reasoning configures the upstream reasoning gateway.
type Reasoning struct {
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

// Autosave configures the debounced write buffer.
type Autosave struct {
	Delay time.Duration `koanf:"delay"`
}

// Logging configures log output.
type Logging struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Filter points at an optional replacement content lexicon.
type Filter struct {
	LexiconPath string `koanf:"lexicon_path"`
}

// Load builds the configuration. path may be empty to skip the file layer;
// a named file that does not exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaultsYAML)), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: defaults: %v", domain.ErrConfiguration, err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrConfiguration, path, err)
		}
		if err := k.Load(rawbytes.Provider(data), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfiguration, path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("%w: environment: %v", domain.ErrConfiguration, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", domain.ErrConfiguration, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("%w: unknown store backend %q", domain.ErrConfiguration, c.Store.Backend)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", domain.ErrConfiguration, c.Logging.Format)
	}
	return nil
}
