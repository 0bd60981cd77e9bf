package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// State backend selectors accepted in STATE_TYPE.
const (
	StateTypeInMemory = "in-memory"
	StateTypePostgres = "postgres"
)

// Config holds all application configuration, loaded from environment variables.
type Config struct {
	// Argo CD connection
	ArgoURL      string `env:"ARGO_URL,required,notEmpty"`
	ArgoUser     string `env:"ARGO_USER,required,notEmpty"`
	ArgoPassword string `env:"ARGO_PASSWORD,required,notEmpty"`
	ArgoTimeout  int    `env:"ARGO_TIMEOUT" envDefault:"300"`

	// Watcher behaviour
	StateType  string `env:"STATE_TYPE" envDefault:"in-memory"`
	SSLVerify  bool   `env:"SSL_VERIFY" envDefault:"true"`
	HistoryTTL int    `env:"HISTORY_TTL" envDefault:"3600"`

	// Database (required when STATE_TYPE=postgres)
	DBHost     string `env:"DB_HOST"`
	DBPort     int    `env:"DB_PORT" envDefault:"5432"`
	DBName     string `env:"DB_NAME"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`

	// Migrations
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server
	BindIP    string `env:"BIND_IP" envDefault:"0.0.0.0"`
	StaticDir string `env:"STATIC_DIR" envDefault:"static"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Slack (optional — if not set, deployment notifications are disabled)
	SlackToken   string `env:"SLACK_TOKEN"`
	SlackChannel string `env:"SLACK_CHANNEL"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StateType {
	case StateTypeInMemory, StateTypePostgres:
	default:
		return fmt.Errorf("STATE_TYPE must be one of [%s, %s], got %q",
			StateTypeInMemory, StateTypePostgres, c.StateType)
	}

	if c.StateType == StateTypePostgres {
		for name, value := range map[string]string{
			"DB_HOST":     c.DBHost,
			"DB_NAME":     c.DBName,
			"DB_USER":     c.DBUser,
			"DB_PASSWORD": c.DBPassword,
		} {
			if value == "" {
				return fmt.Errorf("%s is required when STATE_TYPE=%s", name, StateTypePostgres)
			}
		}
	}

	if c.ArgoTimeout <= 0 {
		return fmt.Errorf("ARGO_TIMEOUT must be positive, got %d", c.ArgoTimeout)
	}
	if c.HistoryTTL <= 0 {
		return fmt.Errorf("HISTORY_TTL must be positive, got %d", c.HistoryTTL)
	}

	return nil
}

// ListenAddr returns the address the HTTP server should listen on.
// The port is fixed at 8080.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:8080", c.BindIP)
}

// DatabaseURL builds the postgres connection string for the durable store.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
