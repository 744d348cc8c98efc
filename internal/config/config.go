package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("config")

// Config holds every server setting. Flags win over environment variables,
// environment variables win over defaults.
type Config struct {
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP listen port"`
	DatabaseURL  string `long:"database-url" env:"DATABASE_URL" description:"Postgres connection string"`
	JWTSecret    string `long:"jwt-secret" env:"JWT_SECRET" description:"HS256 secret used to verify access tokens"`
	AllowOrigins string `long:"allow-origins" env:"ALLOW_ORIGINS" default:"http://localhost:3000" description:"comma separated CORS origins"`
	AppURL       string `long:"app-url" env:"APP_URL" default:"http://localhost:8080" description:"public URL of the application, sent as HTTP-Referer to the AI provider"`
	SkipMigrate  bool   `long:"skip-migrate" description:"do not apply the embedded schema on start-up"`

	Log      LogOptions      `group:"Logging" namespace:"log" env-namespace:"LOG"`
	AI       AIOptions       `group:"AI" namespace:"ai"`
	Presence PresenceOptions `group:"Presence" namespace:"presence" env-namespace:"PRESENCE"`
	Mongo    MongoOptions    `group:"Mongo" namespace:"mongo" env-namespace:"MONGO"`
}

type LogOptions struct {
	Level string `long:"level" env:"LEVEL" default:"info" description:"set the logging level [debug, info, notice, warning, error, critical]"`
	File  string `long:"file" env:"FILE" description:"also write logs to this file, rotated"`
}

type AIOptions struct {
	APIKey  string        `long:"api-key" env:"OPENROUTER_API_KEY" description:"OpenRouter API key"`
	BaseURL string        `long:"base-url" env:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1" description:"chat completions API base URL"`
	Model   string        `long:"model" env:"AI_MODEL" default:"meta-llama/llama-3.2-3b-instruct:free" description:"default completion model"`
	Timeout time.Duration `long:"timeout" env:"AI_TIMEOUT" default:"30s" description:"timeout for one completion request"`
}

type PresenceOptions struct {
	TTL           time.Duration `long:"ttl" env:"TTL" default:"2m" description:"mark a profile offline when no heartbeat was seen for this long"`
	SweepInterval time.Duration `long:"sweep-interval" env:"SWEEP_INTERVAL" default:"30s" description:"how often stale presence is swept"`
}

type MongoOptions struct {
	URI      string `long:"uri" env:"URI" description:"MongoDB URI for AI transcripts; empty disables recording"`
	Database string `long:"database" env:"DATABASE" default:"alumninexus" description:"MongoDB database name"`
}

// Load reads .env (if present), then parses args over the environment.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found")
	}

	var cfg Config
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	var problems []string
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is not set")
	}
	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is not set")
	}
	if c.Presence.TTL <= 0 || c.Presence.SweepInterval <= 0 {
		problems = append(problems, "presence TTL and sweep interval must be positive")
	} else if c.Presence.SweepInterval > c.Presence.TTL {
		problems = append(problems, "presence sweep interval must not exceed the TTL")
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// Origins returns AllowOrigins in the form fiber's cors middleware expects.
func (c *Config) Origins() string {
	parts := strings.Split(c.AllowOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

// Addr is the listen address for fiber.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.Port)
}
