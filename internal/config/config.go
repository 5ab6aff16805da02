// Package config loads the portal's configuration from PORTAL_*
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains server configuration parameters.
type Config struct {
	Addr         string `env:"ADDR" envDefault:":8080"`
	Env          string `env:"ENV" envDefault:"development"`
	DatabasePath string `env:"DB_PATH" envDefault:"coachportal.db"`
	BaseURL      string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	StaticDir    string `env:"STATIC_DIR" envDefault:"static"`

	// CSRFKey is a 64-character hex secret (32 bytes). Required in
	// production; generated per startup otherwise.
	CSRFKey string `env:"CSRF_KEY"`

	// FailsafeTimeout bounds the startup session check.
	FailsafeTimeout time.Duration `env:"FAILSAFE_TIMEOUT" envDefault:"4s"`

	// SlowRequestThreshold is the duration above which a request is
	// logged as slow.
	SlowRequestThreshold time.Duration `env:"SLOW_REQUEST_THRESHOLD" envDefault:"200ms"`

	Admin   Admin   `envPrefix:"ADMIN_"`
	Email   Email   `envPrefix:"EMAIL_"`
	Storage Storage `envPrefix:"MINIO_"`
}

// Admin holds the operator-supplied bootstrap credentials. Empty
// values skip the bootstrap.
type Admin struct {
	Email    string `env:"EMAIL"`
	Password string `env:"PASSWORD"`
}

// Email contains activation-email delivery parameters.
type Email struct {
	ResendKey string `env:"RESEND_KEY"`
	From      string `env:"FROM" envDefault:"Coach Portal <noreply@coachportal.test>"`
}

// Storage contains object storage parameters. An empty endpoint keeps
// uploads in memory.
type Storage struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"coachportal-uploads"`
	PublicURL string `env:"PUBLIC_URL"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "PORTAL_"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether the portal runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
