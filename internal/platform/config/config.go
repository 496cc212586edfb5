// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config loads the settings of the API server from the environment
(caarlos0/env) and of the mapctl CLI from an INI profile (see client.go).

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Configuration is read once at startup and passed down through constructors.
*/
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultMappingFeedURL is the community-maintained AniDB to MAL mapping feed.
const DefaultMappingFeedURL = "https://raw.githubusercontent.com/Anime-Lists/anime-lists/master/anime-list-full.json"

// Environment names accepted by ENVIRONMENT.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// # Configuration Schema

// Config holds the runtime configuration of the API server.
type Config struct {
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8000"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	RedisURL      string        `env:"REDIS_URL,required,notEmpty"`
	StatisticsTTL time.Duration `env:"STATISTICS_CACHE_TTL" envDefault:"5m"`

	// JWTPubKeyPath points at the PEM public key of the external auth service.
	JWTPubKeyPath string `env:"JWT_PUBLIC_KEY_PATH,required,notEmpty"`

	// MappingFeedURL is the default source of POST /refresh.
	MappingFeedURL string `env:"ANIDB_MAPPING_URL"`

	// JellyfinWebhookSecret enables HMAC verification of webhook bodies when set.
	JellyfinWebhookSecret string `env:"JELLYFIN_WEBHOOK_SECRET"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS"   envDefault:"100"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"150"`

	AllowedOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3005,http://127.0.0.1:3005"`
}

// # Configuration Loading

// Load parses the environment into a [Config] and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	if strings.TrimSpace(cfg.MappingFeedURL) == "" {
		cfg.MappingFeedURL = DefaultMappingFeedURL
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// validate joins every problem so a misconfigured deployment sees all of them at once.
func (c *Config) validate() error {
	var problems []error

	if port, err := strconv.Atoi(c.ServerPort); err != nil || port <= 0 || port > 65535 {
		problems = append(problems, fmt.Errorf("SERVER_PORT %q is not a valid port", c.ServerPort))
	}
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		problems = append(problems, fmt.Errorf("ENVIRONMENT must be %q or %q", EnvDevelopment, EnvProduction))
	}
	if c.StatisticsTTL <= 0 {
		problems = append(problems, errors.New("STATISTICS_CACHE_TTL must be positive"))
	}
	if feed, err := url.Parse(c.MappingFeedURL); err != nil || (feed.Scheme != "http" && feed.Scheme != "https") {
		problems = append(problems, fmt.Errorf("ANIDB_MAPPING_URL %q must be an http(s) URL", c.MappingFeedURL))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		problems = append(problems, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}

	return errors.Join(problems...)
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.ServerPort
}

// IsDevelopment reports whether every CORS origin is allowed.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// IsOriginAllowed reports whether origin is on the CORS allow-list.
func (c *Config) IsOriginAllowed(origin string) bool {
	for _, allowed := range c.AllowedOrigins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}
