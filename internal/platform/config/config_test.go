// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/anisync/internal/platform/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://anisync@localhost/anisync")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_PUBLIC_KEY_PATH", "/run/secrets/jwt.pub")
}

/*
TestLoad_Defaults fills the optional settings.
*/
func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Addr())
	assert.Equal(t, config.DefaultMappingFeedURL, cfg.MappingFeedURL)
	assert.Equal(t, 5*time.Minute, cfg.StatisticsTTL)
	assert.True(t, cfg.IsDevelopment())
	assert.InDelta(t, 100.0, cfg.RateLimitRPS, 1e-9)
	assert.True(t, cfg.IsOriginAllowed("http://LOCALHOST:3005"))
	assert.False(t, cfg.IsOriginAllowed("https://elsewhere.example"))
}

/*
TestLoad_Invalid rejects each malformed setting.
*/
func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"port_not_numeric", "SERVER_PORT", "http", "SERVER_PORT"},
		{"port_out_of_range", "SERVER_PORT", "70000", "SERVER_PORT"},
		{"unknown_environment", "ENVIRONMENT", "staging", "ENVIRONMENT"},
		{"feed_not_http", "ANIDB_MAPPING_URL", "ftp://mirror/list.json", "ANIDB_MAPPING_URL"},
		{"zero_ttl", "STATISTICS_CACHE_TTL", "0s", "STATISTICS_CACHE_TTL"},
		{"zero_burst", "RATE_LIMIT_BURST", "0", "RATE_LIMIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

/*
TestLoad_MissingRequired fails without a database URL.
*/
func TestLoad_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")

	_, err := config.Load()
	assert.Error(t, err)
}
