// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/ini.v1"
)

// # Client Profile

// ClientConfig holds the settings used by the mapctl command line client.
//
// Values are read from an ini profile first and then overridden by the
// environment, so a CI job can run without a profile file.
type ClientConfig struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api.
	BaseURL string `env:"ANISYNC_API_URL"`

	// Token is the bearer credential attached to every request.
	Token string `env:"ANISYNC_TOKEN"`

	// PerPage is the page size used by list views.
	PerPage int `env:"ANISYNC_PER_PAGE"`
}

const (
	defaultClientBaseURL = "http://localhost:8000/api"
	defaultClientPerPage = 50
	profileSection       = "server"
)

// DefaultClientConfigPath returns ~/.config/anisync/mapctl.ini (or the platform equivalent).
func DefaultClientConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "mapctl.ini"
	}
	return filepath.Join(dir, "anisync", "mapctl.ini")
}

/*
LoadClient reads the mapctl profile.

A missing profile file is not an error; defaults and environment
variables still apply.

Parameters:
  - path: string (Profile path; empty selects [DefaultClientConfigPath])

Returns:
  - *ClientConfig: Resolved settings
  - error: Malformed profile or environment values
*/
func LoadClient(path string) (*ClientConfig, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultClientConfigPath()
	}

	// LooseLoad skips files that do not exist.
	file, err := ini.LooseLoad(path)
	if err != nil {
		return nil, fmt.Errorf("config: load profile %s: %w", path, err)
	}

	section := file.Section(profileSection)
	cfg := &ClientConfig{
		BaseURL: section.Key("base_url").MustString(defaultClientBaseURL),
		Token:   section.Key("token").String(),
		PerPage: section.Key("per_page").MustInt(defaultClientPerPage),
	}

	// Environment wins over the profile.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultClientPerPage
	}

	return cfg, nil
}
