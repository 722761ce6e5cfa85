package main

import (
	"os"
	"strconv"
	"time"

	"github.com/twentylab/handelsregister/services/api"
)

type Config struct {
	Port int `json:"port"`
	// portal base url, defaults to the production registry portal
	BaseUrl string `json:"base_url"`
	// directory for cached result documents, defaults to a tmpdir
	CacheDir string `json:"cache_dir"`
	// directory for debug transport dumps
	DebugDir string `json:"debug_dir"`

	Secret      string `json:"secret"`
	RateLimit   string `json:"rate_limit"`
	TimeoutSecs int    `json:"timeout_seconds"`
}

// environment variables override the config file so deployments can
// inject secrets without touching config.json5
func (c Config) withEnvOverrides() Config {
	if secret := os.Getenv("JWT_SECRET_KEY"); secret != "" {
		c.Secret = secret
	}
	if limit := os.Getenv("RATE_LIMIT_DEFAULT"); limit != "" {
		c.RateLimit = limit
	}
	if timeout := os.Getenv("REQUEST_TIMEOUT"); timeout != "" {
		secs, err := strconv.Atoi(timeout)
		if err == nil && secs > 0 {
			c.TimeoutSecs = secs
		}
	}
	return c
}

func (c Config) apiOptions() (api.Options, error) {
	opts := api.Options{
		Secret:  c.Secret,
		Timeout: time.Duration(c.TimeoutSecs) * time.Second,
	}
	if c.RateLimit != "" {
		limit, err := api.ParseLimit(c.RateLimit)
		if err != nil {
			return api.Options{}, err
		}
		opts.RateLimit = limit
	}
	return opts, nil
}
