package main

import (
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"taskflow/store"
)

type config struct {
	APIURL   string
	Debug    bool
	Timeout  time.Duration
	RedisURL string
	CacheTTL time.Duration
	LogFile  string
}

func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		APIURL:   store.DefaultBaseURL,
		Timeout:  30 * time.Second,
		CacheTTL: time.Minute,
		RedisURL: getenv("REDIS_CONNECTION_STRING"),
		LogFile:  getenv("LOG_FILE"),
	}
	if v := getenv("TASKS_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if dbg, err := strconv.ParseBool(getenv("DEBUG")); err == nil && dbg {
		cfg.Debug = true
	}
	if v := getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return config{}, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return config{}, fmt.Errorf("invalid REQUEST_TIMEOUT: must be greater than zero")
		}
		cfg.Timeout = d
	}
	if v := getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return config{}, fmt.Errorf("invalid CACHE_TTL: %q", v)
		}
		cfg.CacheTTL = d
	}
	return cfg, nil
}

// redisOptions accepts a redis:// URL or the "host:port,password=...,ssl=True"
// form used by managed Redis connection strings.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
