package main

import (
	"fmt"
	"net/url"
	"strings"
)

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("server.listen is required")
	}
	endpoint := cfg.rpcEndpoint()
	if parsedRPC, err := url.Parse(endpoint); err != nil {
		return fmt.Errorf("rpc_url parse error: %w", err)
	} else if parsedRPC.Scheme != "http" && parsedRPC.Scheme != "https" {
		if parsedRPC.Scheme == "" {
			return fmt.Errorf("rpc_url %q missing protocol scheme (http/https)", endpoint)
		}
		return fmt.Errorf("rpc_url %q must use http or https scheme", endpoint)
	}
	if cfg.RPCURL == "" && (cfg.RPCPort <= 0 || cfg.RPCPort > 65535) {
		return fmt.Errorf("rpc_port must be between 1 and 65535, got %d", cfg.RPCPort)
	}
	if cfg.RPCTimeoutSeconds < 0 {
		return fmt.Errorf("rpc_timeout_seconds cannot be negative")
	}
	if strings.TrimSpace(cfg.AppUsername) == "" {
		return fmt.Errorf("app_username is required")
	}
	if h := cfg.AppPasswordSHA256; h != "" && !isHexDigest(h) {
		return fmt.Errorf("app_password_sha256 must be 64 hex characters")
	}
	if cfg.DefaultRefreshIntervalMS < minRefreshIntervalMS {
		return fmt.Errorf("refresh.default_interval_ms must be >= %d, got %d", minRefreshIntervalMS, cfg.DefaultRefreshIntervalMS)
	}
	for _, v := range cfg.RefreshIntervalsMS {
		if v < minRefreshIntervalMS {
			return fmt.Errorf("refresh.intervals_ms entries must be >= %d, got %d", minRefreshIntervalMS, v)
		}
	}
	if cfg.WatchIntervalSeconds < 0 {
		return fmt.Errorf("refresh.watch_interval_seconds cannot be negative")
	}
	if cfg.CacheTTLMS < 0 {
		return fmt.Errorf("cache.ttl_ms cannot be negative")
	}
	if cfg.RedisURL != "" {
		if u, err := url.Parse(cfg.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			return fmt.Errorf("cache.redis_url %q must use redis:// or rediss://", cfg.RedisURL)
		}
	}
	if cfg.DiscordToken != "" && cfg.DiscordChannelID == "" {
		return fmt.Errorf("discord.channel_id is required when discord_token is set")
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
