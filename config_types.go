package main

import (
	"fmt"
	"time"
)

type Config struct {
	// Server
	ListenAddr  string
	DataDir     string
	SessionDays int

	// Node RPC. RPCURL wins over host/port when set.
	RPCURL            string
	RPCHost           string
	RPCPort           int
	RPCUser           string
	RPCPass           string
	RPCCookiePath     string
	RPCTimeoutSeconds int

	// Login
	AppUsername       string
	AppPassword       string
	AppPasswordSHA256 string
	SecretKey         string

	// Auto-refresh
	DefaultRefreshIntervalMS int
	RefreshIntervalsMS       []int
	WatchIntervalSeconds     int

	// Response cache
	CacheTTLMS int
	RedisURL   string

	// Logging
	LogLevel  string
	LogStdout bool

	// Discord
	DiscordToken     string
	DiscordChannelID string

	// secretKeyGenerated is set when SecretKey was not configured and a
	// per-process key was generated instead.
	secretKeyGenerated bool
}

// rpcEndpoint returns the wallet JSON-RPC URL.
func (c Config) rpcEndpoint() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	return fmt.Sprintf("http://%s:%d", c.RPCHost, c.RPCPort)
}

func (c Config) rpcTimeout() time.Duration {
	if c.RPCTimeoutSeconds <= 0 {
		return defaultRPCTimeout * time.Second
	}
	return time.Duration(c.RPCTimeoutSeconds) * time.Second
}

func (c Config) cacheTTL() time.Duration {
	if c.CacheTTLMS <= 0 {
		return 0
	}
	return time.Duration(c.CacheTTLMS) * time.Millisecond
}

func (c Config) watchInterval() time.Duration {
	if c.WatchIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.WatchIntervalSeconds) * time.Second
}

func (c Config) rememberTTL() time.Duration {
	days := c.SessionDays
	if days <= 0 {
		days = defaultSessionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

var secretsConfigExample = []byte(`# RPC credentials for gridcoinresearchd. Leave empty when
# node.rpc_cookie_path is set.
rpc_user = "gridcoinrpc"
rpc_password = "change-me"

# Panel login. Prefer app_password_sha256 (run grcPanel -set-password).
app_username = "admin"
app_password = ""
app_password_sha256 = ""

# Signs session cookies. Empty means a random key per process.
secret_key = ""

# Optional bot token for connection alerts.
discord_token = ""
`)
