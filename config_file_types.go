package main

type serverConfig struct {
	Listen      string `toml:"listen"`
	DataDir     string `toml:"data_dir"`
	SessionDays *int   `toml:"session_days"`
}

type nodeConfig struct {
	RPCURL            string `toml:"rpc_url"`
	RPCHost           string `toml:"rpc_host"`
	RPCPort           int    `toml:"rpc_port"`
	RPCCookiePath     string `toml:"rpc_cookie_path"`
	RPCTimeoutSeconds int    `toml:"rpc_timeout_seconds"`
}

type refreshConfig struct {
	DefaultIntervalMS    int   `toml:"default_interval_ms"`
	IntervalsMS          []int `toml:"intervals_ms"`
	WatchIntervalSeconds *int  `toml:"watch_interval_seconds"`
}

type cacheConfig struct {
	TTLMS    *int   `toml:"ttl_ms"`
	RedisURL string `toml:"redis_url"`
}

type loggingConfig struct {
	Level  string `toml:"level"`
	Stdout bool   `toml:"stdout"`
}

type discordConfig struct {
	ChannelID string `toml:"channel_id"`
}

type baseFileConfig struct {
	Server  serverConfig  `toml:"server"`
	Node    nodeConfig    `toml:"node"`
	Refresh refreshConfig `toml:"refresh"`
	Cache   cacheConfig   `toml:"cache"`
	Logging loggingConfig `toml:"logging"`
	Discord discordConfig `toml:"discord"`
}

type secretsConfig struct {
	RPCUser           string `toml:"rpc_user"`
	RPCPassword       string `toml:"rpc_password"`
	AppUsername       string `toml:"app_username"`
	AppPassword       string `toml:"app_password"`
	AppPasswordSHA256 string `toml:"app_password_sha256"`
	SecretKey         string `toml:"secret_key"`
	DiscordToken      string `toml:"discord_token"`
}

// envConfig mirrors the environment variables deployments of the panel
// already use. Unset variables leave the file values alone.
type envConfig struct {
	RPCHost     string `envconfig:"GRIDCOIN_RPC_HOST"`
	RPCPort     int    `envconfig:"GRIDCOIN_RPC_PORT"`
	RPCUser     string `envconfig:"GRIDCOIN_RPC_USER"`
	RPCPassword string `envconfig:"GRIDCOIN_RPC_PASSWORD"`
	AppUsername string `envconfig:"APP_USERNAME"`
	AppPassword string `envconfig:"APP_PASSWORD"`
	SecretKey   string `envconfig:"SECRET_KEY"`
	Listen      string `envconfig:"GRCPANEL_LISTEN"`
	RedisURL    string `envconfig:"GRCPANEL_REDIS_URL"`
}
