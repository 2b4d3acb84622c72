package main

import (
	"path/filepath"
)

func defaultConfig() Config {
	return Config{
		ListenAddr:               defaultListenAddr,
		DataDir:                  defaultDataDir,
		SessionDays:              defaultSessionDays,
		RPCHost:                  defaultRPCHost,
		RPCPort:                  defaultRPCPort,
		RPCTimeoutSeconds:        defaultRPCTimeout,
		AppUsername:              defaultAppUsername,
		DefaultRefreshIntervalMS: defaultRefreshIntervalMS,
		RefreshIntervalsMS:       append([]int(nil), defaultRefreshIntervalsMS...),
		WatchIntervalSeconds:     defaultWatchIntervalSecs,
		CacheTTLMS:               defaultCacheTTLMS,
		LogLevel:                 "info",
	}
}

func defaultConfigPath() string {
	return filepath.Join(defaultDataDir, "config", "config.toml")
}

func defaultSecretsPath(dataDir string) string {
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	return filepath.Join(dataDir, "config", "secrets.toml")
}
