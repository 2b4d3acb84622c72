package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
)

func ensureExampleFiles(dataDir string) {
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	examplesDir := filepath.Join(dataDir, "config", "examples")
	if err := os.MkdirAll(examplesDir, 0o755); err != nil {
		logger.Warn("create examples directory for example configs failed", "dir", examplesDir, "error", err)
		return
	}

	ensureExampleFile(filepath.Join(examplesDir, "config.toml.example"), exampleConfigBytes())
	ensureExampleFile(filepath.Join(examplesDir, "secrets.toml.example"), secretsConfigExample)
}

func ensureExampleFile(path string, contents []byte) {
	if len(contents) == 0 {
		return
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		logger.Warn("write example config failed", "path", path, "error", err)
	}
}

func withPrependedTOMLComments(data []byte, parts ...[]byte) []byte {
	total := len(data)
	for _, part := range parts {
		total += len(part)
	}
	out := make([]byte, 0, total)
	for _, part := range parts {
		out = append(out, part...)
	}
	out = append(out, data...)
	return out
}

func exampleHeader(text string) []byte {
	return fmt.Appendf(nil, "# Generated %s example (copy to a real config and edit as needed)\n\n", text)
}

func baseConfigDocComments() []byte {
	return []byte(`# Key notes
# - [server].listen: HTTP listener for the panel (requires restart).
# - [server].session_days: lifetime of "remember me" logins.
# - [node].rpc_url: full wallet RPC URL; when empty it is built from rpc_host/rpc_port.
# - [node].rpc_cookie_path: read RPC credentials from the wallet cookie file instead of secrets.toml.
# - [refresh].intervals_ms: choices offered by the auto-refresh selector.
# - [refresh].watch_interval_seconds: background wallet probe cadence; 0 disables it.
# - [cache].ttl_ms: API response cache lifetime; 0 disables caching.
# - [cache].redis_url: share the response cache through redis (redis://host:6379/0).
# - [discord].channel_id: channel for connection alerts (token lives in secrets.toml).
#
# Environment overrides: GRIDCOIN_RPC_HOST, GRIDCOIN_RPC_PORT, GRIDCOIN_RPC_USER,
# GRIDCOIN_RPC_PASSWORD, APP_USERNAME, APP_PASSWORD, SECRET_KEY,
# GRCPANEL_LISTEN, GRCPANEL_REDIS_URL.
#
`)
}

func buildBaseFileConfig(cfg Config) baseFileConfig {
	sessionDays := cfg.SessionDays
	watch := cfg.WatchIntervalSeconds
	ttl := cfg.CacheTTLMS
	return baseFileConfig{
		Server: serverConfig{
			Listen:      cfg.ListenAddr,
			DataDir:     cfg.DataDir,
			SessionDays: &sessionDays,
		},
		Node: nodeConfig{
			RPCURL:            cfg.RPCURL,
			RPCHost:           cfg.RPCHost,
			RPCPort:           cfg.RPCPort,
			RPCCookiePath:     cfg.RPCCookiePath,
			RPCTimeoutSeconds: cfg.RPCTimeoutSeconds,
		},
		Refresh: refreshConfig{
			DefaultIntervalMS:    cfg.DefaultRefreshIntervalMS,
			IntervalsMS:          cfg.RefreshIntervalsMS,
			WatchIntervalSeconds: &watch,
		},
		Cache: cacheConfig{
			TTLMS:    &ttl,
			RedisURL: cfg.RedisURL,
		},
		Logging: loggingConfig{
			Level:  cfg.LogLevel,
			Stdout: cfg.LogStdout,
		},
		Discord: discordConfig{
			ChannelID: cfg.DiscordChannelID,
		},
	}
}

func exampleConfigBytes() []byte {
	fc := buildBaseFileConfig(defaultConfig())
	data, err := toml.Marshal(fc)
	if err != nil {
		logger.Warn("encode config example failed", "error", err)
		return nil
	}
	return withPrependedTOMLComments(data, exampleHeader("base config"), baseConfigDocComments())
}

// updateSecretsFile rewrites the secrets file after applying mutate to its
// current contents. Missing files start empty.
func updateSecretsFile(path string, mutate func(*secretsConfig)) error {
	current := secretsConfig{}
	if sc, ok, err := loadSecretsFile(path); err != nil {
		return err
	} else if ok {
		current = *sc
	}
	mutate(&current)
	data, err := toml.Marshal(current)
	if err != nil {
		return fmt.Errorf("encode secrets: %w", err)
	}
	data = withPrependedTOMLComments(data, []byte("# grcPanel secrets.toml (keep out of version control)\n\n"))
	if err := atomicWriteFile(path, data); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, "config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmpPath, path, err)
	}
	tmpPath = ""
	return nil
}
