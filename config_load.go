package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml"
)

// loadConfig builds the effective configuration: defaults, then
// config.toml, then secrets.toml, then environment variables. It returns
// the secrets path that was consulted so callers can persist generated
// credentials next to it.
func loadConfig(configPath, secretsPath string) (Config, string, error) {
	cfg := defaultConfig()

	if configPath == "" {
		configPath = defaultConfigPath()
	}

	if bc, ok, err := loadBaseConfigFile(configPath); err != nil {
		return cfg, "", err
	} else if ok {
		applyBaseConfig(&cfg, *bc)
	} else {
		logger.Warn("config file missing, using defaults", "path", configPath,
			"example", filepath.Join(cfg.DataDir, "config", "examples", "config.toml.example"))
	}
	ensureExampleFiles(cfg.DataDir)

	if secretsPath == "" {
		secretsPath = defaultSecretsPath(cfg.DataDir)
	}
	ensureSecretFilePermissions(secretsPath)
	if sc, ok, err := loadSecretsFile(secretsPath); err != nil {
		return cfg, secretsPath, err
	} else if ok {
		applySecretsConfig(&cfg, *sc)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, secretsPath, err
	}

	if strings.TrimSpace(cfg.SecretKey) == "" {
		cfg.SecretKey = generateSecretKey()
		cfg.secretKeyGenerated = true
	}

	return cfg, secretsPath, nil
}

func loadTOMLFile[T any](path string) (*T, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg T
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, true, fmt.Errorf("parse %s: %w", path, err)
	}

	return &cfg, true, nil
}

func loadBaseConfigFile(path string) (*baseFileConfig, bool, error) {
	return loadTOMLFile[baseFileConfig](path)
}

func loadSecretsFile(path string) (*secretsConfig, bool, error) {
	return loadTOMLFile[secretsConfig](path)
}

func ensureSecretFilePermissions(path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("secrets file stat failed", "path", path, "error", err)
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}
	if info.Mode().Perm()&0o077 == 0 {
		return
	}
	if err := os.Chmod(path, 0o600); err != nil {
		logger.Warn("secrets file chmod failed", "path", path, "error", err)
		return
	}
	logger.Warn("secrets file permissions tightened", "path", path, "mode", "0600")
}

func applyBaseConfig(cfg *Config, fc baseFileConfig) {
	if fc.Server.Listen != "" {
		cfg.ListenAddr = strings.TrimSpace(fc.Server.Listen)
	}
	if fc.Server.DataDir != "" {
		cfg.DataDir = strings.TrimSpace(fc.Server.DataDir)
	}
	if fc.Server.SessionDays != nil {
		cfg.SessionDays = *fc.Server.SessionDays
	}
	if fc.Node.RPCURL != "" {
		cfg.RPCURL = strings.TrimSpace(fc.Node.RPCURL)
	}
	if fc.Node.RPCHost != "" {
		cfg.RPCHost = strings.TrimSpace(fc.Node.RPCHost)
	}
	if fc.Node.RPCPort != 0 {
		cfg.RPCPort = fc.Node.RPCPort
	}
	if cookiePath := strings.TrimSpace(fc.Node.RPCCookiePath); cookiePath != "" {
		cfg.RPCCookiePath = cookiePath
	}
	if fc.Node.RPCTimeoutSeconds != 0 {
		cfg.RPCTimeoutSeconds = fc.Node.RPCTimeoutSeconds
	}
	if fc.Refresh.DefaultIntervalMS != 0 {
		cfg.DefaultRefreshIntervalMS = fc.Refresh.DefaultIntervalMS
	}
	if len(fc.Refresh.IntervalsMS) > 0 {
		cfg.RefreshIntervalsMS = append([]int(nil), fc.Refresh.IntervalsMS...)
	}
	if fc.Refresh.WatchIntervalSeconds != nil {
		cfg.WatchIntervalSeconds = *fc.Refresh.WatchIntervalSeconds
	}
	if fc.Cache.TTLMS != nil {
		cfg.CacheTTLMS = *fc.Cache.TTLMS
	}
	if fc.Cache.RedisURL != "" {
		cfg.RedisURL = strings.TrimSpace(fc.Cache.RedisURL)
	}
	if fc.Logging.Level != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(fc.Logging.Level))
	}
	cfg.LogStdout = fc.Logging.Stdout
	if fc.Discord.ChannelID != "" {
		cfg.DiscordChannelID = strings.TrimSpace(fc.Discord.ChannelID)
	}
}

func applySecretsConfig(cfg *Config, sc secretsConfig) {
	if sc.RPCUser != "" {
		cfg.RPCUser = strings.TrimSpace(sc.RPCUser)
	}
	if sc.RPCPassword != "" {
		cfg.RPCPass = strings.TrimSpace(sc.RPCPassword)
	}
	if sc.AppUsername != "" {
		cfg.AppUsername = strings.TrimSpace(sc.AppUsername)
	}
	if sc.AppPassword != "" {
		cfg.AppPassword = sc.AppPassword
	}
	if sc.AppPasswordSHA256 != "" {
		cfg.AppPasswordSHA256 = strings.ToLower(strings.TrimSpace(sc.AppPasswordSHA256))
	}
	if sc.SecretKey != "" {
		cfg.SecretKey = sc.SecretKey
	}
	if sc.DiscordToken != "" {
		cfg.DiscordToken = strings.TrimSpace(sc.DiscordToken)
	}
}

func applyEnvOverrides(cfg *Config) error {
	var env envConfig
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if env.RPCHost != "" {
		cfg.RPCHost = env.RPCHost
	}
	if env.RPCPort != 0 {
		cfg.RPCPort = env.RPCPort
	}
	if env.RPCUser != "" {
		cfg.RPCUser = env.RPCUser
	}
	if env.RPCPassword != "" {
		cfg.RPCPass = env.RPCPassword
	}
	if env.AppUsername != "" {
		cfg.AppUsername = env.AppUsername
	}
	if env.AppPassword != "" {
		cfg.AppPassword = env.AppPassword
	}
	if env.SecretKey != "" {
		cfg.SecretKey = env.SecretKey
	}
	if env.Listen != "" {
		cfg.ListenAddr = env.Listen
	}
	if env.RedisURL != "" {
		cfg.RedisURL = env.RedisURL
	}
	return nil
}

func generateSecretKey() string {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(fmt.Sprintf("generate secret key: %v", err))
	}
	return hex.EncodeToString(buf[:])
}
