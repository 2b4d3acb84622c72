package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeTestFile(t *testing.T, path, contents string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), perm); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfigFromFiles(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config", "config.toml")
	secretsPath := filepath.Join(dir, "config", "secrets.toml")

	writeTestFile(t, configPath, `
[server]
listen = "127.0.0.1:8080"
data_dir = "`+filepath.ToSlash(dir)+`"
session_days = 7

[node]
rpc_host = "10.0.0.5"
rpc_port = 25715
rpc_timeout_seconds = 5

[refresh]
default_interval_ms = 30000
intervals_ms = [5000, 30000]
watch_interval_seconds = 0

[cache]
ttl_ms = 0

[logging]
level = "DEBUG"
stdout = true

[discord]
channel_id = "1234"
`, 0o644)
	writeTestFile(t, secretsPath, `
rpc_user = "gridcoinrpc"
rpc_password = "hunter2"
app_username = "operator"
app_password = "pw"
secret_key = "configured-key"
discord_token = "tok"
`, 0o600)

	cfg, usedSecrets, err := loadConfig(configPath, secretsPath)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if usedSecrets != secretsPath {
		t.Fatalf("secrets path = %q", usedSecrets)
	}

	if cfg.ListenAddr != "127.0.0.1:8080" || cfg.SessionDays != 7 {
		t.Fatalf("server section not applied: %+v", cfg)
	}
	if got := cfg.rpcEndpoint(); got != "http://10.0.0.5:25715" {
		t.Fatalf("rpcEndpoint = %q", got)
	}
	if cfg.rpcTimeout() != 5*time.Second {
		t.Fatalf("rpcTimeout = %v", cfg.rpcTimeout())
	}
	if cfg.DefaultRefreshIntervalMS != 30000 || !reflect.DeepEqual(cfg.RefreshIntervalsMS, []int{5000, 30000}) {
		t.Fatalf("refresh = %d %v", cfg.DefaultRefreshIntervalMS, cfg.RefreshIntervalsMS)
	}
	if cfg.watchInterval() != 0 {
		t.Fatal("watch_interval_seconds = 0 should disable the watcher")
	}
	if cfg.cacheTTL() != 0 {
		t.Fatal("ttl_ms = 0 should disable the cache")
	}
	if cfg.LogLevel != "debug" || !cfg.LogStdout {
		t.Fatalf("logging = %q %v", cfg.LogLevel, cfg.LogStdout)
	}
	if cfg.RPCUser != "gridcoinrpc" || cfg.RPCPass != "hunter2" {
		t.Fatal("rpc credentials not loaded from secrets")
	}
	if cfg.AppUsername != "operator" || cfg.AppPassword != "pw" {
		t.Fatal("login credentials not loaded from secrets")
	}
	if cfg.SecretKey != "configured-key" || cfg.secretKeyGenerated {
		t.Fatal("configured secret key should be used as is")
	}
	if cfg.DiscordToken != "tok" || cfg.DiscordChannelID != "1234" {
		t.Fatal("discord settings not loaded")
	}
	if err := validateConfig(cfg); err != nil {
		t.Fatalf("validateConfig: %v", err)
	}

	example := filepath.Join(dir, "config", "examples", "config.toml.example")
	if _, err := os.Stat(example); err != nil {
		t.Fatalf("example config not written: %v", err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	secretsPath := filepath.Join(dir, "secrets.toml")

	// Keep the example files out of the working directory.
	writeTestFile(t, configPath, "[server]\ndata_dir = \""+filepath.ToSlash(dir)+"\"\n", 0o644)

	cfg, _, err := loadConfig(configPath, secretsPath)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ListenAddr != defaultListenAddr || cfg.AppUsername != defaultAppUsername {
		t.Fatalf("defaults not kept: %+v", cfg)
	}
	if got := cfg.rpcEndpoint(); got != "http://127.0.0.1:15715" {
		t.Fatalf("rpcEndpoint = %q", got)
	}
	if cfg.DefaultRefreshIntervalMS != defaultRefreshIntervalMS || cfg.CacheTTLMS != defaultCacheTTLMS {
		t.Fatalf("refresh/cache defaults = %d %d", cfg.DefaultRefreshIntervalMS, cfg.CacheTTLMS)
	}
	if cfg.rememberTTL() != defaultSessionDays*24*time.Hour {
		t.Fatalf("rememberTTL = %v", cfg.rememberTTL())
	}
	if !cfg.secretKeyGenerated || len(cfg.SecretKey) != 64 {
		t.Fatalf("expected a generated secret key, got %q", cfg.SecretKey)
	}
}

func TestLoadConfigRejectsBrokenTOML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	writeTestFile(t, configPath, "[server\nlisten = ", 0o644)
	if _, _, err := loadConfig(configPath, filepath.Join(dir, "secrets.toml")); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	secretsPath := filepath.Join(dir, "secrets.toml")
	writeTestFile(t, configPath, "[server]\ndata_dir = \""+filepath.ToSlash(dir)+"\"\n[node]\nrpc_host = \"file-host\"\n", 0o644)
	writeTestFile(t, secretsPath, "rpc_user = \"file-user\"\n", 0o600)

	t.Setenv("GRIDCOIN_RPC_HOST", "env-host")
	t.Setenv("GRIDCOIN_RPC_PORT", "9332")
	t.Setenv("GRIDCOIN_RPC_USER", "env-user")
	t.Setenv("GRIDCOIN_RPC_PASSWORD", "env-pass")
	t.Setenv("APP_USERNAME", "env-admin")
	t.Setenv("APP_PASSWORD", "env-pw")
	t.Setenv("SECRET_KEY", "env-secret")
	t.Setenv("GRCPANEL_LISTEN", ":9000")
	t.Setenv("GRCPANEL_REDIS_URL", "redis://localhost:6379/0")

	cfg, _, err := loadConfig(configPath, secretsPath)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.rpcEndpoint() != "http://env-host:9332" {
		t.Fatalf("rpcEndpoint = %q", cfg.rpcEndpoint())
	}
	if cfg.RPCUser != "env-user" || cfg.RPCPass != "env-pass" {
		t.Fatal("environment should win over secrets.toml")
	}
	if cfg.AppUsername != "env-admin" || cfg.AppPassword != "env-pw" || cfg.SecretKey != "env-secret" {
		t.Fatal("login settings not taken from the environment")
	}
	if cfg.secretKeyGenerated {
		t.Fatal("SECRET_KEY set, nothing should be generated")
	}
	if cfg.ListenAddr != ":9000" || cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("listen/redis = %q %q", cfg.ListenAddr, cfg.RedisURL)
	}

	t.Setenv("GRIDCOIN_RPC_PORT", "not-a-port")
	if _, _, err := loadConfig(configPath, secretsPath); err == nil {
		t.Fatal("expected an error for a malformed port")
	}
}

func TestRPCURLWinsOverHostPort(t *testing.T) {
	cfg := defaultConfig()
	cfg.RPCURL = "https://wallet.lan:443/"
	cfg.RPCPort = 0
	if cfg.rpcEndpoint() != "https://wallet.lan:443/" {
		t.Fatalf("rpcEndpoint = %q", cfg.rpcEndpoint())
	}
	if err := validateConfig(cfg); err != nil {
		t.Fatalf("rpc_url should make rpc_port irrelevant: %v", err)
	}
}

func TestEnsureSecretFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.toml")
	writeTestFile(t, path, "secret_key = \"x\"\n", 0o644)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatal(err)
	}
	ensureSecretFilePermissions(path)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}

	// Missing files are ignored.
	ensureSecretFilePermissions(filepath.Join(t.TempDir(), "absent.toml"))
}

func TestApplyRuntimeOverrides(t *testing.T) {
	cfg := defaultConfig()
	err := applyRuntimeOverrides(&cfg, runtimeOverrides{
		listen:        " :7000 ",
		dataDir:       "/var/lib/grcpanel",
		rpcURL:        "http://node:15715",
		rpcCookiePath: "/home/grc/.GridcoinResearch/.cookie",
		logLevel:      "WARN",
		stdout:        true,
	})
	if err != nil {
		t.Fatalf("applyRuntimeOverrides: %v", err)
	}
	if cfg.ListenAddr != ":7000" || cfg.DataDir != "/var/lib/grcpanel" {
		t.Fatalf("listen/data dir = %q %q", cfg.ListenAddr, cfg.DataDir)
	}
	if cfg.RPCURL != "http://node:15715" || cfg.RPCCookiePath == "" {
		t.Fatal("rpc overrides not applied")
	}
	if cfg.LogLevel != "warn" || !cfg.LogStdout {
		t.Fatalf("logging = %q %v", cfg.LogLevel, cfg.LogStdout)
	}

	before := cfg
	if err := applyRuntimeOverrides(&cfg, runtimeOverrides{logLevel: "chatty"}); err == nil {
		t.Fatal("expected an error for an unknown log level")
	}
	if cfg.LogLevel != before.LogLevel {
		t.Fatal("a rejected level must not be applied")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(*Config) {}, ""},
		{"no listen", func(c *Config) { c.ListenAddr = " " }, "server.listen is required"},
		{"no scheme", func(c *Config) { c.RPCURL = "wallet:15715" }, "must use http or https"},
		{"missing scheme", func(c *Config) { c.RPCURL = "//wallet:15715" }, "missing protocol scheme"},
		{"ftp scheme", func(c *Config) { c.RPCURL = "ftp://wallet" }, "must use http or https"},
		{"port range", func(c *Config) { c.RPCPort = 70000 }, "rpc_port must be between 1 and 65535"},
		{"negative timeout", func(c *Config) { c.RPCTimeoutSeconds = -1 }, "rpc_timeout_seconds"},
		{"no username", func(c *Config) { c.AppUsername = "" }, "app_username is required"},
		{"bad digest", func(c *Config) { c.AppPasswordSHA256 = "abc" }, "64 hex characters"},
		{"short refresh", func(c *Config) { c.DefaultRefreshIntervalMS = 500 }, "refresh.default_interval_ms"},
		{"short choice", func(c *Config) { c.RefreshIntervalsMS = []int{5000, 10} }, "refresh.intervals_ms"},
		{"negative watch", func(c *Config) { c.WatchIntervalSeconds = -5 }, "watch_interval_seconds"},
		{"negative ttl", func(c *Config) { c.CacheTTLMS = -1 }, "cache.ttl_ms"},
		{"redis scheme", func(c *Config) { c.RedisURL = "http://cache:6379" }, "cache.redis_url"},
		{"discord channel", func(c *Config) { c.DiscordToken = "tok" }, "discord.channel_id is required"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := validateConfig(cfg)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestCredentialsMatch(t *testing.T) {
	plain := defaultConfig()
	plain.AppPassword = "correct horse"

	hashed := defaultConfig()
	hashed.AppPassword = "ignored"
	hashed.AppPasswordSHA256 = strings.ToUpper(appPasswordHash("battery staple"))

	unset := defaultConfig()

	tests := []struct {
		name     string
		cfg      Config
		user     string
		password string
		want     bool
	}{
		{"plain ok", plain, "admin", "correct horse", true},
		{"plain username trimmed", plain, " admin ", "correct horse", true},
		{"plain wrong password", plain, "admin", "correct", false},
		{"plain wrong user", plain, "root", "correct horse", false},
		{"digest ok", hashed, "admin", "battery staple", true},
		{"digest ignores plain", hashed, "admin", "ignored", false},
		{"nothing configured", unset, "admin", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := credentialsMatch(tt.cfg, tt.user, tt.password); got != tt.want {
				t.Fatalf("credentialsMatch = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnsureAppPasswordStoresDigest(t *testing.T) {
	secretsPath := filepath.Join(t.TempDir(), "config", "secrets.toml")
	cfg := defaultConfig()
	if err := ensureAppPassword(&cfg, secretsPath); err != nil {
		t.Fatalf("ensureAppPassword: %v", err)
	}
	if !isHexDigest(cfg.AppPasswordSHA256) || cfg.AppPassword != "" {
		t.Fatalf("cfg = %q / %q", cfg.AppPassword, cfg.AppPasswordSHA256)
	}
	sc, ok, err := loadSecretsFile(secretsPath)
	if err != nil || !ok {
		t.Fatalf("secrets file: ok=%v err=%v", ok, err)
	}
	if sc.AppPasswordSHA256 != cfg.AppPasswordSHA256 || sc.AppUsername != defaultAppUsername {
		t.Fatalf("stored secrets = %+v", sc)
	}

	// An existing password is left alone.
	again := cfg
	if err := ensureAppPassword(&again, secretsPath); err != nil || again.AppPasswordSHA256 != cfg.AppPasswordSHA256 {
		t.Fatal("ensureAppPassword replaced an existing password")
	}
}

func TestGenerateAppPassword(t *testing.T) {
	pw := generateAppPassword()
	if parts := strings.Split(pw, "-"); len(parts) != 3 {
		t.Fatalf("password %q should have three words", pw)
	}
}

func TestLoadPanelConfigAppliesOverridesAndValidates(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config", "config.toml")
	writeTestFile(t, configPath, "[server]\ndata_dir = \""+filepath.ToSlash(dir)+"\"\n", 0o644)
	writeTestFile(t, filepath.Join(dir, "config", "secrets.toml"), "app_password = \"pw\"\n", 0o600)

	cfg, secretsPath, err := loadPanelConfig(configPath, "", runtimeOverrides{dataDir: dir, listen: ":5050"})
	if err != nil {
		t.Fatalf("loadPanelConfig: %v", err)
	}
	if secretsPath != filepath.Join(dir, "config", "secrets.toml") {
		t.Fatalf("secrets path = %q", secretsPath)
	}
	if cfg.ListenAddr != ":5050" || cfg.AppPassword != "pw" {
		t.Fatalf("cfg = %+v", cfg)
	}

	if _, _, err := loadPanelConfig(configPath, "", runtimeOverrides{dataDir: dir, rpcURL: "ftp://wallet"}); err == nil {
		t.Fatal("invalid rpc url should fail validation")
	}
}
