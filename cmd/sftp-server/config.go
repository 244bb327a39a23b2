package main

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// config holds the env-var-sourced settings for the whole process,
// extended with the options the subsystem needs at startup.
type config struct {
	ListenAddr  string
	HostKeyPath string

	VaultAddr        string
	VaultToken       string
	VaultUsersPrefix string
	VaultHomeRoot    string
	VaultTimeout     time.Duration
	UserCacheTTL     time.Duration

	MetricsAddr string
	MetricsPath string

	MaxConnections     int64
	MaxUploadBytes     uint64
	IdleTimeoutSeconds int
	EnableLogging      bool
}

func loadConfigFromEnv() (config, error) {
	var c config

	c.ListenAddr = getenv("LISTEN_ADDR", "0.0.0.0:2022")
	c.HostKeyPath = getenv("HOST_KEY_PATH", "/keys/ssh_host_ed25519_key")

	c.VaultAddr = getenv("VAULT_ADDR", "")
	c.VaultToken = getenv("VAULT_TOKEN", "")
	c.VaultUsersPrefix = getenv("VAULT_USERS_PREFIX", "kv/sftp/users")
	c.VaultHomeRoot = getenv("VAULT_HOME_ROOT", "/data")
	c.VaultTimeout = parseEnvDuration("VAULT_TIMEOUT", 5*time.Second)
	c.UserCacheTTL = parseEnvDuration("USER_CACHE_TTL", 30*time.Second)

	c.MetricsAddr = getenv("METRICS_ADDR", "0.0.0.0:9090")
	c.MetricsPath = getenv("METRICS_PATH", "/metrics")

	c.MaxConnections = parseEnvInt64("MAX_CONNECTIONS", 64)
	c.MaxUploadBytes = parseEnvUint64("MAX_UPLOAD_BYTES", 0)
	c.IdleTimeoutSeconds = int(parseEnvInt64("IDLE_TIMEOUT_SECONDS", 300))
	c.EnableLogging = parseEnvBool("ENABLE_LOGGING", false)

	if c.VaultAddr == "" {
		return c, fmt.Errorf("VAULT_ADDR is required")
	}
	if c.VaultToken == "" {
		return c, fmt.Errorf("VAULT_TOKEN is required (dev only; use a K8s auth method in prod)")
	}
	return c, nil
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func parseEnvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func parseEnvUint64(key string, def uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func parseEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func parseEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
