package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the process configuration, resolved once at startup.
type Config struct {
	ListenAddr  string
	TLSCert     string
	TLSKey      string
	TLSClientCA string

	NodesSource  string // builtin | file | consul
	NodesFile    string
	ConsulAddr   string
	ConsulPrefix string

	CheckMode        string // live | mock
	CheckTimeout     time.Duration
	FleetConcurrency int
	RefreshInterval  time.Duration

	CacheBackend string // none | memory | redis
	CacheTTL     time.Duration
	RedisAddr    string

	MgmtScheme        string
	MgmtPort          int
	MeshFallbackPort  int // 0 disables the TCP fallback of the mesh check
	ExpectedPLMN      string
	WGInterface       string
	WGHandshakeMaxAge time.Duration
	SSHUser           string
	SSHKeyFile        string
	SSHKnownHosts     string
	SSHPort           int

	LogLevel  string
	LogFormat string
}

// LoadDotEnv loads .env files from the working directory when present.
func LoadDotEnv(logger logrus.FieldLogger) {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil && logger != nil {
			logger.WithError(err).Warnf("failed to load %s", file)
		}
	}
}

// FromEnv reads the configuration from the process environment.
func FromEnv() (Config, error) {
	var errs []string
	dur := func(key string, def time.Duration) time.Duration {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", key, v))
			return def
		}
		return d
	}
	num := func(key string, def int) int {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid number %q", key, v))
			return def
		}
		return n
	}

	nodesFile := getenv("NODES_FILE", "")
	defaultSource := "builtin"
	if nodesFile != "" {
		defaultSource = "file"
	}

	cfg := Config{
		ListenAddr:        getenv("LISTEN_ADDR", ":5000"),
		TLSCert:           getenv("TLS_CERT", ""),
		TLSKey:            getenv("TLS_KEY", ""),
		TLSClientCA:       getenv("TLS_CLIENT_CA", ""),
		NodesSource:       strings.ToLower(getenv("NODES_SOURCE", defaultSource)),
		NodesFile:         nodesFile,
		ConsulAddr:        getenv("CONSUL_ADDR", "127.0.0.1:8500"),
		ConsulPrefix:      getenv("CONSUL_PREFIX", "node-pulse/nodes/"),
		CheckMode:         strings.ToLower(getenv("CHECK_MODE", "mock")),
		CheckTimeout:      dur("CHECK_TIMEOUT", 5*time.Second),
		FleetConcurrency:  num("FLEET_CONCURRENCY", 8),
		RefreshInterval:   dur("REFRESH_INTERVAL", 0),
		CacheBackend:      strings.ToLower(getenv("CACHE_BACKEND", "memory")),
		CacheTTL:          dur("CACHE_TTL", 10*time.Second),
		RedisAddr:         getenv("REDIS_ADDR", "127.0.0.1:6379"),
		MgmtScheme:        getenv("MGMT_SCHEME", "http"),
		MgmtPort:          num("MGMT_PORT", 8080),
		MeshFallbackPort:  num("MESH_FALLBACK_PORT", 0),
		ExpectedPLMN:      getenv("EXPECTED_PLMN", ""),
		WGInterface:       getenv("WG_INTERFACE", ""),
		WGHandshakeMaxAge: dur("WG_HANDSHAKE_MAX_AGE", 3*time.Minute),
		SSHUser:           getenv("SSH_USER", ""),
		SSHKeyFile:        getenv("SSH_KEY_FILE", ""),
		SSHKnownHosts:     getenv("SSH_KNOWN_HOSTS", ""),
		SSHPort:           num("SSH_PORT", 22),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		LogFormat:         getenv("LOG_FORMAT", "json"),
	}
	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// Validate checks values that flags may have overridden.
func (c Config) Validate() error {
	switch c.NodesSource {
	case "builtin", "consul":
	case "file":
		if c.NodesFile == "" {
			return fmt.Errorf("nodes source %q requires a nodes file", c.NodesSource)
		}
	default:
		return fmt.Errorf("unsupported nodes source: %s", c.NodesSource)
	}
	switch c.CheckMode {
	case "live", "mock":
	default:
		return fmt.Errorf("unsupported check mode: %s", c.CheckMode)
	}
	switch c.CacheBackend {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.CacheBackend)
	}
	if c.CheckTimeout <= 0 {
		return fmt.Errorf("check timeout must be positive")
	}
	if c.MeshFallbackPort > 65535 {
		return fmt.Errorf("mesh fallback port out of range: %d", c.MeshFallbackPort)
	}
	if c.FleetConcurrency <= 0 {
		return fmt.Errorf("fleet concurrency must be positive")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("tls cert and key must be set together")
	}
	if c.TLSClientCA != "" && c.TLSCert == "" {
		return fmt.Errorf("tls client ca requires a server cert")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
