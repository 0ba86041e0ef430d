// Package config loads the engine's runtime configuration from
// environment variables (optionally backed by a .env file) and
// supports hot-reloading the whole Config when that file changes.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Mu guards every field of a live Config that the watcher can mutate
// after Load returns. Callers reading Config fields from another
// goroutine must hold Mu.RLock.
var Mu sync.RWMutex

// defaultDataDir is the base directory Load searches for a .env file
// when AXENGINE_DATA_DIR is unset; overridable in tests.
var defaultDataDir = "/etc/axengine"

// Config is the engine's runtime configuration (§5 ambient stack).
type Config struct {
	DataPath string

	// Traversal/search caps (§4.2-§4.4).
	MaxSearchDepth   int
	MaxPathHintDepth int
	MaxValueDepth    int
	MaxPathDepth     int
	MaxTextDepth     int

	// Permission polling (§4.7): how often the engine re-checks
	// accessibility trust; the poller logs each change in either direction.
	PermissionPollInterval time.Duration

	// Bundle resolution policy (§4.3).
	BundleAllow []string
	BundleDeny  []string

	// Observability.
	LogFormat    string
	LogLevel     string
	LogFilePath  string
	MetricsAddr  string

	// Dispatcher envelope schema validation (optional); empty disables it.
	EnvelopeSchemaPath string
}

const (
	defaultMaxSearchDepth         = 10
	defaultMaxPathHintDepth       = 3
	defaultMaxValueDepth          = 50
	defaultMaxPathDepth           = 25
	defaultMaxTextDepth           = 1
	defaultPermissionPollInterval = time.Second
)

// Load builds a Config from the environment, first loading a .env file
// from the data directory if one is present. Values in that file
// overwrite variables already set in the process environment, so a
// reload after the file changes picks up its new values.
func Load() (*Config, error) {
	dataPath := os.Getenv("AXENGINE_DATA_DIR")
	if dataPath == "" {
		dataPath = defaultDataDir
	}

	envPath := filepath.Join(dataPath, ".env")
	if _, err := os.Stat(envPath); err == nil {
		_ = godotenv.Overload(envPath)
	}

	cfg := &Config{
		DataPath:               dataPath,
		MaxSearchDepth:         envInt("AXENGINE_MAX_SEARCH_DEPTH", defaultMaxSearchDepth),
		MaxPathHintDepth:       envInt("AXENGINE_MAX_PATH_HINT_DEPTH", defaultMaxPathHintDepth),
		MaxValueDepth:          envInt("AXENGINE_MAX_VALUE_DEPTH", defaultMaxValueDepth),
		MaxPathDepth:           envInt("AXENGINE_MAX_PATH_DEPTH", defaultMaxPathDepth),
		MaxTextDepth:           envInt("AXENGINE_MAX_TEXT_DEPTH", defaultMaxTextDepth),
		PermissionPollInterval: envDuration("AXENGINE_PERMISSION_POLL_INTERVAL", defaultPermissionPollInterval),
		BundleAllow:            envList("AXENGINE_BUNDLE_ALLOW"),
		BundleDeny:             envList("AXENGINE_BUNDLE_DENY"),
		LogFormat:              envString("AXENGINE_LOG_FORMAT", "auto"),
		LogLevel:               envString("AXENGINE_LOG_LEVEL", "info"),
		LogFilePath:            os.Getenv("AXENGINE_LOG_FILE"),
		MetricsAddr:            os.Getenv("AXENGINE_METRICS_ADDR"),
		EnvelopeSchemaPath:     os.Getenv("AXENGINE_ENVELOPE_SCHEMA"),
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
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

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hashEnvFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
