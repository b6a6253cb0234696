// Package config provides configuration management for textclust.
//
// Settings come from built-in defaults, overridden by the flat JSON file
// ~/.textclust/settings.json, overridden by environment variables with the
// same TEXTCLUST_* names.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultWorkerPort is the HTTP port of the clustering service.
	DefaultWorkerPort = 37877
	// DefaultWorkerHost binds the service to loopback only.
	DefaultWorkerHost = "127.0.0.1"
	// DefaultMaxTexts caps the texts accepted in one request.
	DefaultMaxTexts = 10000
	// DefaultMaxAnalyses caps the stored analyses kept by the sqlite store.
	DefaultMaxAnalyses = 1000
	// DefaultRequestTimeoutSeconds bounds one clustering request, queueing included.
	DefaultRequestTimeoutSeconds = 60
	// DefaultAlgorithm is used when a request names no algorithm or preset.
	DefaultAlgorithm = "kmeans"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Settings keys, used both in settings.json and as environment variables.
const (
	KeyWorkerHost       = "TEXTCLUST_WORKER_HOST"
	KeyWorkerPort       = "TEXTCLUST_WORKER_PORT"
	KeyDBDriver         = "TEXTCLUST_DB_DRIVER"
	KeyDBPath           = "TEXTCLUST_DB_PATH"
	KeyDBDSN            = "TEXTCLUST_DB_DSN"
	KeyMaxConns         = "TEXTCLUST_MAX_CONNS"
	KeyMaxConcurrent    = "TEXTCLUST_MAX_CONCURRENT"
	KeyMaxTexts         = "TEXTCLUST_MAX_TEXTS"
	KeyMaxAnalyses      = "TEXTCLUST_MAX_ANALYSES"
	KeyRequestTimeout   = "TEXTCLUST_REQUEST_TIMEOUT"
	KeyPresetsPath      = "TEXTCLUST_PRESETS_PATH"
	KeyDefaultAlgorithm = "TEXTCLUST_DEFAULT_ALGORITHM"
	KeyTopKeywords      = "TEXTCLUST_TOP_KEYWORDS"
	KeyMinKeywordLength = "TEXTCLUST_MIN_KEYWORD_LENGTH"
	KeySummaryStyle     = "TEXTCLUST_SUMMARY_STYLE"
	KeyLogLevel         = "TEXTCLUST_LOG_LEVEL"
	KeyAlgorithms       = "TEXTCLUST_ALGORITHMS"
)

// Config holds textclust configuration.
type Config struct {
	WorkerHost            string   `json:"worker_host"`
	DBDriver              string   `json:"db_driver"`
	DBPath                string   `json:"db_path"`
	DBDSN                 string   `json:"db_dsn"`
	PresetsPath           string   `json:"presets_path"`
	DefaultAlgorithm      string   `json:"default_algorithm"`
	SummaryStyle          string   `json:"summary_style"`
	LogLevel              string   `json:"log_level"`
	Algorithms            []string `json:"algorithms"`
	WorkerPort            int      `json:"worker_port"`
	MaxConns              int      `json:"max_conns"`
	MaxConcurrent         int      `json:"max_concurrent"`
	MaxTexts              int      `json:"max_texts"`
	MaxAnalyses           int      `json:"max_analyses"`
	RequestTimeoutSeconds int      `json:"request_timeout_seconds"`
	TopKeywords           int      `json:"top_keywords"`
	MinKeywordLength      int      `json:"min_keyword_length"`
}

var (
	global   *Config
	globalMu sync.RWMutex
	once     sync.Once
)

// DataDir returns the data directory path.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".textclust")
}

// DBPath returns the default sqlite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "textclust.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// PresetsPath returns the default presets file path.
func PresetsPath() string {
	return filepath.Join(DataDir(), "presets.yml")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings writes a default settings file unless one exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	defaults := map[string]any{
		KeyWorkerPort:       DefaultWorkerPort,
		KeyDBDriver:         DriverSQLite,
		KeyDefaultAlgorithm: DefaultAlgorithm,
		KeyLogLevel:         "info",
	}
	data, err := json.MarshalIndent(defaults, "", "  ")
	if err != nil {
		return fmt.Errorf("encode default settings: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureAll creates the data directory and the default settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := EnsureSettings(); err != nil {
		return fmt.Errorf("create settings: %w", err)
	}
	return nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		WorkerHost:            DefaultWorkerHost,
		WorkerPort:            DefaultWorkerPort,
		DBDriver:              DriverSQLite,
		DBPath:                DBPath(),
		MaxConns:              4,
		MaxConcurrent:         runtime.GOMAXPROCS(0),
		MaxTexts:              DefaultMaxTexts,
		MaxAnalyses:           DefaultMaxAnalyses,
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		PresetsPath:           PresetsPath(),
		DefaultAlgorithm:      DefaultAlgorithm,
		TopKeywords:           5,
		MinKeywordLength:      2,
		SummaryStyle:          "first",
		LogLevel:              "info",
	}
}

// Load reads settings.json and the environment on top of the defaults. An
// unreadable or malformed settings file is logged and ignored.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	switch {
	case err == nil:
		var settings map[string]any
		if jsonErr := json.Unmarshal(data, &settings); jsonErr != nil {
			log.Warn().Err(jsonErr).Str("path", SettingsPath()).Msg("Ignoring malformed settings file")
		} else {
			cfg.apply(settings)
		}
	case !os.IsNotExist(err):
		log.Warn().Err(err).Str("path", SettingsPath()).Msg("Failed to read settings file")
	}

	cfg.apply(environment())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get returns the process-wide configuration, loading it on first use.
func Get() *Config {
	once.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load config, using defaults")
			cfg = Default()
		}
		globalMu.Lock()
		global = cfg
		globalMu.Unlock()
	})
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// Reload re-reads the configuration and replaces the one returned by Get.
// The previous configuration stays in place when loading fails.
func Reload() (*Config, error) {
	once.Do(func() {})
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	globalMu.Lock()
	global = cfg
	globalMu.Unlock()
	return cfg, nil
}

// GetWorkerPort returns the worker port, preferring a valid TEXTCLUST_WORKER_PORT.
func GetWorkerPort() int {
	if v := os.Getenv(KeyWorkerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			return port
		}
	}
	return Get().WorkerPort
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.WorkerHost, c.WorkerPort)
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverNone:
	case DriverPostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("%s is required with the postgres driver", KeyDBDSN)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.DBDriver)
	}
	if c.WorkerPort <= 0 || c.WorkerPort > 65535 {
		return fmt.Errorf("invalid worker port %d", c.WorkerPort)
	}
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = 1
	}
	if c.MaxTexts < 1 {
		return fmt.Errorf("%s must be positive", KeyMaxTexts)
	}
	return nil
}

// apply overlays recognised keys from settings. Values may be JSON numbers,
// booleans or strings; environment values are always strings.
func (c *Config) apply(settings map[string]any) {
	setString(settings, KeyWorkerHost, &c.WorkerHost)
	setInt(settings, KeyWorkerPort, &c.WorkerPort)
	setString(settings, KeyDBDriver, &c.DBDriver)
	setString(settings, KeyDBPath, &c.DBPath)
	setString(settings, KeyDBDSN, &c.DBDSN)
	setInt(settings, KeyMaxConns, &c.MaxConns)
	setInt(settings, KeyMaxConcurrent, &c.MaxConcurrent)
	setInt(settings, KeyMaxTexts, &c.MaxTexts)
	setInt(settings, KeyMaxAnalyses, &c.MaxAnalyses)
	setInt(settings, KeyRequestTimeout, &c.RequestTimeoutSeconds)
	setString(settings, KeyPresetsPath, &c.PresetsPath)
	setString(settings, KeyDefaultAlgorithm, &c.DefaultAlgorithm)
	setInt(settings, KeyTopKeywords, &c.TopKeywords)
	setInt(settings, KeyMinKeywordLength, &c.MinKeywordLength)
	setString(settings, KeySummaryStyle, &c.SummaryStyle)
	setString(settings, KeyLogLevel, &c.LogLevel)
	if v, ok := settings[KeyAlgorithms].(string); ok {
		c.Algorithms = splitTrim(v)
	}
}

var allKeys = []string{
	KeyWorkerHost, KeyWorkerPort, KeyDBDriver, KeyDBPath, KeyDBDSN, KeyMaxConns,
	KeyMaxConcurrent, KeyMaxTexts, KeyMaxAnalyses, KeyRequestTimeout, KeyPresetsPath,
	KeyDefaultAlgorithm, KeyTopKeywords, KeyMinKeywordLength, KeySummaryStyle,
	KeyLogLevel, KeyAlgorithms,
}

func environment() map[string]any {
	env := make(map[string]any)
	for _, key := range allKeys {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			env[key] = v
		}
	}
	return env
}

func setString(settings map[string]any, key string, dst *string) {
	if v, ok := settings[key].(string); ok && v != "" {
		*dst = v
	}
}

func setInt(settings map[string]any, key string, dst *int) {
	switch v := settings[key].(type) {
	case float64:
		*dst = int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			log.Warn().Str("key", key).Str("value", v).Msg("Ignoring non-numeric setting")
			return
		}
		*dst = n
	}
}

// splitTrim splits a comma-separated list, dropping empty items.
func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
