package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultAppEnv       = "local"
	defaultLogLevel     = ""
	defaultEventLogPath = "logs/event_dispatch_log.txt"
	defaultEventLogDisk = "local"
	defaultStorageRoot  = "."
	defaultTickRate     = 60
	defaultDebugAddr    = ":9090"
)

var (
	loadOnce sync.Once
	loadErr  error

	mu     sync.RWMutex
	values = defaultValues()
)

func Load() error {
	loadOnce.Do(func() {
		loadErr = loadFromFiles("config/app.json", ".env")
	})
	return loadErr
}

func defaultValues() map[string]string {
	return map[string]string{
		"APP_ENV":            defaultAppEnv,
		"LOG_LEVEL":          defaultLogLevel,
		"EVENT_DEBUG":        "",
		"EVENT_LOG_PATH":     defaultEventLogPath,
		"EVENT_LOG_DISK":     defaultEventLogDisk,
		"STORAGE_LOCAL_ROOT": defaultStorageRoot,
		"TICK_RATE":          strconv.Itoa(defaultTickRate),
		"DEBUG_ADDR":         defaultDebugAddr,
	}
}

func AppEnv() string {
	_ = Load()
	return get("APP_ENV", defaultAppEnv)
}

// IsProduction reports whether APP_ENV names a production deployment.
func IsProduction() bool {
	switch strings.ToLower(AppEnv()) {
	case "production", "prod":
		return true
	}
	return false
}

// LogLevel returns the configured slog level name, or "" to let the logger
// pick one from APP_ENV.
func LogLevel() string {
	_ = Load()
	return strings.ToLower(get("LOG_LEVEL", defaultLogLevel))
}

// ── Event dispatcher ─────────────────────────────────────────────────────────

// EventDebug reports whether dispatch tracking is enabled. When EVENT_DEBUG is
// unset, tracking is on everywhere except production.
func EventDebug() bool {
	_ = Load()
	raw := get("EVENT_DEBUG", "")
	if raw == "" {
		return !IsProduction()
	}
	on, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return on
}

func EventLogPath() string {
	_ = Load()
	return get("EVENT_LOG_PATH", defaultEventLogPath)
}

func EventLogDisk() string {
	_ = Load()
	return strings.ToLower(get("EVENT_LOG_DISK", defaultEventLogDisk))
}

// ── Host loop ────────────────────────────────────────────────────────────────

// TickRate returns the host loop frequency in frames per second.
func TickRate() float64 {
	_ = Load()
	rate, err := strconv.ParseFloat(get("TICK_RATE", ""), 64)
	if err != nil || rate <= 0 {
		return defaultTickRate
	}
	return rate
}

// FrameInterval is 1/TickRate as a duration.
func FrameInterval() time.Duration {
	return time.Duration(float64(time.Second) / TickRate())
}

func DebugAddr() string {
	_ = Load()
	return get("DEBUG_ADDR", defaultDebugAddr)
}

// ── Storage ──────────────────────────────────────────────────────────────────

func StorageLocalRoot() string {
	_ = Load()
	return get("STORAGE_LOCAL_ROOT", defaultStorageRoot)
}

func StorageS3Bucket() string   { _ = Load(); return get("S3_BUCKET", "") }
func StorageS3Region() string   { _ = Load(); return get("S3_REGION", "us-east-1") }
func StorageS3Key() string      { _ = Load(); return get("S3_KEY", "") }
func StorageS3Secret() string   { _ = Load(); return get("S3_SECRET", "") }
func StorageS3Endpoint() string { _ = Load(); return get("S3_ENDPOINT", "") }
func StorageS3Prefix() string   { _ = Load(); return get("S3_PREFIX", "") }

func loadFromFiles(configPath, envPath string) error {
	loaded := defaultValues()

	if err := mergeJSONConfig(configPath, loaded); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	}

	if err := mergeDotEnv(envPath, loaded); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	}

	mergeEnviron(loaded)

	mu.Lock()
	values = loaded
	mu.Unlock()

	return nil
}

func mergeJSONConfig(path string, out map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var raw map[string]interface{}
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	for key, val := range raw {
		var s string
		switch v := val.(type) {
		case string:
			s = v
		case bool:
			s = strconv.FormatBool(v)
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			continue
		}

		k := strings.ToUpper(strings.TrimSpace(key))
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(s)
	}

	return nil
}

func mergeDotEnv(path string, out map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}

		key := strings.ToUpper(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}
		out[key] = value
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	return nil
}

// mergeEnviron lets process environment variables override both files for
// every key the defaults know about.
func mergeEnviron(out map[string]string) {
	for key := range defaultValues() {
		if v, ok := os.LookupEnv(key); ok {
			out[key] = strings.TrimSpace(v)
		}
	}
	for _, key := range []string{"S3_BUCKET", "S3_REGION", "S3_KEY", "S3_SECRET", "S3_ENDPOINT", "S3_PREFIX"} {
		if v, ok := os.LookupEnv(key); ok {
			out[key] = strings.TrimSpace(v)
		}
	}
}

func get(key, fallback string) string {
	mu.RLock()
	defer mu.RUnlock()

	if value := strings.TrimSpace(values[key]); value != "" {
		return value
	}

	return fallback
}

// Get reads any config key by name with an optional fallback.
// Keys from .env and app.json are available after config.Load().
func Get(key, fallback string) string {
	_ = Load()
	return get(key, fallback)
}

// Set overrides a key for the rest of the process. Intended for CLI flags and
// tests.
func Set(key, value string) {
	_ = Load()
	mu.Lock()
	values[strings.ToUpper(key)] = value
	mu.Unlock()
}
