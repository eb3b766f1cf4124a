// Package config loads the service's startup configuration from
// environment variables, following the root binary's plain os.Getenv
// convention rather than a flag-parsing library.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every startup-time binding listed in the external
// interfaces section: listener, TLS, resource limits, and chunk cache
// settings.
type Config struct {
	// Listener.
	ListenHost string
	ListenPort string
	TLSEnabled bool
	TLSCert    string
	TLSKey     string

	ShutdownTimeout time.Duration

	// Resource governor.
	MemLimitBytes uint64
	S3Connections uint64
	CPUThreads    uint64
	CPUPoolMode   bool

	// Object store.
	S3Region      string
	S3PathStyle   bool
	S3ClientCache int
	HTTPTimeout   time.Duration

	// Chunk cache.
	CacheEnabled       bool
	CacheDir           string
	CacheTTL           time.Duration
	CachePruneInterval time.Duration
	CacheSizeLimit     uint64
	CacheQueueSize     int
	CacheKeyFormat     string
	// CacheAuthMode selects one of "none", "per_identity", or
	// "shared_with_check" (see pkg/cache.AuthMode); main.go maps this raw
	// string onto the cache package's enum when building the cache.
	CacheAuthMode string

	// Tracing.
	TracingEnabled  bool
	TracingEndpoint string

	LogLevel string
}

// Load reads Config from the process environment, applying the documented
// defaults for anything unset.
func Load() (*Config, error) {
	cpuThreads, err := parsePositiveUint("CPU_THREAD_LIMIT", "4")
	if err != nil {
		return nil, err
	}
	s3Connections, err := parsePositiveUint("S3_CONNECTION_LIMIT", "64")
	if err != nil {
		return nil, err
	}
	memLimit, err := parseByteSize(getEnv("MEM_LIMIT", "2GiB"))
	if err != nil {
		return nil, fmt.Errorf("parse MEM_LIMIT: %w", err)
	}
	cacheSizeLimit, err := parseByteSize(getEnv("CACHE_SIZE_LIMIT", "10GiB"))
	if err != nil {
		return nil, fmt.Errorf("parse CACHE_SIZE_LIMIT: %w", err)
	}
	shutdownTimeout, err := parseSeconds("SHUTDOWN_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseSeconds("CACHE_TTL_SECONDS", 3600)
	if err != nil {
		return nil, err
	}
	cachePrune, err := parseSeconds("CACHE_PRUNE_INTERVAL_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	cacheQueueSize, err := parsePositiveUint("CACHE_QUEUE_SIZE", "1024")
	if err != nil {
		return nil, err
	}
	s3ClientCache, err := parsePositiveUint("S3_CLIENT_CACHE_SIZE", "256")
	if err != nil {
		return nil, err
	}
	httpTimeout, err := parseSeconds("HTTP_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}

	return &Config{
		ListenHost: getEnv("LISTEN_HOST", "0.0.0.0"),
		ListenPort: getEnv("LISTEN_PORT", "8080"),
		TLSEnabled: getBool("TLS_ENABLED", false),
		TLSCert:    os.Getenv("TLS_CERT_PATH"),
		TLSKey:     os.Getenv("TLS_KEY_PATH"),

		ShutdownTimeout: shutdownTimeout,

		MemLimitBytes: memLimit,
		S3Connections: s3Connections,
		CPUThreads:    cpuThreads,
		CPUPoolMode:   getBool("CPU_POOL_MODE", false),

		S3Region:      getEnv("S3_REGION", "us-east-1"),
		S3PathStyle:   getBool("S3_PATH_STYLE", true),
		S3ClientCache: int(s3ClientCache),
		HTTPTimeout:   httpTimeout,

		CacheEnabled:       getBool("CACHE_ENABLED", true),
		CacheDir:           getEnv("CACHE_DIR", "/var/cache/reductionist"),
		CacheTTL:           cacheTTL,
		CachePruneInterval: cachePrune,
		CacheSizeLimit:     cacheSizeLimit,
		CacheQueueSize:     int(cacheQueueSize),
		CacheKeyFormat:     getEnv("CACHE_KEY_FORMAT", "%source/%bucket/%object#%offset,%size,%dtype,%byte_order,%compression"),
		CacheAuthMode:      getEnv("CACHE_AUTH_MODE", "per_identity"),

		TracingEnabled:  getBool("TRACING_ENABLED", false),
		TracingEndpoint: os.Getenv("TRACING_ENDPOINT"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}, nil
}

func getEnv(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}

func getBool(name string, fallback bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func parsePositiveUint(name, fallback string) (uint64, error) {
	v := getEnv(name, fallback)
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return n, nil
}

func parseSeconds(name string, fallback int) (time.Duration, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return time.Duration(fallback) * time.Second, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return time.Duration(n) * time.Second, nil
}

// byteSizeUnits maps recognized suffixes to their multiplier, matching the
// named-preset/unit-suffix convention used by the corpus's S3 benchmarking
// tool for human-friendly byte sizes.
var byteSizeUnits = map[string]uint64{
	"B":    1,
	"KiB":  1 << 10,
	"MiB":  1 << 20,
	"GiB":  1 << 30,
	"TiB":  1 << 40,
	"KB":   1000,
	"MB":   1000 * 1000,
	"GB":   1000 * 1000 * 1000,
	"TB":   1000 * 1000 * 1000 * 1000,
}

// parseByteSize parses strings like "512MiB", "2GiB", or a bare integer
// byte count.
func parseByteSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	for _, suffixLen := range []int{3, 2, 1} {
		if len(s) <= suffixLen {
			continue
		}
		suffix := s[len(s)-suffixLen:]
		if mul, ok := byteSizeUnits[suffix]; ok {
			numeric := strings.TrimSpace(s[:len(s)-suffixLen])
			n, err := strconv.ParseFloat(numeric, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
			}
			return uint64(n * float64(mul)), nil
		}
	}
	return 0, fmt.Errorf("invalid byte size %q", s)
}
