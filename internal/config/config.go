package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the gateway needs at construction time.
// Downstream endpoints live here, not in package-level constants, so
// routing is testable without network I/O.
type Config struct {
	Port         string
	DatabasePath string

	// PublisherURL is the market-data publisher base URL.
	PublisherURL string

	// EngineRoutes maps a symbol to the base URL of the matching-engine
	// instance responsible for it. Symbols without an entry fall back to
	// DefaultEngineURL; if that is empty too, dispatch to the engine
	// fails for that symbol only.
	EngineRoutes     map[string]string
	DefaultEngineURL string

	DispatchTimeout   time.Duration
	DispatchWorkers   int
	DispatchQueueSize int
}

// Load reads configuration from the environment, optionally seeded from
// an env file. A missing publisher URL or a malformed route entry is a
// startup error: the gateway refuses to run half-configured.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Port:              envOr("PORT", "8080"),
		DatabasePath:      envOr("DATABASE_PATH", "gateway.db"),
		PublisherURL:      os.Getenv("PUBLISHER_URL"),
		DefaultEngineURL:  os.Getenv("ENGINE_URL"),
		EngineRoutes:      make(map[string]string),
		DispatchTimeout:   5 * time.Second,
		DispatchWorkers:   4,
		DispatchQueueSize: 256,
	}

	if cfg.PublisherURL == "" {
		return nil, fmt.Errorf("undefined credential %s", "PUBLISHER_URL")
	}

	if routes := os.Getenv("ENGINE_ROUTES"); routes != "" {
		parsed, err := ParseEngineRoutes(routes)
		if err != nil {
			return nil, err
		}
		cfg.EngineRoutes = parsed
	}

	if v := os.Getenv("DISPATCH_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid DISPATCH_TIMEOUT_MS: %q", v)
		}
		cfg.DispatchTimeout = time.Duration(ms) * time.Millisecond
	}

	if v := os.Getenv("DISPATCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid DISPATCH_WORKERS: %q", v)
		}
		cfg.DispatchWorkers = n
	}

	if v := os.Getenv("DISPATCH_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid DISPATCH_QUEUE_SIZE: %q", v)
		}
		cfg.DispatchQueueSize = n
	}

	return cfg, nil
}

// ParseEngineRoutes parses a comma-separated list of SYMBOL=url pairs,
// e.g. "AAPL=http://engine-aapl:9000,MSFT=http://engine-msft:9000".
func ParseEngineRoutes(raw string) (map[string]string, error) {
	routes := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		symbol, url, ok := strings.Cut(entry, "=")
		if !ok || symbol == "" || url == "" {
			return nil, fmt.Errorf("invalid engine route entry: %q", entry)
		}
		routes[strings.ToUpper(symbol)] = url
	}
	return routes, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
