package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/verimail/internal/observability/logger"
)

// Env value handling. Values arriving from the environment (or .env files,
// or container orchestrators that quote everything) are normalized before
// any typed parsing: surrounding whitespace is trimmed and exactly one pair
// of matching quotes is stripped. Normalization is idempotent.

// Normalize trims surrounding whitespace and strips one matching pair of
// '"' or '\'' quotes. Mismatched pairs are left alone and there is no
// recursion: `'"true"'` normalizes to `"true"` only after a second call,
// which callers never do.
func Normalize(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// getenv returns the normalized value for key, or def when unset/empty.
func getenv(key, def string) string {
	v := Normalize(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// getenvLower is getenv for case-insensitive enum fields (provider selector,
// TLS mode): the value is lowercased after normalization.
func getenvLower(key, def string) string {
	return strings.ToLower(getenv(key, def))
}

// getenvBool parses a boolean env var. Only the literal forms "1" and "true"
// (any case) yield true; every other value degrades to the explicit default.
// A present-but-unrecognized value is logged once at startup.
func getenvBool(key string, def bool) bool {
	raw := Normalize(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true":
		return true
	}
	if !strings.EqualFold(raw, "0") && !strings.EqualFold(raw, "false") {
		logger.L().Warn("unrecognized boolean env value, using default",
			logger.Key(key), logger.Bool("default", def))
	}
	return def
}

// getenvUint16 parses an unsigned 16-bit env var (ports). Parse failures
// degrade to the default and are logged once.
func getenvUint16(key string, def uint16) uint16 {
	raw := Normalize(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		logger.L().Warn("invalid uint16 env value, using default",
			logger.Key(key), logger.Int("default", int(def)))
		return def
	}
	return uint16(n)
}

// getenvUint64 parses an unsigned 64-bit env var (counts, byte sizes).
func getenvUint64(key string, def uint64) uint64 {
	raw := Normalize(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		logger.L().Warn("invalid uint64 env value, using default",
			logger.Key(key), logger.Any("default", def))
		return def
	}
	return n
}

// getenvInt parses a signed integer env var (Redis database index).
func getenvInt(key string, def int) int {
	raw := Normalize(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		logger.L().Warn("invalid integer env value, using default",
			logger.Key(key), logger.Int("default", def))
		return def
	}
	return n
}

// getenvDuration parses a Go duration env var ("30s", "48h").
func getenvDuration(key string, def time.Duration) time.Duration {
	raw := Normalize(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.L().Warn("invalid duration env value, using default",
			logger.Key(key), logger.Duration(def))
		return def
	}
	return d
}

// getenvCSV splits a comma-separated env var, normalizing each element and
// dropping empties.
func getenvCSV(key string) []string {
	raw := Normalize(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if p = Normalize(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
