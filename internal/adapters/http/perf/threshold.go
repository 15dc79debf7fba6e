package perf

import (
	"log/slog"
	"os"
	"strconv"
	"sync"
)

// EnvThreshold returns a func reporting the slow-event threshold in
// milliseconds, read once from the environment variable key. Unset or
// invalid values fall back to def.
func EnvThreshold(key string, def int) func() float64 {
	return sync.OnceValue(func() float64 {
		v := os.Getenv(key)
		if v == "" {
			return float64(def)
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			slog.Warn("config_event", "event", "bad_threshold", "key", key, "value", v, "default_ms", def)
			return float64(def)
		}
		return float64(n)
	})
}
