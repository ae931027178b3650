package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds CLI configuration.
type Config struct {
	Mode               string // "new" or "resume"
	Task               string
	SessionID          string
	WorkDir            string
	Model              string
	ReasoningEffort    string
	ExplicitStdin      bool
	Timeout            time.Duration
	Backend            string
	SkipPermissions    bool
	MaxParallelWorkers int
}

// EnvFlagEnabled returns true when the environment variable exists and is not
// explicitly set to a falsey value ("0/false/no/off").
func EnvFlagEnabled(key string) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	val = strings.TrimSpace(strings.ToLower(val))
	switch val {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func ParseBoolFlag(val string, defaultValue bool) bool {
	val = strings.TrimSpace(strings.ToLower(val))
	switch val {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// EnvFlagDefaultTrue returns true unless the env var is explicitly set to
// false/0/no/off.
func EnvFlagDefaultTrue(key string) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return true
	}
	return ParseBoolFlag(val, true)
}

// DefaultTimeout bounds a single backend invocation (2 hours).
const DefaultTimeout = 7200000 * time.Millisecond

// ResolveTimeout reads CODEAGENT_TIMEOUT (milliseconds). Invalid or
// non-positive values fall back to DefaultTimeout.
func ResolveTimeout() time.Duration {
	raw := strings.TrimSpace(os.Getenv("CODEAGENT_TIMEOUT"))
	if raw == "" {
		return DefaultTimeout
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return DefaultTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

const (
	defaultMaxParallelWorkers = 3
	maxParallelWorkersLimit   = 100
)

// ResolveMaxParallelWorkers reads CODEAGENT_MAX_PARALLEL_WORKERS. It returns 3
// when unset or invalid and clamps to 100.
func ResolveMaxParallelWorkers() int {
	raw := strings.TrimSpace(os.Getenv("CODEAGENT_MAX_PARALLEL_WORKERS"))
	if raw == "" {
		return defaultMaxParallelWorkers
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return defaultMaxParallelWorkers
	}
	if value > maxParallelWorkersLimit {
		return maxParallelWorkersLimit
	}
	return value
}
