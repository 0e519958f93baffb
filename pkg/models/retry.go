package models

// RetryConfig is the per-node retry policy a node's Data may declare under
// the "retry" key. Zero value MaxAttempts disables retry.
type RetryConfig struct {
	MaxAttempts       int `json:"max_attempts"`
	InitialDelayMs    int `json:"initial_delay_ms"`
	BackoffMultiplier int `json:"backoff_multiplier"`
	MaxDelayMs        int `json:"max_delay_ms"`
}

// DefaultRetryConfig is used when a node declares no retry config of its own.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       0,
		InitialDelayMs:    1000,
		BackoffMultiplier: 2,
		MaxDelayMs:        30000,
	}
}

// ParseRetryConfig extracts a RetryConfig from a node's Data map under the
// "retry" key, falling back to DefaultRetryConfig for any field left unset.
func ParseRetryConfig(data map[string]interface{}) RetryConfig {
	cfg := DefaultRetryConfig()

	raw, ok := data["retry"]
	if !ok {
		return cfg
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return cfg
	}

	if v, ok := asInt(m["maxAttempts"]); ok {
		cfg.MaxAttempts = v
	}
	if v, ok := asInt(m["initialDelayMs"]); ok {
		cfg.InitialDelayMs = v
	}
	if v, ok := asInt(m["backoffMultiplier"]); ok {
		cfg.BackoffMultiplier = v
	}
	if v, ok := asInt(m["maxDelayMs"]); ok {
		cfg.MaxDelayMs = v
	}
	return cfg
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
