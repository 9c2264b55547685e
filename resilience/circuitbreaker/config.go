package circuitbreaker

import "time"

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
	defaultCooldownMax      = 5 * time.Minute
)

// withDefaults fills zero-value fields with sane defaults.
func (c Config) withDefaults() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = defaultFailureThreshold
	}

	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}

	if c.CooldownMax <= 0 {
		c.CooldownMax = defaultCooldownMax
	}

	return c
}

// DefaultConfig provides balanced settings for most resources.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		CooldownMax:      5 * time.Minute,
	}
}

// DatabaseConfig is tuned for relational connections. More tolerant of
// failures since temporary network issues should not immediately trip the
// breaker.
func DatabaseConfig() Config {
	return Config{
		FailureThreshold: 10,
		Cooldown:         15 * time.Second,
		CooldownMax:      2 * time.Minute,
	}
}

// AnalyticsConfig is tuned for columnar/analytical stores, where queries are
// heavier and outages are expected to last longer.
func AnalyticsConfig() Config {
	return Config{
		FailureThreshold: 3,
		Cooldown:         1 * time.Minute,
		CooldownMax:      10 * time.Minute,
	}
}
