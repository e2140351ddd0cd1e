package config

import "time"

// RateLimitConfig configures the token bucket applied to every request.
// The defaults allow 100 requests per 15 minutes for each client address.
type RateLimitConfig struct {
	Enabled        bool          `env:"ENABLED,default=true"`
	Capacity       int           `env:"CAPACITY,default=100"`
	RefillTokens   int           `env:"REFILL_TOKENS,default=1"`
	RefillInterval time.Duration `env:"REFILL_INTERVAL,default=9s"`
	TTL            time.Duration `env:"TTL,default=15m"`
	KeyStrategy    string        `env:"KEY_STRATEGY,default=ip"`
	Prefix         string        `env:"PREFIX,default=rl"`
	Debug          bool          `env:"DEBUG,default=false"`
}

func (c RateLimitConfig) normalized() RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}
