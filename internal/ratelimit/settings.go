package ratelimit

import "strings"

// DefaultRedisPrefix namespaces governor keys when no prefix is configured.
const DefaultRedisPrefix = "storefront:governor"

// SettingsConfig captures the state backend settings.
type SettingsConfig struct {
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Normalize trims values and applies defaults.
func (c SettingsConfig) Normalize() SettingsConfig {
	c.RedisAddr = strings.TrimSpace(c.RedisAddr)
	c.RedisPassword = strings.TrimSpace(c.RedisPassword)
	c.RedisPrefix = strings.TrimSpace(c.RedisPrefix)
	if c.RedisPrefix == "" {
		c.RedisPrefix = DefaultRedisPrefix
	}
	if c.RedisDB < 0 {
		c.RedisDB = 0
	}
	if c.RedisAddr == "" {
		c.RedisEnabled = false
	}
	return c
}

// StaticSettings returns a provider that always yields the normalized cfg.
func StaticSettings(cfg SettingsConfig) SettingsProvider {
	normalized := cfg.Normalize()
	return func() SettingsConfig { return normalized }
}
