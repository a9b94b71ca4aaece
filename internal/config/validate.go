package config

import (
	"fmt"
	"time"
)

// Validate checks business rules after loading. Load calls it automatically.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}
	if len(c.Guest.TokenSecret) < 32 {
		return fmt.Errorf("guest.token_secret must be at least 32 characters (got %d)", len(c.Guest.TokenSecret))
	}
	if c.Guest.TokenSecret == c.Auth.JWTSecret {
		return fmt.Errorf("guest.token_secret must differ from auth.jwt_secret")
	}
	if c.Guest.CookieTTL <= 0 {
		return fmt.Errorf("guest.cookie_ttl must be > 0 (got %s)", c.Guest.CookieTTL)
	}
	if c.Cart.MaxQuantity <= 0 {
		return fmt.Errorf("cart.max_quantity must be > 0 (got %d)", c.Cart.MaxQuantity)
	}
	if c.Cart.MergeLockWindow < time.Second {
		return fmt.Errorf("cart.merge_lock_window must be >= 1s (got %s)", c.Cart.MergeLockWindow)
	}
	if c.Cart.RateLimit <= 0 {
		return fmt.Errorf("cart.rate_limit must be > 0 (got %d)", c.Cart.RateLimit)
	}
	if c.Kafka.Enabled && len(c.Kafka.BrokerList()) == 0 {
		return fmt.Errorf("kafka.brokers must be set when kafka is enabled")
	}
	return nil
}
