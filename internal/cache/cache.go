// Package cache provides the best-effort key/value cache placed in front of
// the note store.
//
// Two backends are available: an in-process sharded cache built on sturdyc,
// and Redis for deployments that run more than one replica. Both store
// opaque byte values with an explicit time-to-live.
package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Cache is the contract the repository layer relies on. A missing key is
// reported as (nil, false, nil); errors are reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Service is a Cache whose connection is owned by the process.
type Service interface {
	Cache
	Close() error
}

type Config struct {
	Driver string

	// Capacity and sharding of the in-process backend.
	Capacity           int
	NumShards          int
	EvictionPercentage int

	// TTL is the longest time-to-live an entry may have.
	TTL time.Duration

	RedisURI string
}

func DefaultConfig() Config {
	return Config{
		Driver:             DriverMemory,
		Capacity:           10000,
		NumShards:          256,
		EvictionPercentage: 10,
		TTL:                time.Hour,
	}
}

func (c Config) Validate() error {
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	switch c.Driver {
	case DriverMemory:
		if c.Capacity <= 0 {
			return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
		}
		if c.NumShards <= 0 {
			return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
		}
		if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
			return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
		}
	case DriverRedis:
		if c.RedisURI == "" {
			return &ConfigError{Field: "RedisURI", Message: "is required for the redis driver"}
		}
	default:
		return &ConfigError{Field: "Driver", Message: fmt.Sprintf("unknown driver %q", c.Driver)}
	}
	return nil
}

type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "cache config error in field " + e.Field + ": " + e.Message
}

// New builds the backend selected by cfg.Driver.
func New(ctx context.Context, cfg Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverRedis:
		return NewRedis(ctx, cfg.RedisURI)
	default:
		return NewMemory(cfg), nil
	}
}
