package postgres

import "time"

// Config holds PostgreSQL connection settings.
type Config struct {
	// DSN is the PostgreSQL connection string (required).
	DSN string

	// MaxConns is the connection pool upper bound.
	MaxConns int32

	// MinConns is the number of idle connections kept warm.
	MinConns int32

	// MaxConnLifetime bounds how long a single connection is reused.
	MaxConnLifetime time.Duration

	// MigrateOnStart applies embedded schema migrations during New.
	MigrateOnStart bool
}

// defaults fills in zero-valued fields.
func (c *Config) defaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MinConns == 0 {
		c.MinConns = 2
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
}
