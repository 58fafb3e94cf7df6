// Package checkers holds health.Checker implementations for the storage backends.
package checkers

import (
	"context"
	"database/sql"
	"time"
)

// DefaultTimeout bounds a single ping.
const DefaultTimeout = time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a backend healthy when it answers a ping in time.
type PingChecker struct {
	name    string
	ping    func(ctx context.Context) error
	timeout time.Duration
}

func NewPostgresChecker(pool Pinger) *PingChecker {
	return &PingChecker{name: "postgres", ping: pool.Ping, timeout: DefaultTimeout}
}

func NewSQLiteChecker(db *sql.DB) *PingChecker {
	return &PingChecker{name: "sqlite", ping: db.PingContext, timeout: DefaultTimeout}
}

// WithTimeout returns a copy of c using timeout for each ping.
func (c *PingChecker) WithTimeout(timeout time.Duration) *PingChecker {
	cp := *c
	cp.timeout = timeout
	return &cp
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.ping(ctx)
}
