// Package conformance wraps go-redis/v9 as a wire-conformance test client:
// integration tests dial this server's RESP2 listener through a real
// Redis client library instead of hand-rolled RESP framing, the same way
// the teacher wrapped go-redis for its own Redis dependency
// (redis/client.go).
package conformance

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps *redis.Client with the connection diagnostics the teacher's
// wrapper logs on construction.
type Client struct {
	*redis.Client
	log *zap.Logger
}

// NewClient dials addr (this server's listen address) as database db.
func NewClient(addr string, db int, log *zap.Logger) *Client {
	opts := &redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
		MaxRetries:   3,
	}

	c := &Client{Client: redis.NewClient(opts), log: log.Named("conformance")}
	c.Ping(context.Background())
	return c
}

func (c *Client) Close() error { return c.Client.Close() }

// Ping checks connectivity and logs the round-trip, matching the
// diagnostic the teacher's wrapper performs on every (re)connect.
func (c *Client) Ping(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.Client.Ping(ctx).Err()
	elapsed := time.Since(start)

	opts := c.Options()
	log := c.log.With(zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	if err != nil {
		log.Warn("connection failed", zap.Error(err), zap.Duration("ping_rtt", elapsed))
		return
	}
	log.Debug("connection established", zap.Duration("ping_rtt", elapsed))
}
