package config

// Redis backs three concerns: the ride listing response cache, the booking
// rate limiter and the publish/subscribe bus between the API, the worker
// and the relay.

import (
	"context"
	"crypto/tls"
	"net"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions builds client options from the environment.
//   REDIS_ADDR          host:port, default localhost:6379
//   REDIS_HOST/PORT     override REDIS_ADDR when both are set
//   REDIS_PASSWORD      optional
//   REDIS_DB            database number, default 0
//   REDIS_TLS           enable TLS 1.2+
//   REDIS_DIAL_TIMEOUT  default 2s
//   REDIS_POOL_SIZE     default 10 per CPU (the client's own default)
func RedisOptions() *redis.Options {
	addr := getenv("REDIS_ADDR", "localhost:6379")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = net.JoinHostPort(host, port)
	}
	opts := &redis.Options{
		Addr:        addr,
		Password:    os.Getenv("REDIS_PASSWORD"),
		DB:          envInt("REDIS_DB", 0),
		DialTimeout: envDur("REDIS_DIAL_TIMEOUT", 2*time.Second),
		PoolSize:    envInt("REDIS_POOL_SIZE", 0),
	}
	if envBool("REDIS_TLS", false) {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewRedisClient returns a client for RedisOptions, or nil when the server
// does not answer a ping within two seconds.  Callers treat nil as "no
// Redis": the API drops caching and rate limiting, and skips the bus and
// feed effects.
func NewRedisClient() *redis.Client {
	client := redis.NewClient(RedisOptions())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
