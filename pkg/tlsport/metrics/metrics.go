// Package metrics publishes TLS port telemetry (queued-bytes, backpressure
// state) to Redis, reusing pkg/persistence's RedisCache connection rather
// than opening a second one, so an operator dashboard can poll per-port
// gauges without instrumenting the process directly.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Reporter publishes one connection's backpressure and queued-bytes gauges
// to Redis under keys scoped by connection ID.
type Reporter struct {
	client *redis.Client
	ctx    context.Context
	ttl    time.Duration
}

// NewReporter wraps an existing Redis client. ttl bounds how long a gauge
// survives after the reporting connection stops updating it, so a crashed
// port doesn't leave a stale reading forever.
func NewReporter(client *redis.Client, ttl time.Duration) *Reporter {
	if ttl == 0 {
		ttl = time.Minute
	}
	return &Reporter{client: client, ctx: context.Background(), ttl: ttl}
}

// ReportQueuedBytes publishes the current outbound queued-bytes count for
// connectionID.
func (r *Reporter) ReportQueuedBytes(connectionID string, queuedBytes int64) error {
	key := fmt.Sprintf("tlsport:queued_bytes:%s", connectionID)
	return r.client.Set(r.ctx, key, queuedBytes, r.ttl).Err()
}

// ReportBackpressure publishes whether connectionID is currently
// experiencing write backpressure.
func (r *Reporter) ReportBackpressure(connectionID string, active bool) error {
	key := fmt.Sprintf("tlsport:backpressure:%s", connectionID)
	return r.client.Set(r.ctx, key, active, r.ttl).Err()
}

// IncrementPipelineError increments a process-wide counter of pipeline
// errors surfaced by Port.Run, for alerting on an error rate spike.
func (r *Reporter) IncrementPipelineError() error {
	return r.client.Incr(r.ctx, "tlsport:pipeline_errors").Err()
}

// Clear removes connectionID's gauges, called once a port is unregistered
// so dashboards don't show a ghost connection until the TTL expires.
func (r *Reporter) Clear(connectionID string) error {
	return r.client.Del(r.ctx,
		fmt.Sprintf("tlsport:queued_bytes:%s", connectionID),
		fmt.Sprintf("tlsport:backpressure:%s", connectionID),
	).Err()
}
