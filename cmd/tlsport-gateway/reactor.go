package main

import (
	"context"
	"time"

	"github.com/shadowmesh/shadowmesh/pkg/logging"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/metrics"
)

// loopReactor services one Port with a dedicated goroutine: it wakes on
// NudgeChannel (work just got produced) or on a coarse poll interval
// (socket readiness a real epoll-backed reactor would deliver natively).
type loopReactor struct {
	wake chan struct{}
}

func newLoopReactor() *loopReactor {
	return &loopReactor{wake: make(chan struct{}, 1)}
}

// NudgeChannel implements tlsport.Reactor. It never blocks: a pending nudge
// already covers the next Run pass.
func (r *loopReactor) NudgeChannel(_ *tlsport.Port) {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// DisableWriteInterest implements tlsport.Reactor. loopReactor has no
// select()-based write-readiness registration to clear: it re-services
// every port unconditionally on each ticker tick, so there is nothing to
// disable.
func (r *loopReactor) DisableWriteInterest(_ *tlsport.Port) {}

// run services port until ctx is canceled or Run reports a connection-fatal
// error, then unregisters it.
func (r *loopReactor) run(ctx context.Context, connID string, port *tlsport.Port, logger *logging.Logger, onError func(connID string, err error)) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			port.Unregister()
			return
		case <-r.wake:
		case <-ticker.C:
		}

		if err := port.Run(); err != nil {
			logger.Info("connection closing", logging.Fields{"connection_id": connID, "error": err.Error()})
			if onError != nil {
				onError(connID, err)
			}
			port.Unregister()
			return
		}
	}
}

// reportLoop polls a port's queued-bytes and backpressure gauges and
// publishes them to reporter until ctx is canceled.
func reportLoop(ctx context.Context, connID string, port *tlsport.Port, reporter *metrics.Reporter, logger *logging.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := reporter.ReportQueuedBytes(connID, port.QueuedBytes()); err != nil {
				logger.Warn("report queued bytes failed", logging.Fields{"connection_id": connID, "error": err.Error()})
			}
			if err := reporter.ReportBackpressure(connID, port.Backpressure()); err != nil {
				logger.Warn("report backpressure failed", logging.Fields{"connection_id": connID, "error": err.Error()})
			}
		}
	}
}
