package base

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/core"
	"github.com/hasnat/kafka-connect-jdbc/pkg/logger"
)

// unhealthyAfter is the number of consecutive failed checks that turn a
// degraded connector unhealthy.
const unhealthyAfter = 3

// HealthChecker runs a check function on an interval and keeps the last
// status.
type HealthChecker struct {
	name      string
	interval  time.Duration
	checkFunc func(ctx context.Context) error
	logger    *zap.Logger

	mu               sync.RWMutex
	status           core.HealthStatus
	consecutiveFails int

	checkCount   atomic.Int64
	failureCount atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(name string, interval time.Duration) *HealthChecker {
	return &HealthChecker{
		name:     name,
		interval: interval,
		status: core.HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now(),
			Details:   make(map[string]interface{}),
		},
		logger: logger.Get().With(zap.String("component", "health_checker"), zap.String("connector", name)),
		stopCh: make(chan struct{}),
	}
}

// SetCheckFunc sets the health check function. Call it before Start.
func (hc *HealthChecker) SetCheckFunc(fn func(ctx context.Context) error) {
	hc.checkFunc = fn
}

// Start checks once immediately, then on every tick until ctx is done or
// Stop is called.
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.wg.Add(1)
	go func() {
		defer hc.wg.Done()
		ticker := time.NewTicker(hc.interval)
		defer ticker.Stop()

		hc.performCheck(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-hc.stopCh:
				return
			case <-ticker.C:
				hc.performCheck(ctx)
			}
		}
	}()
}

// Stop stops the health checker and waits for an in-flight check.
func (hc *HealthChecker) Stop() {
	hc.stopOnce.Do(func() { close(hc.stopCh) })
	hc.wg.Wait()
}

func (hc *HealthChecker) performCheck(ctx context.Context) {
	hc.checkCount.Add(1)

	timeout := hc.interval
	if timeout > 10*time.Second {
		timeout = 10 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var err error
	if hc.checkFunc != nil {
		err = hc.checkFunc(checkCtx)
	}

	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.status.Timestamp = time.Now()
	if err != nil {
		hc.failureCount.Add(1)
		hc.consecutiveFails++

		hc.status.Status = "degraded"
		if hc.consecutiveFails >= unhealthyAfter {
			hc.status.Status = "unhealthy"
		}
		hc.status.Error = err
		hc.status.Details["consecutive_failures"] = hc.consecutiveFails
		hc.status.Details["last_error"] = err.Error()

		hc.logger.Warn("health check failed",
			zap.Error(err),
			zap.String("status", hc.status.Status),
			zap.Int("consecutive_failures", hc.consecutiveFails))
		return
	}

	hc.consecutiveFails = 0
	hc.status.Status = "healthy"
	hc.status.Error = nil
	delete(hc.status.Details, "consecutive_failures")
	delete(hc.status.Details, "last_error")
	hc.logger.Debug("health check passed")
}

// GetStatus returns a copy of the current health status
func (hc *HealthChecker) GetStatus() core.HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	status := hc.status
	status.Details = make(map[string]interface{}, len(hc.status.Details)+2)
	for k, v := range hc.status.Details {
		status.Details[k] = v
	}
	status.Details["check_count"] = hc.checkCount.Load()
	status.Details["failure_count"] = hc.failureCount.Load()
	return status
}

// CheckCount returns the total number of health checks performed
func (hc *HealthChecker) CheckCount() int64 {
	return hc.checkCount.Load()
}

// FailureCount returns the total number of failed health checks
func (hc *HealthChecker) FailureCount() int64 {
	return hc.failureCount.Load()
}

// IsHealthy returns true if the last check passed
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.status.Status == "healthy"
}
