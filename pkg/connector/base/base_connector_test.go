package base

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/core"
	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/testutil"
)

func TestHealthCheckerTransitions(t *testing.T) {
	var failing atomic.Bool
	hc := NewHealthChecker("test", time.Hour)
	hc.SetCheckFunc(func(context.Context) error {
		if failing.Load() {
			return errors.New(errors.ErrorTypeConnection, "ping failed")
		}
		return nil
	})

	ctx := context.Background()
	hc.performCheck(ctx)
	assert.True(t, hc.IsHealthy())

	failing.Store(true)
	hc.performCheck(ctx)
	assert.Equal(t, "degraded", hc.GetStatus().Status)
	hc.performCheck(ctx)
	hc.performCheck(ctx)
	status := hc.GetStatus()
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, 3, status.Details["consecutive_failures"])
	assert.Equal(t, int64(3), hc.FailureCount())

	failing.Store(false)
	hc.performCheck(ctx)
	assert.True(t, hc.IsHealthy())
	assert.NotContains(t, hc.GetStatus().Details, "last_error")
	assert.Equal(t, int64(5), hc.CheckCount())
}

func TestHealthCheckerStartStop(t *testing.T) {
	hc := NewHealthChecker("test", 5*time.Millisecond)
	var calls atomic.Int32
	hc.SetCheckFunc(func(context.Context) error {
		calls.Add(1)
		return nil
	})

	hc.Start(context.Background())
	testutil.AssertEventually(t, func() bool { return calls.Load() >= 2 }, time.Second, "periodic checks")
	hc.Stop()
	hc.Stop()

	stopped := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load())
}

func TestBaseConnectorHealth(t *testing.T) {
	bc := NewBaseConnector("sink", core.ConnectorTypeDestination, "1.0.0")
	cfg := config.NewBaseConfig("sink", "jdbc")
	cfg.Reliability.HealthInterval = time.Hour

	bc.StartHealthChecks(context.Background(), &cfg, func(context.Context) error {
		return errors.New(errors.ErrorTypeConnection, "down")
	})
	for i := 0; i < unhealthyAfter; i++ {
		bc.healthChecker.performCheck(context.Background())
	}

	err := bc.Health(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))

	m := bc.Metrics()
	assert.Equal(t, "sink", m["name"])
	assert.Equal(t, "unhealthy", m["health_status"])

	bc.CloseBase()
	bc.CloseBase()
	assert.True(t, bc.IsClosed())
	assert.Contains(t, bc.Health(context.Background()).Error(), "closed")
}

func TestBaseConnectorWithoutHealthChecks(t *testing.T) {
	bc := NewBaseConnector("src", core.ConnectorTypeSource, "1.0.0")
	cfg := config.NewBaseConfig("src", "kafka")
	cfg.Reliability.HealthCheck = false

	bc.StartHealthChecks(context.Background(), &cfg, nil)
	assert.NoError(t, bc.Health(context.Background()))
	assert.NotContains(t, bc.Metrics(), "health_status")
	bc.CloseBase()
}
