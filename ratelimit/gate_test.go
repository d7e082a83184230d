/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"

	"github.com/acronis/go-botkit/config"
	"github.com/acronis/go-botkit/log/logtest"
	"github.com/acronis/go-botkit/service"
)

// GateTestSuite contains tests for Gate
type GateTestSuite struct {
	suite.Suite
}

func TestGate(t *testing.T) {
	suite.Run(t, new(GateTestSuite))
}

// newTestGate creates a gate with a manually advanced clock and a fresh metrics collector.
func (ts *GateTestSuite) newTestGate(cfg *Config) (*Gate, *time.Time, *PrometheusMetrics) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	pm := NewPrometheusMetrics()
	gate, err := NewGateWithOpts(cfg, GateOpts{
		MetricsCollector: pm,
		TimeNowProvider:  func() time.Time { return now },
	})
	ts.Require().NoError(err)
	return gate, &now, pm
}

func (ts *GateTestSuite) TestCheckAdmitsUpToRate() {
	gate, _, pm := ts.newTestGate(&Config{
		Classes:   map[string]ClassLimit{ClassMessage: {Rate: Rate{Count: 3, Duration: 10 * time.Second}}},
		BlockFor:  config.TimeDuration(time.Minute),
		MaxActors: 100,
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		decision, err := gate.Check(ctx, "actor-1", ClassMessage)
		ts.NoError(err)
		ts.True(decision.Allowed)
		ts.Equal(time.Duration(0), decision.RetryAfter)
	}

	decision, err := gate.Check(ctx, "actor-1", ClassMessage)
	ts.NoError(err)
	ts.False(decision.Allowed)
	ts.Equal(ReasonRateExceeded, decision.Reason)
	ts.Equal(time.Minute, decision.RetryAfter)

	ts.Equal(3, int(testutil.ToFloat64(pm.AdmittedTotal.WithLabelValues(ClassMessage))))
	ts.Equal(1, int(testutil.ToFloat64(pm.RejectedTotal.WithLabelValues(ClassMessage, string(ReasonRateExceeded)))))
}

func (ts *GateTestSuite) TestCooldown() {
	gate, now, pm := ts.newTestGate(&Config{
		Classes:   map[string]ClassLimit{ClassMessage: {Rate: Rate{Count: 3, Duration: 10 * time.Second}}},
		BlockFor:  config.TimeDuration(time.Minute),
		MaxActors: 100,
	})

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := gate.Check(ctx, "actor-1", ClassMessage)
		ts.NoError(err)
	}

	// Hammering during the cooldown is rejected with the remaining time
	// and never extends the cooldown.
	*now = now.Add(10 * time.Second)
	decision, err := gate.Check(ctx, "actor-1", ClassMessage)
	ts.NoError(err)
	ts.False(decision.Allowed)
	ts.Equal(ReasonCoolingDown, decision.Reason)
	ts.Equal(50*time.Second, decision.RetryAfter)

	*now = now.Add(49 * time.Second)
	decision, err = gate.Check(ctx, "actor-1", ClassMessage)
	ts.NoError(err)
	ts.False(decision.Allowed)
	ts.Equal(ReasonCoolingDown, decision.Reason)
	ts.Equal(time.Second, decision.RetryAfter)

	// Once the cooldown passes, the window has slid as well and checks are admitted.
	*now = now.Add(2 * time.Second)
	decision, err = gate.Check(ctx, "actor-1", ClassMessage)
	ts.NoError(err)
	ts.True(decision.Allowed)

	ts.Equal(2, int(testutil.ToFloat64(pm.RejectedTotal.WithLabelValues(ClassMessage, string(ReasonCoolingDown)))))
}

func (ts *GateTestSuite) TestNoCooldownUsesWindowEstimate() {
	gate, now, _ := ts.newTestGate(&Config{
		Classes:   map[string]ClassLimit{ClassMessage: {Rate: Rate{Count: 1, Duration: 10 * time.Second}}},
		MaxActors: 100,
	})

	ctx := context.Background()
	decision, err := gate.Check(ctx, "actor-1", ClassMessage)
	ts.NoError(err)
	ts.True(decision.Allowed)

	// With BlockFor 0 every rejection reports the window remainder.
	*now = now.Add(4 * time.Second)
	decision, err = gate.Check(ctx, "actor-1", ClassMessage)
	ts.NoError(err)
	ts.False(decision.Allowed)
	ts.Equal(ReasonRateExceeded, decision.Reason)
	ts.Equal(6*time.Second, decision.RetryAfter)

	*now = now.Add(2 * time.Second)
	decision, err = gate.Check(ctx, "actor-1", ClassMessage)
	ts.NoError(err)
	ts.False(decision.Allowed)
	ts.Equal(ReasonRateExceeded, decision.Reason)
	ts.Equal(4*time.Second, decision.RetryAfter)

	*now = now.Add(4 * time.Second)
	decision, err = gate.Check(ctx, "actor-1", ClassMessage)
	ts.NoError(err)
	ts.True(decision.Allowed)
}

func (ts *GateTestSuite) TestUnknownClass() {
	gate, _, _ := ts.newTestGate(&Config{MaxActors: 100})

	_, err := gate.Check(context.Background(), "actor-1", "unknown")
	ts.Require().Error(err)
	ts.ErrorIs(err, ErrUnknownClass)
}

func (ts *GateTestSuite) TestClassesAreIndependent() {
	gate, _, _ := ts.newTestGate(&Config{
		Classes: map[string]ClassLimit{
			ClassMessage:  {Rate: Rate{Count: 1, Duration: 10 * time.Second}},
			ClassCallback: {Rate: Rate{Count: 2, Duration: 10 * time.Second}},
		},
		BlockFor:  config.TimeDuration(time.Minute),
		MaxActors: 100,
	})

	ctx := context.Background()

	decision, err := gate.Check(ctx, "actor-1", ClassMessage)
	ts.NoError(err)
	ts.True(decision.Allowed)
	decision, err = gate.Check(ctx, "actor-1", ClassMessage)
	ts.NoError(err)
	ts.False(decision.Allowed)

	// The message cooldown does not affect the callback class.
	for i := 0; i < 2; i++ {
		decision, err = gate.Check(ctx, "actor-1", ClassCallback)
		ts.NoError(err)
		ts.True(decision.Allowed)
	}
	decision, err = gate.Check(ctx, "actor-1", ClassCallback)
	ts.NoError(err)
	ts.False(decision.Allowed)
}

func (ts *GateTestSuite) TestActorsAreIndependent() {
	gate, _, _ := ts.newTestGate(&Config{
		Classes:   map[string]ClassLimit{ClassMessage: {Rate: Rate{Count: 1, Duration: 10 * time.Second}}},
		BlockFor:  config.TimeDuration(time.Minute),
		MaxActors: 100,
	})

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := gate.Check(ctx, "actor-1", ClassMessage)
		ts.NoError(err)
	}

	decision, err := gate.Check(ctx, "actor-2", ClassMessage)
	ts.NoError(err)
	ts.True(decision.Allowed)
}

func (ts *GateTestSuite) TestStatsAndPurgeIdle() {
	gate, now, _ := ts.newTestGate(&Config{
		Classes:   map[string]ClassLimit{ClassMessage: {Rate: Rate{Count: 5, Duration: 10 * time.Second}}},
		MaxActors: 100,
	})

	ctx := context.Background()

	_, err := gate.Check(ctx, "actor-1", ClassMessage)
	ts.NoError(err)

	*now = now.Add(5 * time.Minute)
	_, err = gate.Check(ctx, "actor-2", ClassMessage)
	ts.NoError(err)

	ts.Equal(GateStats{Actors: 2}, gate.Stats())

	removed := gate.PurgeIdle(time.Minute)
	ts.Equal(1, removed)
	ts.Equal(GateStats{Actors: 1}, gate.Stats())

	// actor-1 starts from a clean slate after the purge.
	decision, err := gate.Check(ctx, "actor-1", ClassMessage)
	ts.NoError(err)
	ts.True(decision.Allowed)
	ts.Equal(GateStats{Actors: 2}, gate.Stats())
}

func (ts *GateTestSuite) TestZeroConfigFallsBackToDefaults() {
	gate, err := NewGate(&Config{})
	ts.Require().NoError(err)

	ctx := context.Background()
	for _, class := range []string{ClassMessage, ClassCallback} {
		decision, checkErr := gate.Check(ctx, "actor-1", class)
		ts.NoError(checkErr)
		ts.True(decision.Allowed)
	}
}

func (ts *GateTestSuite) TestInvalidConfig() {
	for _, cfg := range []*Config{
		{Alg: "unknown"},
		{MaxActors: -1},
		{BlockFor: config.TimeDuration(-time.Second)},
		{Classes: map[string]ClassLimit{"broken": {}}},
		{Classes: map[string]ClassLimit{ClassMessage: {Rate: Rate{Count: 1, Duration: time.Second}, Burst: -1}}},
	} {
		_, err := NewGate(cfg)
		ts.Error(err)
	}
}

func (ts *GateTestSuite) TestCheckConcurrentExactness() {
	cfg := &Config{
		Classes:   map[string]ClassLimit{ClassMessage: {Rate: Rate{Count: 10, Duration: time.Minute}}},
		BlockFor:  config.TimeDuration(time.Minute),
		MaxActors: 100,
	}
	gate, err := NewGate(cfg)
	ts.Require().NoError(err)

	ctx := context.Background()
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, checkErr := gate.Check(ctx, "actor-1", ClassMessage)
			ts.NoError(checkErr)
			if decision.Allowed {
				admitted.Inc()
			}
		}()
	}
	wg.Wait()

	ts.Equal(int32(10), admitted.Load())
}

// TestGatePeriodicPurge wires the idle sweep into service.PeriodicWorker the
// way a bot service runs it.
func TestGatePeriodicPurge(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	gate, err := NewGateWithOpts(NewDefaultConfig(), GateOpts{
		TimeNowProvider: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		},
	})
	require.NoError(t, err)

	_, err = gate.Check(context.Background(), "actor-1", ClassMessage)
	require.NoError(t, err)
	require.Equal(t, 1, gate.Stats().Actors)

	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()

	purge := service.WorkerFunc(func(ctx context.Context) error {
		gate.PurgeIdle(30 * time.Minute)
		return nil
	})
	worker := service.NewPeriodicWorker(purge, time.Millisecond*5, logtest.NewRecorder())

	ctx, cancel := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() { workerDone <- worker.Run(ctx) }()

	require.Eventually(t, func() bool { return gate.Stats().Actors == 0 }, time.Second*3, time.Millisecond*5)
	cancel()
	require.NoError(t, <-workerDone)
}
