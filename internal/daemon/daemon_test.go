package daemon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/school-status/internal/build"
	"go.uber.org/zap"
)

type fakeRunner struct {
	calls   atomic.Int32
	targets chan build.Target
	block   chan struct{}
	err     error
}

func (f *fakeRunner) Build(ctx context.Context, target build.Target) error {
	f.calls.Add(1)
	if f.targets != nil {
		f.targets <- target
	}
	if f.block != nil {
		<-f.block
	}
	return f.err
}

func TestNewDaemon_InvalidSchedule(t *testing.T) {
	_, err := NewDaemon(&fakeRunner{}, "whenever", false, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestRun_BuildsOnStartAndStops(t *testing.T) {
	runner := &fakeRunner{targets: make(chan build.Target, 1)}
	d, err := NewDaemon(runner, "0 0 1 1 *", true, time.UTC, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case target := <-runner.targets:
		assert.Equal(t, build.TargetAll, target)
	case <-time.After(5 * time.Second):
		t.Fatal("initial build did not run")
	}

	require.Eventually(t, func() bool { return !d.NextRun().IsZero() }, 5*time.Second, 10*time.Millisecond)
	next := d.NextRun()
	assert.Equal(t, time.January, next.Month())
	assert.Equal(t, 1, next.Day())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestRun_Scheduled(t *testing.T) {
	runner := &fakeRunner{}
	d, err := NewDaemon(runner, "@every 1s", false, time.UTC, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	assert.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
}

func TestRunNow_RejectsOverlap(t *testing.T) {
	runner := &fakeRunner{targets: make(chan build.Target, 1), block: make(chan struct{})}
	d, err := NewDaemon(runner, "5 0 * * *", false, time.UTC, zap.NewNop())
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() { first <- d.RunNow(context.Background()) }()
	<-runner.targets

	assert.Error(t, d.RunNow(context.Background()))
	assert.Equal(t, true, d.GetStatus()["running"])

	close(runner.block)
	require.NoError(t, <-first)

	status := d.GetStatus()
	assert.Equal(t, false, status["running"])
	assert.Equal(t, true, status["last_ok"])
}

func TestRunNow_RecordsFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("disk full")}
	d, err := NewDaemon(runner, "5 0 * * *", false, time.UTC, zap.NewNop())
	require.NoError(t, err)

	assert.EqualError(t, d.RunNow(context.Background()), "disk full")

	status := d.GetStatus()
	assert.Equal(t, false, status["last_ok"])
	assert.Equal(t, "disk full", status["last_error"])
}
