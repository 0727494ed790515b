package container

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avellaneda-grid-go/infrastructure/logger"
)

type fakeComponent struct {
	name     string
	events   *[]string
	startErr error
	stopErr  error
	healthy  bool
}

func (f *fakeComponent) Name() string { return f.name }

func (f *fakeComponent) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.events = append(*f.events, "start "+f.name)
	f.healthy = true
	return nil
}

func (f *fakeComponent) Stop() error {
	*f.events = append(*f.events, "stop "+f.name)
	f.healthy = false
	return f.stopErr
}

func (f *fakeComponent) Health() error {
	if !f.healthy {
		return errors.New("down")
	}
	return nil
}

func TestLifecycle_StartAndStopOrder(t *testing.T) {
	var events []string
	m := NewLifecycleManager()
	m.Register(&fakeComponent{name: "metrics", events: &events})
	m.Register(&fakeComponent{name: "feed", events: &events})
	m.Register(&fakeComponent{name: "engine", events: &events})

	require.NoError(t, m.StartAll(context.Background()))
	require.NoError(t, m.CheckHealth())
	require.NoError(t, m.StopAll())

	assert.Equal(t, []string{
		"start metrics", "start feed", "start engine",
		"stop engine", "stop feed", "stop metrics",
	}, events)
	assert.Error(t, m.CheckHealth())
}

func TestLifecycle_StartFailureRollsBack(t *testing.T) {
	var events []string
	m := NewLifecycleManager()
	m.Register(&fakeComponent{name: "metrics", events: &events})
	m.Register(&fakeComponent{name: "feed", events: &events})
	m.Register(&fakeComponent{name: "engine", events: &events, startErr: errors.New("boom")})

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine")
	assert.Equal(t, []string{"start metrics", "start feed", "stop feed", "stop metrics"}, events)
}

func TestLifecycle_StopAllJoinsErrors(t *testing.T) {
	var events []string
	m := NewLifecycleManager()
	m.Register(&fakeComponent{name: "a", events: &events, stopErr: errors.New("a failed")})
	m.Register(&fakeComponent{name: "b", events: &events, stopErr: errors.New("b failed")})

	err := m.StopAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a failed")
	assert.Contains(t, err.Error(), "b failed")
	assert.Equal(t, []string{"stop b", "stop a"}, events)
}

func TestLoopComponent(t *testing.T) {
	started := make(chan struct{})
	l := &loopComponent{
		name:   "loop",
		logger: logger.NewNop(),
		run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	assert.Error(t, l.Health(), "not started")

	require.NoError(t, l.Start(context.Background()))
	<-started
	assert.NoError(t, l.Health())

	require.NoError(t, l.Stop())
	assert.Error(t, l.Health())
	assert.NoError(t, l.Stop(), "second stop is a no-op")
}

func TestLoopComponent_ExitIsUnhealthy(t *testing.T) {
	l := &loopComponent{
		name:   "feed",
		logger: logger.NewNop(),
		run:    func(context.Context) error { return errors.New("dial refused") },
	}
	require.NoError(t, l.Start(context.Background()))
	require.Eventually(t, func() bool { return l.Health() != nil }, time.Second, time.Millisecond)
	assert.Contains(t, l.Health().Error(), "dial refused")
	require.NoError(t, l.Stop())
}
