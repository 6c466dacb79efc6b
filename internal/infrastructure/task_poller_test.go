package infrastructure

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"luma_assistant/internal/logging"
)

// Monday 2 June 2025
var monday = time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestPoller(clock *fakeClock) *TaskPoller {
	return NewTaskPoller(time.Minute, time.UTC, logging.Discard()).WithClock(clock.now)
}

func TestTrigger_Next(t *testing.T) {
	cases := []struct {
		name    string
		trigger Trigger
		after   time.Time
		want    time.Time
	}{
		{"later today", Daily(8, 0), monday, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)},
		{"already passed", Daily(6, 30), monday, time.Date(2025, 6, 3, 6, 30, 0, 0, time.UTC)},
		{"exact time is not strictly after", Daily(7, 0), monday, time.Date(2025, 6, 3, 7, 0, 0, 0, time.UTC)},
		{"friday only", Weekly(16, 0, time.Friday), monday, time.Date(2025, 6, 6, 16, 0, 0, 0, time.UTC)},
		{"weekdays skip weekend", Weekly(8, 0, Weekdays...), time.Date(2025, 6, 6, 9, 0, 0, 0, time.UTC), time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)},
		{"once", Once(30 * time.Minute), monday, monday.Add(30 * time.Minute)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.trigger.next(tc.after, time.UTC))
		})
	}
}

func TestTaskPoller_RegisterValidation(t *testing.T) {
	p := newTestPoller(&fakeClock{t: monday})
	noop := func(context.Context) error { return nil }

	assert.Error(t, p.Register("", "", Daily(8, 0), noop))
	assert.Error(t, p.Register("x", "", Daily(8, 0), nil))
	assert.Error(t, p.Register("x", "", Daily(24, 0), noop))
	assert.Error(t, p.Register("x", "", Daily(8, 60), noop))
	assert.Empty(t, p.Tasks())
}

func TestTaskPoller_RunsRecurringTask(t *testing.T) {
	clock := &fakeClock{t: monday}
	p := newTestPoller(clock)

	var runs int
	require.NoError(t, p.Register("briefing", "morning", Daily(8, 0), func(context.Context) error {
		runs++
		return nil
	}))

	assert.Equal(t, 0, p.runDue(context.Background(), clock.now()))

	clock.advance(time.Hour)
	assert.Equal(t, 1, p.runDue(context.Background(), clock.now()))
	assert.Equal(t, 1, runs)

	// not due again the same day
	clock.advance(time.Minute)
	assert.Equal(t, 0, p.runDue(context.Background(), clock.now()))

	tasks := p.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, tasks[0].Runs)
	assert.Equal(t, time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC), tasks[0].NextRun)
}

func TestTaskPoller_OnceTaskIsRemovedAfterRun(t *testing.T) {
	clock := &fakeClock{t: monday}
	p := newTestPoller(clock)

	var runs int
	require.NoError(t, p.Register("follow_up", "", Once(30*time.Minute), func(context.Context) error {
		runs++
		return nil
	}))
	require.Len(t, p.Tasks(), 1)
	assert.True(t, p.Tasks()[0].Once)

	clock.advance(29 * time.Minute)
	p.runDue(context.Background(), clock.now())
	assert.Equal(t, 0, runs)

	clock.advance(time.Minute)
	p.runDue(context.Background(), clock.now())
	assert.Equal(t, 1, runs)
	assert.Empty(t, p.Tasks())
}

func TestTaskPoller_RegisterReplacesByName(t *testing.T) {
	clock := &fakeClock{t: monday}
	p := newTestPoller(clock)

	var first, second int
	require.NoError(t, p.Register("check", "v1", Daily(8, 0), func(context.Context) error { first++; return nil }))
	require.NoError(t, p.Register("check", "v2", Daily(8, 0), func(context.Context) error { second++; return nil }))

	tasks := p.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "v2", tasks[0].Description)

	clock.advance(time.Hour)
	p.runDue(context.Background(), clock.now())
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestTaskPoller_FailingTasksDoNotStopOthers(t *testing.T) {
	clock := &fakeClock{t: monday}
	p := newTestPoller(clock)

	var ok int
	require.NoError(t, p.Register("a_panics", "", Daily(8, 0), func(context.Context) error { panic("boom") }))
	require.NoError(t, p.Register("b_fails", "", Daily(8, 0), func(context.Context) error { return errors.New("nope") }))
	require.NoError(t, p.Register("c_ok", "", Daily(8, 0), func(context.Context) error { ok++; return nil }))

	clock.advance(time.Hour)
	assert.Equal(t, 3, p.runDue(context.Background(), clock.now()))
	assert.Equal(t, 1, ok)
	assert.Len(t, p.Tasks(), 3)
}

func TestTaskPoller_Unregister(t *testing.T) {
	p := newTestPoller(&fakeClock{t: monday})
	require.NoError(t, p.Register("a", "", Daily(8, 0), func(context.Context) error { return nil }))

	assert.True(t, p.Unregister("a"))
	assert.False(t, p.Unregister("a"))
	assert.Empty(t, p.Tasks())
}

func TestTaskPoller_RunNow(t *testing.T) {
	p := newTestPoller(&fakeClock{t: monday})
	var runs int
	require.NoError(t, p.Register("a", "", Daily(8, 0), func(context.Context) error { runs++; return nil }))

	require.NoError(t, p.RunNow(context.Background(), "a"))
	assert.Equal(t, 1, runs)
	assert.ErrorIs(t, p.RunNow(context.Background(), "missing"), ErrTaskNotRegistered)
}

func TestTaskPoller_RunStops(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)

	p := NewTaskPoller(5*time.Millisecond, time.UTC, logging.Discard())
	var runs atomic.Int32
	require.NoError(t, p.Register("tick", "", Once(time.Millisecond), func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	p.Stop()
	p.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestTaskPoller_RunStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)

	p := NewTaskPoller(time.Hour, time.UTC, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
