package infrastructure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMessageRateLimiter_BurstThenRefill(t *testing.T) {
	clock := &fakeClock{t: monday}
	rl := NewMessageRateLimiter(0.5, 2).WithClock(clock.now)

	assert.True(t, rl.Allow("33600000001"))
	assert.True(t, rl.Allow("33600000001"))
	assert.False(t, rl.Allow("33600000001"))
	assert.Equal(t, 2*time.Second, rl.WaitTime("33600000001"))

	// other clients have their own bucket
	assert.True(t, rl.Allow("33600000002"))

	clock.advance(2 * time.Second)
	assert.Zero(t, rl.WaitTime("33600000001"))
	assert.True(t, rl.Allow("33600000001"))
}

func TestMessageRateLimiter_ResetAndCleanup(t *testing.T) {
	clock := &fakeClock{t: monday}
	rl := NewMessageRateLimiter(0.1, 1).WithClock(clock.now)

	require.True(t, rl.Allow("a"))
	require.False(t, rl.Allow("a"))
	rl.Reset("a")
	assert.True(t, rl.Allow("a"))

	require.True(t, rl.Allow("b"))
	clock.advance(11 * time.Minute)
	assert.Equal(t, 2, rl.Cleanup())
	assert.Equal(t, 0, rl.GetStats().ActiveClients)
}

func TestMessageRateLimiter_StopEndsCleanupLoop(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)

	rl := NewMessageRateLimiter(1, 1)
	rl.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	rl.Stop()
	rl.Stop()
}

func TestSessionManager_TracksInFlight(t *testing.T) {
	sm := NewSessionManager()

	first := sm.Enter("a")
	// a second message of the same client does not wait for the first
	second := sm.Enter("a")
	other := sm.Enter("b")
	assert.Equal(t, 2, sm.Pending())
	assert.Equal(t, 3, sm.Messages())

	first()
	first()
	assert.Equal(t, 2, sm.Pending())
	assert.Equal(t, 2, sm.Messages())

	second()
	other()
	assert.Zero(t, sm.Pending())
	assert.Zero(t, sm.Messages())
}
