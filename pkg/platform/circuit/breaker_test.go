package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome bool

const (
	fail outcome = false
	ok   outcome = true
)

func record(b *Breaker, outcomes ...outcome) {
	for _, o := range outcomes {
		if o == ok {
			b.RecordSuccess()
		} else {
			b.RecordFailure()
		}
	}
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		outcomes  []outcome
		wantState State
	}{
		{name: "new breaker is closed", wantState: StateClosed},
		{name: "failures below threshold keep it closed", opts: []Option{WithFailureThreshold(3)}, outcomes: []outcome{fail, fail}, wantState: StateClosed},
		{name: "threshold failures open it", opts: []Option{WithFailureThreshold(3)}, outcomes: []outcome{fail, fail, fail}, wantState: StateOpen},
		{name: "a success clears the failure streak", opts: []Option{WithFailureThreshold(3)}, outcomes: []outcome{fail, fail, ok, fail, fail}, wantState: StateClosed},
		{name: "open breaker needs the success threshold", opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)}, outcomes: []outcome{fail, ok}, wantState: StateOpen},
		{name: "success threshold closes it", opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)}, outcomes: []outcome{fail, ok, ok}, wantState: StateClosed},
		{name: "a failure while open restarts the success streak", opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)}, outcomes: []outcome{fail, ok, fail, ok}, wantState: StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("chat-gateway", tt.opts...)
			record(b, tt.outcomes...)
			assert.Equal(t, tt.wantState, b.State())
		})
	}
}

func TestBreakerReportsChanges(t *testing.T) {
	b := New("chat-gateway", WithFailureThreshold(2))
	assert.Equal(t, "chat-gateway", b.Name())

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened, "already open")

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
}

func TestBreakerCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := New("chat-gateway", WithFailureThreshold(1), WithCooldown(time.Minute), withClock(func() time.Time { return now }))
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.False(t, b.Allow(), "open breaker rejects calls during cooldown")

	now = now.Add(61 * time.Second)
	assert.True(t, b.Allow(), "probe admitted after cooldown")

	b.RecordFailure()
	assert.False(t, b.Allow(), "failed probe restarts the cooldown")

	b.Reset()
	assert.True(t, b.Allow())
	assert.False(t, b.IsOpen())
}
