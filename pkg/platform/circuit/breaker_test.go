package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBreakerStartsClosed(t *testing.T) {
	b := New("notifier")
	assert.Equal(t, "notifier", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.False(t, b.IsOpen())
}

func TestOutcomeSequences(t *testing.T) {
	// F records a failure, S a success.
	tests := []struct {
		name     string
		opts     []Option
		sequence string
		want     State
	}{
		{"below failure threshold", []Option{WithFailureThreshold(3)}, "FF", StateClosed},
		{"at failure threshold", []Option{WithFailureThreshold(3)}, "FFF", StateOpen},
		{"success clears the failure streak", []Option{WithFailureThreshold(3)}, "FFSFF", StateClosed},
		{"single probe success recloses", []Option{WithFailureThreshold(1)}, "FS", StateClosed},
		{"probe streak must be consecutive", []Option{WithFailureThreshold(1), WithSuccessThreshold(3)}, "FSSFSS", StateOpen},
		{"full probe streak recloses", []Option{WithFailureThreshold(1), WithSuccessThreshold(3)}, "FSSS", StateClosed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := New("notifier", tc.opts...)
			for _, outcome := range tc.sequence {
				if outcome == 'F' {
					b.RecordFailure()
				} else {
					b.RecordSuccess()
				}
			}
			assert.Equal(t, tc.want, b.State())
		})
	}
}

func TestFailFastWhileOpen(t *testing.T) {
	// The notifier checks IsOpen before producing so an open circuit costs a
	// short probe deadline, not the full produce timeout.
	b := New("notifier", WithFailureThreshold(2))

	b.RecordFailure()
	useFallback, change := b.RecordFailure()
	require.True(t, useFallback)
	require.True(t, change.Opened)
	require.True(t, b.IsOpen())

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.Equal(t, StateChange{}, change, "an already-open breaker reports no transition")
}

func TestTransitionsReportedExactlyOnce(t *testing.T) {
	// Transitions drive the notifier's opened/closed log lines; repeat
	// outcomes in the same state must not produce a second one.
	b := New("notifier", WithFailureThreshold(1), WithSuccessThreshold(2))

	_, change := b.RecordFailure()
	require.True(t, change.Opened)

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary, "one probe success is not enough to trust the broker")
	assert.False(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)

	_, change = b.RecordSuccess()
	assert.Equal(t, StateChange{}, change)
}

func TestProbeFailureRestartsTheStreak(t *testing.T) {
	b := New("notifier", WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordSuccess()
	assert.True(t, b.IsOpen(), "a probe failure restarts the success streak")
	b.RecordSuccess()
	assert.False(t, b.IsOpen())
}

func TestResetForcesClosed(t *testing.T) {
	b := New("notifier", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())

	// Counts are zeroed too: one failure is again enough to reopen.
	_, change := b.RecordFailure()
	assert.True(t, change.Opened)
}
