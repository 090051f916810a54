package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]JobStatus{
		{StatusPending, StatusRunning},
		{StatusPending, StatusCancelled},
		{StatusPending, StatusFailed},
		{StatusRunning, StatusCompleted},
		{StatusRunning, StatusCompletedWithErrors},
		{StatusRunning, StatusFailed},
		{StatusRunning, StatusCancelled},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s must be legal", tr[0], tr[1])
	}

	// Terminal states admit nothing
	for _, terminal := range []JobStatus{StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusCancelled} {
		assert.True(t, terminal.IsTerminal())
		for _, to := range []JobStatus{StatusPending, StatusRunning, StatusCompleted, StatusFailed} {
			assert.False(t, CanTransition(terminal, to), "%s -> %s must be rejected", terminal, to)
		}
	}

	assert.False(t, CanTransition(StatusPending, StatusCompleted), "pending cannot complete without running")
}

func TestAdvanceProgressIsMonotonic(t *testing.T) {
	j := &ImportJob{}
	j.AdvanceProgress(40)
	assert.Equal(t, 40.0, j.Progress)

	j.AdvanceProgress(25)
	assert.Equal(t, 40.0, j.Progress, "progress never moves backwards")

	j.AdvanceProgress(250)
	assert.Equal(t, 100.0, j.Progress, "progress is capped at 100")
}

func TestRecordErrorIsBounded(t *testing.T) {
	j := &ImportJob{}
	for i := 0; i < maxStoredErrors+50; i++ {
		j.RecordError(JobError{Message: "boom", OccurredAt: time.Now()})
	}

	assert.Len(t, j.Errors, maxStoredErrors)
	assert.True(t, j.ErrorsTruncated)
}
