package draft

import (
	"testing"

	"github.com/stretchr/testify/require"

	"socialplane/services/postjob"
)

const maxAttempts = 3

func job(status postjob.Status, attempts int) postjob.PostJob {
	return postjob.PostJob{Status: status, AttemptCount: attempts}
}

func TestAggregateAllSuccess(t *testing.T) {
	status, ok := Aggregate([]postjob.PostJob{
		job(postjob.StatusSuccess, 1),
		job(postjob.StatusSuccess, 2),
	}, maxAttempts)
	require.True(t, ok)
	require.Equal(t, StatusPublished, status)
}

func TestAggregatePartialSuccess(t *testing.T) {
	status, ok := Aggregate([]postjob.PostJob{
		job(postjob.StatusSuccess, 1),
		job(postjob.StatusFailed, maxAttempts),
	}, maxAttempts)
	require.True(t, ok)
	require.Equal(t, StatusPartiallyPublished, status)
}

func TestAggregateAllExhausted(t *testing.T) {
	status, ok := Aggregate([]postjob.PostJob{
		job(postjob.StatusFailed, maxAttempts),
		job(postjob.StatusFailed, maxAttempts+1),
	}, maxAttempts)
	require.True(t, ok)
	require.Equal(t, StatusFailed, status)
}

func TestAggregateRetriesRemainStayScheduled(t *testing.T) {
	// A failure with budget left keeps the draft in the due set.
	status, ok := Aggregate([]postjob.PostJob{
		job(postjob.StatusSuccess, 1),
		job(postjob.StatusFailed, 1),
	}, maxAttempts)
	require.True(t, ok)
	require.Equal(t, StatusScheduled, status)
}

func TestAggregateOpenJobsStayScheduled(t *testing.T) {
	for _, s := range []postjob.Status{
		postjob.StatusPending,
		postjob.StatusReady,
		postjob.StatusGenerated,
		postjob.StatusPublishing,
	} {
		status, ok := Aggregate([]postjob.PostJob{
			job(postjob.StatusSuccess, 1),
			job(s, 0),
		}, maxAttempts)
		require.True(t, ok, "status %s", s)
		require.Equal(t, StatusScheduled, status, "status %s", s)
	}
}

func TestAggregateNoJobsIsNoOp(t *testing.T) {
	_, ok := Aggregate(nil, maxAttempts)
	require.False(t, ok)
}

func TestAggregateOnlyCanceledIsNoOp(t *testing.T) {
	_, ok := Aggregate([]postjob.PostJob{
		job(postjob.StatusCanceled, 0),
		job(postjob.StatusCanceled, 1),
	}, maxAttempts)
	require.False(t, ok)
}

func TestAggregateIsIdempotent(t *testing.T) {
	jobs := []postjob.PostJob{
		job(postjob.StatusSuccess, 1),
		job(postjob.StatusFailed, maxAttempts),
	}
	first, ok := Aggregate(jobs, maxAttempts)
	require.True(t, ok)
	second, ok := Aggregate(jobs, maxAttempts)
	require.True(t, ok)
	require.Equal(t, first, second)
}

func TestAllTerminal(t *testing.T) {
	require.False(t, AllTerminal(nil, maxAttempts))
	require.False(t, AllTerminal([]postjob.PostJob{
		job(postjob.StatusSuccess, 1),
		job(postjob.StatusFailed, 1),
	}, maxAttempts))
	require.True(t, AllTerminal([]postjob.PostJob{
		job(postjob.StatusSuccess, 1),
		job(postjob.StatusFailed, maxAttempts),
		job(postjob.StatusCanceled, 0),
	}, maxAttempts))
}
