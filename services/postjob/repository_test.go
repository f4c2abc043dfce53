package postjob

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"socialplane/services/channels"
	"socialplane/services/testutil"
)

func newTestRepo(t *testing.T) (Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()
	db := testutil.NewTestDB(t, &PostJob{}, &Publication{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewRepository(db, node), db, node
}

func seedJob(t *testing.T, repo Repository, node *snowflake.Node, draftID string, ch channels.Channel, status Status) *PostJob {
	t.Helper()
	job := NewJob(node, draftID, "brand-1", ch, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	job.Status = status
	require.NoError(t, repo.Create(context.Background(), job))
	return job
}

func TestClaimChargesOneAttempt(t *testing.T) {
	repo, _, node := newTestRepo(t)
	job := seedJob(t, repo, node, "draft-1", channels.Facebook, StatusReady)

	now := time.Now().UTC()
	claimed, err := repo.Claim(context.Background(), job.ID, now, 10*time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	got, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPublishing, got.Status)
	require.Equal(t, 1, got.AttemptCount)
	require.NotNil(t, got.LastAttemptAt)
}

func TestClaimRefusesFreshPublishing(t *testing.T) {
	repo, _, node := newTestRepo(t)
	job := seedJob(t, repo, node, "draft-1", channels.Facebook, StatusReady)

	now := time.Now().UTC()
	claimed, err := repo.Claim(context.Background(), job.ID, now, 10*time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	// A second claim two minutes later must lose to the in-flight one.
	claimed, err = repo.Claim(context.Background(), job.ID, now.Add(2*time.Minute), 10*time.Minute)
	require.NoError(t, err)
	require.False(t, claimed)

	got, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.AttemptCount)
}

func TestClaimReclaimsStuckPublishing(t *testing.T) {
	repo, _, node := newTestRepo(t)
	job := seedJob(t, repo, node, "draft-1", channels.Facebook, StatusReady)

	now := time.Now().UTC()
	claimed, err := repo.Claim(context.Background(), job.ID, now, 10*time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = repo.Claim(context.Background(), job.ID, now.Add(15*time.Minute), 10*time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	got, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.AttemptCount)
}

func TestCancelOpenLeavesTerminalJobs(t *testing.T) {
	repo, _, node := newTestRepo(t)
	ctx := context.Background()

	open := seedJob(t, repo, node, "draft-1", channels.Facebook, StatusPending)
	done := seedJob(t, repo, node, "draft-1", channels.InstagramFeed, StatusSuccess)

	n, err := repo.CancelOpen(ctx, "draft-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := repo.Get(ctx, open.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, got.Status)

	got, err = repo.Get(ctx, done.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, got.Status)
}

func TestResetForImmediateClearsAttempts(t *testing.T) {
	repo, _, node := newTestRepo(t)
	ctx := context.Background()

	job := seedJob(t, repo, node, "draft-1", channels.Facebook, StatusReady)
	_, err := repo.Claim(ctx, job.ID, time.Now().UTC().Add(-time.Hour), 10*time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, job.ID, "boom"))

	n, err := repo.ResetForImmediate(ctx, "draft-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReady, got.Status)
	require.Equal(t, 0, got.AttemptCount)
	require.Nil(t, got.LastAttemptAt)
}

func TestUpsertPublicationIsIdempotent(t *testing.T) {
	repo, db, node := newTestRepo(t)
	ctx := context.Background()

	job := seedJob(t, repo, node, "draft-1", channels.Facebook, StatusReady)
	require.NoError(t, repo.MarkSuccess(ctx, job.ID, "ext-1", nil))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)

	publishedAt := time.Now().UTC()
	require.NoError(t, repo.UpsertPublication(ctx, got, publishedAt))
	require.NoError(t, repo.UpsertPublication(ctx, got, publishedAt))

	var count int64
	require.NoError(t, db.Model(&Publication{}).Where("job_id = ?", job.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}
