package service

import (
	"context"
	"testing"
	"time"

	"nullfake/config"
	"nullfake/jobs"
	"nullfake/models"
	"nullfake/service/scraper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) (*Scheduler, *AsinStore, *SessionStore, *jobs.Queue) {
	t.Helper()
	db := newTestDB(t)
	records := NewAsinStore(db)
	sessions := NewSessionStore(db)
	queue := jobs.NewQueue(db, 3, time.Second)
	s := NewScheduler(config.SchedulerConfig{
		RetrySpec:   "0 */30 * * * *",
		CleanupSpec: "0 0 3 * * *",
		MaxRetries:  2,
	}, records, sessions, queue, nil)
	return s, records, sessions, queue
}

func TestScheduler_StartRejectsBadSpec(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)
	s.cfg.RetrySpec = "not a spec"
	assert.Error(t, s.Start())

	s, _, _, _ = newTestScheduler(t)
	require.NoError(t, s.Start())
	s.Stop()
}

func TestScheduler_FailStaleSkipsCompleted(t *testing.T) {
	s, records, _, _ := newTestScheduler(t)
	ctx := context.Background()

	done := completedRecord(t, records, "B000000001")
	stuck, err := records.FindOrCreate(ctx, "B000000002", "us", "")
	require.NoError(t, err)
	_, err = records.MarkProcessing(ctx, stuck.ID)
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err := s.FailStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := records.Get(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	got, err = records.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestScheduler_RetryFailed(t *testing.T) {
	s, records, _, queue := newTestScheduler(t)
	ctx := context.Background()

	rec, err := records.FindOrCreate(ctx, "B000000001", "us", "")
	require.NoError(t, err)
	_, err = records.SaveReviews(ctx, rec.ID, testReviews, models.ProductInfo{})
	require.NoError(t, err)
	_, err = records.MarkFailed(ctx, rec.ID, "provider down")
	require.NoError(t, err)

	n, err := s.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err := queue.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobReanalyze, job.Type)
	var p recordPayload
	require.NoError(t, jobs.DecodePayload(job, &p))
	assert.Equal(t, rec.ID, p.AsinDataID)

	// 达到最大重试次数后不再排队
	_, err = records.MarkFailed(ctx, rec.ID, "provider down")
	require.NoError(t, err)
	n, err = s.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScheduler_Cleanup(t *testing.T) {
	s, _, sessions, queue := newTestScheduler(t)
	ctx := context.Background()

	doneJob, err := queue.Enqueue(ctx, JobReanalyze, recordPayload{AsinDataID: 1}, 0)
	require.NoError(t, err)
	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	require.Equal(t, doneJob.ID, claimed.ID)
	require.NoError(t, queue.Complete(ctx, claimed))

	_, err = queue.Enqueue(ctx, JobReanalyze, recordPayload{AsinDataID: 2}, 0)
	require.NoError(t, err)
	stuck, err := queue.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, stuck)

	sess, err := sessions.Create(ctx, scraper.NewProductRef("B000000001", "us"))
	require.NoError(t, err)
	require.NoError(t, sessions.Fail(ctx, sess.ID, "x"))

	s.now = func() time.Time { return time.Now().Add(30 * 24 * time.Hour) }
	require.NoError(t, s.Cleanup(ctx))

	var list []models.Job
	require.NoError(t, s.records.db.Find(&list).Error)
	require.Len(t, list, 1)
	assert.Equal(t, stuck.ID, list[0].ID)
	assert.Equal(t, models.JobQueued, list[0].Status)

	_, err = sessions.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
