package service

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"nullfake/models"
	"nullfake/service/scraper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_Lifecycle(t *testing.T) {
	store := NewSessionStore(newTestDB(t))
	ctx := context.Background()

	ref := scraper.NewProductRef("B000000001", "us")
	sess, err := store.Create(ctx, ref)
	require.NoError(t, err)
	assert.Len(t, sess.ID, 36)
	assert.Equal(t, models.StatusPending, sess.Status)
	assert.Equal(t, totalSteps, sess.TotalSteps)

	require.NoError(t, store.AttachRecord(ctx, sess.ID, 7))
	require.NoError(t, store.Progress(ctx, sess.ID, StepFetch, 30, "抓取中"))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.Status)
	assert.Equal(t, StepFetch, got.CurrentStep)
	assert.Equal(t, 30.0, got.ProgressPercentage)
	require.NotNil(t, got.AsinDataID)
	assert.Equal(t, uint(7), *got.AsinDataID)

	require.NoError(t, store.Complete(ctx, sess.ID, map[string]any{"grade": "A"}))
	got, err = store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 100.0, got.ProgressPercentage)
	assert.JSONEq(t, `{"grade":"A"}`, string(got.Result))
	assert.True(t, got.IsFinished())
}

func TestSessionStore_FinishedIsImmutable(t *testing.T) {
	store := NewSessionStore(newTestDB(t))
	ctx := context.Background()

	sess, err := store.Create(ctx, scraper.NewProductRef("B000000001", "us"))
	require.NoError(t, err)
	require.NoError(t, store.Fail(ctx, sess.ID, "boom"))

	require.NoError(t, store.Progress(ctx, sess.ID, StepAnalyze, 60, "late"))
	require.NoError(t, store.Complete(ctx, sess.ID, map[string]any{}))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.ErrorMessage)
	assert.Zero(t, got.ProgressPercentage)
}

func TestSessionStore_PurgeFinished(t *testing.T) {
	store := NewSessionStore(newTestDB(t))
	ctx := context.Background()

	old := time.Now().Add(-10 * 24 * time.Hour)
	store.now = func() time.Time { return old }
	done, err := store.Create(ctx, scraper.NewProductRef("B000000001", "us"))
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, done.ID, nil))

	open, err := store.Create(ctx, scraper.NewProductRef("B000000002", "us"))
	require.NoError(t, err)

	n, err := store.PurgeFinished(ctx, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Get(ctx, done.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, open.ID)
	assert.NoError(t, err)
}

func TestSessionStore_FailTruncatesByRune(t *testing.T) {
	store := NewSessionStore(newTestDB(t))
	ctx := context.Background()

	sess, err := store.Create(ctx, scraper.NewProductRef("B000000001", "us"))
	require.NoError(t, err)
	require.NoError(t, store.Fail(ctx, sess.ID, strings.Repeat("评论抓取失败", 400)))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.True(t, utf8.ValidString(got.ErrorMessage))
	assert.LessOrEqual(t, utf8.RuneCountInString(got.ErrorMessage), 1000)
}
