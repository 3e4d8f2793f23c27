package service

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"nullfake/models"
	"nullfake/service/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testReviews = []models.Review{
	{ID: "r1", Rating: 5, Text: "great"},
	{ID: "r2", Rating: 1, Text: "awful"},
}

func completedRecord(t *testing.T, store *AsinStore, asin string) *models.AsinData {
	t.Helper()
	ctx := context.Background()
	rec, err := store.FindOrCreate(ctx, asin, "us", "https://www.amazon.com/dp/"+asin)
	require.NoError(t, err)
	_, err = store.SaveReviews(ctx, rec.ID, testReviews, models.ProductInfo{Title: "Widget"})
	require.NoError(t, err)
	m := ComputeMetrics(testReviews, llm.Scores{"r1": 10, "r2": 90}, 85)
	require.NoError(t, store.MarkCompleted(ctx, rec.ID, m, &llm.Result{Provider: "openai", Scores: llm.Scores{"r1": 10, "r2": 90}}))
	rec, err = store.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, rec.IsProtected())
	return rec
}

func TestAsinStore_FindOrCreateIsIdempotent(t *testing.T) {
	store := NewAsinStore(newTestDB(t))
	ctx := context.Background()

	a, err := store.FindOrCreate(ctx, "B000000001", "us", "u1")
	require.NoError(t, err)
	b, err := store.FindOrCreate(ctx, "B000000001", "us", "u2")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "u1", b.ProductURL)
	assert.Equal(t, models.StatusPending, b.Status)
	require.NotNil(t, b.FirstAnalyzedAt)

	other, err := store.FindOrCreate(ctx, "B000000001", "gb", "u3")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, other.ID)
}

func TestAsinStore_FirstAnalyzedAtNeverChanges(t *testing.T) {
	store := NewAsinStore(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	store.now = func() time.Time { return base }
	rec := completedRecord(t, store, "B000000001")
	first := *rec.FirstAnalyzedAt

	for i := 1; i <= 3; i++ {
		later := base.Add(time.Duration(i) * 24 * time.Hour)
		store.now = func() time.Time { return later }
		m := ComputeMetrics(testReviews, llm.Scores{"r1": 90, "r2": 90}, 85)
		require.NoError(t, store.MarkCompleted(ctx, rec.ID, m, nil))

		got, err := store.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.True(t, first.Equal(*got.FirstAnalyzedAt))
		assert.True(t, later.Equal(*got.LastAnalyzedAt))
		assert.Equal(t, GradeF, *got.Grade)
		assert.Equal(t, 1+i, got.AnalysisAttempts)
	}
}

func TestAsinStore_ProtectedRecordCannotRegress(t *testing.T) {
	store := NewAsinStore(newTestDB(t))
	ctx := context.Background()
	rec := completedRecord(t, store, "B000000001")

	ok, err := store.MarkProcessing(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.MarkFailed(ctx, rec.ID, "late failure")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.SaveReviews(ctx, rec.ID, []models.Review{{ID: "x", Rating: 3, Text: "late"}}, models.ProductInfo{})
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.FailStale(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, *rec.Grade, *got.Grade)
	assert.Equal(t, *rec.FakePercentage, *got.FakePercentage)
	reviews, err := got.ReviewList()
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
}

func TestAsinStore_CompleteWithReviewsOverridesProtection(t *testing.T) {
	store := NewAsinStore(newTestDB(t))
	ctx := context.Background()
	rec := completedRecord(t, store, "B000000001")

	reviews := []models.Review{{ID: "x", Rating: 3, Text: "new"}}
	m := ComputeMetrics(reviews, llm.Scores{"x": 95}, 85)
	require.NoError(t, store.CompleteWithReviews(ctx, rec.ID, reviews, models.ProductInfo{Rating: 4.26}, m, nil))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.TotalReviews)
	assert.Equal(t, 1, got.FakeReviewCount)
	assert.Equal(t, GradeF, *got.Grade)
	require.NotNil(t, got.PageRating)
	assert.Equal(t, 4.26, *got.PageRating)
	stored, err := got.ReviewList()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "x", stored[0].ID)
}

func TestAsinStore_SaveReviewsStoresPageRating(t *testing.T) {
	store := NewAsinStore(newTestDB(t))
	ctx := context.Background()

	rec, err := store.FindOrCreate(ctx, "B000000001", "us", "")
	require.NoError(t, err)
	_, err = store.SaveReviews(ctx, rec.ID, testReviews, models.ProductInfo{Rating: 4.5})
	require.NoError(t, err)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PageRating)
	assert.Equal(t, 4.5, *got.PageRating)

	// 没有页面评分时不覆盖已有值
	_, err = store.SaveReviews(ctx, rec.ID, testReviews, models.ProductInfo{})
	require.NoError(t, err)
	got, err = store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.5, *got.PageRating)
}

func TestAsinStore_MarkFailedTruncatesByRune(t *testing.T) {
	store := NewAsinStore(newTestDB(t))
	ctx := context.Background()

	rec, err := store.FindOrCreate(ctx, "B000000001", "us", "")
	require.NoError(t, err)
	_, err = store.MarkFailed(ctx, rec.ID, strings.Repeat("服务不可用", 300))
	require.NoError(t, err)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got.ErrorMessage))
	assert.Equal(t, maxErrorChars+3, utf8.RuneCountInString(got.ErrorMessage))
	assert.True(t, strings.HasSuffix(got.ErrorMessage, "..."))
}

func TestAsinStore_MarkFailedAndStale(t *testing.T) {
	store := NewAsinStore(newTestDB(t))
	ctx := context.Background()

	rec, err := store.FindOrCreate(ctx, "B000000002", "us", "")
	require.NoError(t, err)

	ok, err := store.MarkProcessing(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := store.FailStale(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)

	ok, err = store.MarkFailed(ctx, rec.ID, "boom")
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "boom", got.ErrorMessage)
	assert.Equal(t, 1, got.AnalysisAttempts)
}

func TestAsinStore_ListCompletedOrder(t *testing.T) {
	store := NewAsinStore(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	for i, asin := range []string{"B000000001", "B000000002", "B000000003"} {
		created := base.Add(time.Duration(i) * time.Hour)
		store.now = func() time.Time { return created }
		completedRecord(t, store, asin)
	}
	// 重新分析最早的商品，排序不受影响
	store.now = func() time.Time { return base.Add(48 * time.Hour) }
	first, err := store.GetByKey(ctx, "B000000001", "us")
	require.NoError(t, err)
	require.NoError(t, store.MarkCompleted(ctx, first.ID, ComputeMetrics(testReviews, nil, 85), nil))

	list, total, err := store.ListCompleted(ctx, "", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 2)
	assert.Equal(t, "B000000003", list[0].ASIN)
	assert.Equal(t, "B000000002", list[1].ASIN)

	list, _, err = store.ListCompleted(ctx, "us", 2, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "B000000001", list[0].ASIN)
}

func TestAsinStore_RetryAndReanalysisQueries(t *testing.T) {
	store := NewAsinStore(newTestDB(t))
	ctx := context.Background()
	completedRecord(t, store, "B000000001")

	failed, err := store.FindOrCreate(ctx, "B000000002", "us", "")
	require.NoError(t, err)
	_, err = store.SaveReviews(ctx, failed.ID, testReviews, models.ProductInfo{})
	require.NoError(t, err)
	_, err = store.MarkFailed(ctx, failed.ID, "x")
	require.NoError(t, err)

	// 没有评论的失败记录不重试
	empty, err := store.FindOrCreate(ctx, "B000000003", "us", "")
	require.NoError(t, err)
	_, err = store.MarkFailed(ctx, empty.ID, "x")
	require.NoError(t, err)

	list, err := store.FailedForRetry(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, failed.ID, list[0].ID)

	list, err = store.FailedForRetry(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	ids, err := store.IDsForReanalysis(ctx, ReanalyzeFilter{})
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	ids, err = store.IDsForReanalysis(ctx, ReanalyzeFilter{Grade: GradeD})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestAsinStore_NotFound(t *testing.T) {
	store := NewAsinStore(newTestDB(t))
	_, err := store.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetByKey(context.Background(), "B000000009", "us")
	assert.ErrorIs(t, err, ErrNotFound)
}
