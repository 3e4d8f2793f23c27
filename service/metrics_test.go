package service

import (
	"testing"

	"nullfake/models"
	"nullfake/service/llm"

	"github.com/stretchr/testify/assert"
)

func TestGrade_Boundaries(t *testing.T) {
	cases := map[float64]string{
		0:    GradeA,
		8:    GradeA,
		8.1:  GradeB,
		15:   GradeB,
		20:   GradeB,
		20.1: GradeC,
		40:   GradeC,
		40.1: GradeD,
		65:   GradeD,
		65.1: GradeF,
		100:  GradeF,
	}
	for pct, want := range cases {
		assert.Equal(t, want, Grade(pct), "pct=%v", pct)
	}
}

func TestComputeMetrics_ExcludesFakeFromAdjusted(t *testing.T) {
	reviews := []models.Review{{ID: "a", Rating: 5}, {ID: "b", Rating: 1}}
	scores := llm.Scores{"a": 20, "b": 90}

	m := ComputeMetrics(reviews, scores, 85)
	assert.Equal(t, 2, m.TotalReviews)
	assert.Equal(t, 1, m.FakeReviewCount)
	assert.Equal(t, 50.0, m.FakePercentage)
	assert.Equal(t, GradeD, m.Grade)
	assert.Equal(t, 3.0, m.AmazonRating)
	assert.Equal(t, 5.0, m.AdjustedRating)
}

func TestComputeMetrics_CutoffIsInclusive(t *testing.T) {
	reviews := []models.Review{{ID: "a", Rating: 4}, {ID: "b", Rating: 2}}
	m := ComputeMetrics(reviews, llm.Scores{"a": 85, "b": 84.9}, 85)
	assert.Equal(t, 1, m.FakeReviewCount)
	assert.Equal(t, 2.0, m.AdjustedRating)
}

func TestComputeMetrics_UnscoredCountAsGenuine(t *testing.T) {
	reviews := []models.Review{{ID: "a", Rating: 5}, {ID: "b", Rating: 4}, {ID: "c", Rating: 1}}
	m := ComputeMetrics(reviews, llm.Scores{"c": 99}, 85)
	assert.Equal(t, 33.3, m.FakePercentage)
	assert.Equal(t, GradeC, m.Grade)
	assert.Equal(t, 3.33, m.AmazonRating)
	assert.Equal(t, 4.5, m.AdjustedRating)
}

func TestComputeMetrics_AllFake(t *testing.T) {
	reviews := []models.Review{{ID: "a", Rating: 5}}
	m := ComputeMetrics(reviews, llm.Scores{"a": 100}, 85)
	assert.Equal(t, 100.0, m.FakePercentage)
	assert.Equal(t, GradeF, m.Grade)
	assert.Equal(t, 0.0, m.AdjustedRating)
}

func TestComputeMetrics_NoReviews(t *testing.T) {
	m := ComputeMetrics(nil, nil, 85)
	assert.Equal(t, GradeUnanalyzable, m.Grade)
	assert.Zero(t, m.TotalReviews)
}

func TestComputeMetrics_Idempotent(t *testing.T) {
	reviews := []models.Review{{ID: "a", Rating: 5}, {ID: "b", Rating: 3}, {ID: "c", Rating: 2}}
	scores := llm.Scores{"a": 10, "b": 88, "c": 40}
	assert.Equal(t, ComputeMetrics(reviews, scores, 85), ComputeMetrics(reviews, scores, 85))
}

func TestComputeMetrics_DefaultCutoff(t *testing.T) {
	reviews := []models.Review{{ID: "a", Rating: 5}}
	m := ComputeMetrics(reviews, llm.Scores{"a": 86}, 0)
	assert.Equal(t, 1, m.FakeReviewCount)
}
