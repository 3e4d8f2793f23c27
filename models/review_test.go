package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestDecodeReviews_Empty(t *testing.T) {
	for _, raw := range []datatypes.JSON{nil, datatypes.JSON("null"), datatypes.JSON("")} {
		reviews, err := DecodeReviews(raw)
		require.NoError(t, err)
		assert.NotNil(t, reviews)
		assert.Empty(t, reviews)
	}
}

func TestEncodeReviews_NilBecomesArray(t *testing.T) {
	raw, err := EncodeReviews(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestDecodeReviews_Invalid(t *testing.T) {
	_, err := DecodeReviews(datatypes.JSON(`{"not":"a list"}`))
	assert.Error(t, err)
}

func TestAsinData_IsProtected(t *testing.T) {
	grade := "B"
	pct := 15.0

	a := &AsinData{Status: StatusCompleted, Grade: &grade, FakePercentage: &pct}
	assert.True(t, a.IsProtected())

	// 缺少 grade 不算受保护
	b := &AsinData{Status: StatusCompleted, FakePercentage: &pct}
	assert.False(t, b.IsProtected())

	c := &AsinData{Status: StatusProcessing, Grade: &grade, FakePercentage: &pct}
	assert.False(t, c.IsProtected())
}

func TestAnalysisSession_IsFinished(t *testing.T) {
	assert.True(t, (&AnalysisSession{Status: StatusCompleted}).IsFinished())
	assert.True(t, (&AnalysisSession{Status: StatusFailed}).IsFinished())
	assert.False(t, (&AnalysisSession{Status: StatusProcessing}).IsFinished())
}
