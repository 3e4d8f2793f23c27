package service

import (
	"math"

	"nullfake/models"
	"nullfake/service/llm"
)

// 评级
const (
	GradeA            = "A"
	GradeB            = "B"
	GradeC            = "C"
	GradeD            = "D"
	GradeF            = "F"
	GradeUnanalyzable = "U"
)

// DefaultFakeThreshold 单条评论评分达到该值即视为假评论
const DefaultFakeThreshold = 85.0

// 评级区间（上界闭合），所有调用方都通过 Grade 计算，不要在别处重复
var gradeBands = []struct {
	max   float64
	grade string
}{
	{8, GradeA},
	{20, GradeB},
	{40, GradeC},
	{65, GradeD},
}

// Grade 假评论占比 -> 评级：A≤8，B≤20，C≤40，D≤65，其余 F
func Grade(fakePercentage float64) string {
	for _, band := range gradeBands {
		if fakePercentage <= band.max {
			return band.grade
		}
	}
	return GradeF
}

// Metrics 一次分析的汇总结果
type Metrics struct {
	TotalReviews    int     `json:"total_reviews"`
	FakeReviewCount int     `json:"fake_review_count"`
	FakePercentage  float64 `json:"fake_percentage"`
	Grade           string  `json:"grade"`
	AmazonRating    float64 `json:"amazon_rating"`
	AdjustedRating  float64 `json:"adjusted_rating"`
}

// ComputeMetrics 纯函数：评分 ≥ cutoff 的评论算作假评论，没有评分的按真实评论处理
func ComputeMetrics(reviews []models.Review, scores llm.Scores, cutoff float64) Metrics {
	if cutoff <= 0 {
		cutoff = DefaultFakeThreshold
	}
	if len(reviews) == 0 {
		return Metrics{Grade: GradeUnanalyzable}
	}

	var (
		fake               int
		ratingSum, keptSum float64
		kept               int
	)
	for _, r := range reviews {
		ratingSum += float64(r.Rating)
		if score, ok := scores[r.ID]; ok && score >= cutoff {
			fake++
			continue
		}
		keptSum += float64(r.Rating)
		kept++
	}

	total := len(reviews)
	pct := round(float64(fake)/float64(total)*100, 1)
	m := Metrics{
		TotalReviews:    total,
		FakeReviewCount: fake,
		FakePercentage:  pct,
		Grade:           Grade(pct),
		AmazonRating:    round(ratingSum/float64(total), 2),
	}
	if kept > 0 {
		m.AdjustedRating = round(keptSum/float64(kept), 2)
	}
	return m
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
