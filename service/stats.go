package service

import (
	"context"

	"nullfake/models"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
)

// StatsService 后台统计
type StatsService struct {
	db *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// GradeCount 每个评级的商品数
type GradeCount struct {
	Grade string `json:"grade"`
	Total int64  `json:"total"`
}

// StatusCount 每个状态的商品数
type StatusCount struct {
	Status string `json:"status"`
	Total  int64  `json:"total"`
}

// Overview 统计概览
type Overview struct {
	TotalProducts     int64         `json:"total_products"`
	AvgFakePercentage float64       `json:"avg_fake_percentage"`
	Statuses          []StatusCount `json:"statuses"`
	Grades            []GradeCount  `json:"grades"`
}

// Overview 状态分布、评级分布和平均假评论占比
func (s *StatsService) Overview(ctx context.Context) (*Overview, error) {
	var out Overview

	statusSQL, statusArgs, err := sq.Select("status", "COUNT(*) AS total").
		From("asin_data").
		GroupBy("status").
		OrderBy("status").
		ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Raw(statusSQL, statusArgs...).Scan(&out.Statuses).Error; err != nil {
		return nil, err
	}
	for _, sc := range out.Statuses {
		out.TotalProducts += sc.Total
	}

	grades, err := s.GradeDistribution(ctx)
	if err != nil {
		return nil, err
	}
	out.Grades = grades

	avgSQL, avgArgs, err := sq.Select("COALESCE(AVG(fake_percentage), 0)").
		From("asin_data").
		Where(sq.Eq{"status": models.StatusCompleted}).
		ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Raw(avgSQL, avgArgs...).Row().Scan(&out.AvgFakePercentage); err != nil {
		return nil, err
	}
	out.AvgFakePercentage = round(out.AvgFakePercentage, 1)
	return &out, nil
}

// GradeDistribution 已完成商品的评级分布
func (s *StatsService) GradeDistribution(ctx context.Context) ([]GradeCount, error) {
	query, args, err := sq.Select("grade", "COUNT(*) AS total").
		From("asin_data").
		Where(sq.Eq{"status": models.StatusCompleted}).
		Where(sq.NotEq{"grade": nil}).
		GroupBy("grade").
		OrderBy("grade").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []GradeCount
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
