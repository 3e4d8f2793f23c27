package service

import "errors"

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrNoReviewsAvailable 抓取或提交的评论为空
	ErrNoReviewsAvailable = errors.New("no reviews available")
	// ErrAnalysisInProgress 同一商品正在分析
	ErrAnalysisInProgress = errors.New("analysis already in progress")
)
