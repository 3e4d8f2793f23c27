package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"nullfake/models"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "分析结果"

var exportHeaders = []string{"ID", "ASIN", "国家", "商品名称", "评级", "假评论占比(%)", "亚马逊评分", "调整后评分", "评论数", "假评论数", "状态", "首次分析", "最近分析"}

// ExportFilter 导出条件
type ExportFilter struct {
	Status  string
	Country string
	Limit   int
}

// ExportExcel 导出分析结果为 xlsx
func (s *AsinStore) ExportExcel(ctx context.Context, w io.Writer, f ExportFilter) (int, error) {
	q := s.db.WithContext(ctx).Model(&models.AsinData{}).Omit("reviews", "llm_result")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Country != "" {
		q = q.Where("country = ?", f.Country)
	}
	limit := f.Limit
	if limit <= 0 || limit > 10000 {
		limit = 10000
	}
	var list []models.AsinData
	if err := q.Order("first_analyzed_at DESC").Order("id DESC").Limit(limit).Find(&list).Error; err != nil {
		return 0, err
	}

	file := excelize.NewFile()
	defer file.Close()
	if err := file.SetSheetName("Sheet1", exportSheet); err != nil {
		return 0, err
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
	headerStyle, _ := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	dataStyle, _ := file.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})

	_ = file.SetColWidth(exportSheet, "A", "C", 12)
	_ = file.SetColWidth(exportSheet, "D", "D", 40)
	_ = file.SetColWidth(exportSheet, "E", "K", 14)
	_ = file.SetColWidth(exportSheet, "L", "M", 20)

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = file.SetCellValue(exportSheet, cell, header)
		_ = file.SetCellStyle(exportSheet, cell, cell, headerStyle)
	}

	for i, rec := range list {
		row := i + 2
		values := []any{
			rec.ID,
			rec.ASIN,
			rec.Country,
			rec.ProductTitle,
			strOrEmpty(rec.Grade),
			floatOrEmpty(rec.FakePercentage),
			floatOrEmpty(rec.AmazonRating),
			floatOrEmpty(rec.AdjustedRating),
			rec.TotalReviews,
			rec.FakeReviewCount,
			rec.Status,
			timeOrEmpty(rec.FirstAnalyzedAt),
			timeOrEmpty(rec.LastAnalyzedAt),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = file.SetCellValue(exportSheet, cell, v)
		}
		last, _ := excelize.CoordinatesToCellName(len(values), row)
		_ = file.SetCellStyle(exportSheet, fmt.Sprintf("A%d", row), last, dataStyle)
	}

	if err := file.Write(w); err != nil {
		return 0, fmt.Errorf("生成 Excel 失败: %w", err)
	}
	return len(list), nil
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func floatOrEmpty(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
