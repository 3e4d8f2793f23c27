package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Review 单条评论，抓取后不再修改
type Review struct {
	ID               string `json:"id"`
	Rating           int    `json:"rating"` // 1-5
	Title            string `json:"title,omitempty"`
	Text             string `json:"text"`
	Author           string `json:"author,omitempty"`
	VerifiedPurchase bool   `json:"verified_purchase"`
	Date             string `json:"date,omitempty"`
}

// ProductInfo 抓取时附带的商品信息
type ProductInfo struct {
	Title    string  `json:"title,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
	Rating   float64 `json:"rating,omitempty"` // 页面展示的官方评分
}

// EncodeReviews 序列化评论列表为 JSON 列
func EncodeReviews(reviews []Review) (datatypes.JSON, error) {
	if reviews == nil {
		reviews = []Review{}
	}
	b, err := json.Marshal(reviews)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// DecodeReviews 反序列化 JSON 列，空列返回空切片
func DecodeReviews(raw datatypes.JSON) ([]Review, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []Review{}, nil
	}
	var reviews []Review
	if err := json.Unmarshal(raw, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}
