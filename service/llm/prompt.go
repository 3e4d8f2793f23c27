package llm

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"nullfake/models"
)

const promptHeader = `You are an expert at detecting fake Amazon product reviews.
Score each review from 0 to 100 for how likely it is to be fake, incentivized or AI-generated
(0 = certainly genuine, 100 = certainly fake). Consider generic praise, lack of product specifics,
extreme sentiment, unverified purchases and repetitive phrasing.

Respond with ONLY a JSON array, no prose and no markdown:
[{"id":"<review id>","score":<0-100>}]

Reviews:
`

type promptReview struct {
	ID       string `json:"id"`
	Rating   int    `json:"rating"`
	Verified bool   `json:"verified"`
	Text     string `json:"text"`
}

// Truncate 按字符（rune）截断并追加 "..."
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

// BuildPrompt 生成评分提示词，每条评论正文截断到 maxChars
func BuildPrompt(reviews []models.Review, maxChars int) string {
	items := make([]promptReview, 0, len(reviews))
	for _, r := range reviews {
		text := r.Text
		if r.Title != "" {
			text = r.Title + ". " + text
		}
		items = append(items, promptReview{
			ID:       r.ID,
			Rating:   r.Rating,
			Verified: r.VerifiedPurchase,
			Text:     Truncate(text, maxChars),
		})
	}
	// 结构体序列化不会失败
	body, _ := json.Marshal(items)

	var b strings.Builder
	b.Grow(len(promptHeader) + len(body))
	b.WriteString(promptHeader)
	b.Write(body)
	return b.String()
}
