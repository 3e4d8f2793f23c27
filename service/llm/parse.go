package llm

import (
	"encoding/json"
	"strconv"
	"strings"

	"nullfake/models"
)

// ParseScores 把模型输出解析为评分
//
// 先严格解析整段文本；失败时只做一次恢复：取第一个括号配平的 {...} 或 [...] 子串再解析。
// 接受的结构：
//
//	[{"id": "...", "score": 12}]
//	{"results": [...]} 或 {"scores": [...]}
//	{"detailed_scores": {"<id>": 12}}
//
// 分数截断到 [0,100]，不在输入中的 ID 丢弃；一个都对不上视为格式错误。
func ParseScores(provider, text string, reviews []models.Review) (Scores, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, invalidFormat(provider, "empty response", text)
	}

	var doc any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		candidate, ok := extractBalanced(trimmed)
		if !ok {
			return nil, invalidFormat(provider, "no complete JSON value found", text)
		}
		if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
			return nil, invalidFormat(provider, "malformed JSON: "+err.Error(), text)
		}
	}

	raw, ok := collectScores(doc)
	if !ok {
		return nil, invalidFormat(provider, "unexpected JSON shape", text)
	}

	known := make(map[string]struct{}, len(reviews))
	for _, r := range reviews {
		known[r.ID] = struct{}{}
	}
	scores := make(Scores, len(raw))
	for id, v := range raw {
		if _, ok := known[id]; !ok {
			continue
		}
		scores[id] = clampScore(v)
	}
	if len(scores) == 0 {
		return nil, invalidFormat(provider, "no scores matched the submitted review ids", text)
	}
	return scores, nil
}

func invalidFormat(provider, reason, text string) error {
	return &InvalidResponseFormatError{Provider: provider, Reason: reason, Snippet: Truncate(text, 200)}
}

func collectScores(doc any) (map[string]float64, bool) {
	switch v := doc.(type) {
	case []any:
		return scoresFromList(v)
	case map[string]any:
		for _, key := range []string{"results", "scores"} {
			if list, ok := v[key].([]any); ok {
				return scoresFromList(list)
			}
		}
		if detailed, ok := v["detailed_scores"].(map[string]any); ok {
			out := make(map[string]float64, len(detailed))
			for id, s := range detailed {
				f, ok := toFloat(s)
				if !ok {
					return nil, false
				}
				out[id] = f
			}
			return out, true
		}
	}
	return nil, false
}

func scoresFromList(list []any) (map[string]float64, bool) {
	out := make(map[string]float64, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		id, ok := toID(obj["id"])
		if !ok {
			return nil, false
		}
		score, ok := toFloat(obj["score"])
		if !ok {
			return nil, false
		}
		out[id] = score
	}
	return out, true
}

func toID(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// extractBalanced 返回第一个括号配平的 JSON 对象或数组，识别字符串和转义
func extractBalanced(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}

	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
