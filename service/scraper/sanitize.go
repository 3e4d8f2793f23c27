package scraper

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	breakTags    = strings.NewReplacer("<br>", " ", "<br/>", " ", "<br />", " ", "</p>", " ")
)

// CleanText 去掉所有 HTML 标签并压缩空白
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	// bluemonday 会转义实体，这里还原成普通文本
	out := html.UnescapeString(strictPolicy.Sanitize(breakTags.Replace(s)))
	return strings.Join(strings.Fields(out), " ")
}
