package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// ValidationError 商品链接或 ASIN 不合法
type ValidationError struct {
	Input   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid product url %q: %s", e.Input, e.Message)
}

// ProductRef 解析后的商品定位
type ProductRef struct {
	ASIN    string `json:"asin"`
	Country string `json:"country"`
	URL     string `json:"url"` // 规范化后的 /dp/ 链接
}

// 域名后缀 -> 国家代码
var domainCountry = map[string]string{
	"com":    "us",
	"co.uk":  "gb",
	"ca":     "ca",
	"de":     "de",
	"fr":     "fr",
	"it":     "it",
	"es":     "es",
	"co.jp":  "jp",
	"in":     "in",
	"com.au": "au",
	"com.mx": "mx",
	"com.br": "br",
	"nl":     "nl",
	"se":     "se",
	"pl":     "pl",
	"sg":     "sg",
	"ae":     "ae",
	"sa":     "sa",
	"com.tr": "tr",
	"eg":     "eg",
	"com.be": "be",
}

var countryDomain = func() map[string]string {
	m := make(map[string]string, len(domainCountry))
	for d, c := range domainCountry {
		m[c] = d
	}
	return m
}()

var shortHosts = map[string]bool{
	"a.co":      true,
	"amzn.to":   true,
	"amzn.eu":   true,
	"amzn.asia": true,
}

var (
	asinExpr     = regexp.MustCompile(`^[A-Z0-9]{10}$`)
	asinPathExpr = regexp.MustCompile(`(?i)/(?:dp|gp/product|product-reviews|gp/aw/d)/([A-Z0-9]{10})(?:[/?#]|$)`)
)

// ParseProductURL 接受 10 位 ASIN 或亚马逊商品链接，返回 ASIN 与国家
func ParseProductURL(raw string) (*ProductRef, error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return nil, &ValidationError{Input: raw, Message: "empty input"}
	}

	if asin := strings.ToUpper(input); asinExpr.MatchString(asin) {
		return NewProductRef(asin, "us"), nil
	}

	if !strings.Contains(input, "://") {
		input = "https://" + input
	}
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return nil, &ValidationError{Input: raw, Message: "not a url"}
	}

	host := strings.ToLower(u.Hostname())
	if shortHosts[host] {
		return nil, &ValidationError{Input: raw, Message: "short link must be resolved first"}
	}
	country, ok := countryForHost(host)
	if !ok {
		return nil, &ValidationError{Input: raw, Message: "unsupported amazon domain " + host}
	}

	m := asinPathExpr.FindStringSubmatch(u.EscapedPath())
	if m == nil {
		return nil, &ValidationError{Input: raw, Message: "no ASIN found in path"}
	}
	return NewProductRef(strings.ToUpper(m[1]), country), nil
}

// NewProductRef 由 ASIN 和国家生成规范链接
func NewProductRef(asin, country string) *ProductRef {
	domain, ok := countryDomain[country]
	if !ok {
		domain = "com"
	}
	return &ProductRef{
		ASIN:    asin,
		Country: country,
		URL:     fmt.Sprintf("https://www.amazon.%s/dp/%s", domain, asin),
	}
}

// SupportedCountry 是否为支持的国家代码
func SupportedCountry(country string) bool {
	_, ok := countryDomain[country]
	return ok
}

// IsShortLink 是否为亚马逊短链
func IsShortLink(raw string) bool {
	input := strings.TrimSpace(raw)
	if !strings.Contains(input, "://") {
		input = "https://" + input
	}
	u, err := url.Parse(input)
	if err != nil {
		return false
	}
	return shortHosts[strings.ToLower(u.Hostname())]
}

// ResolveProductURL 短链先跟随跳转拿到最终地址，再解析
func ResolveProductURL(ctx context.Context, client *http.Client, raw string) (*ProductRef, error) {
	if !IsShortLink(raw) {
		return ParseProductURL(raw)
	}

	target := strings.TrimSpace(raw)
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &ValidationError{Input: raw, Message: "not a url"}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &ValidationError{Input: raw, Message: "short link could not be resolved: " + err.Error()}
	}
	resp.Body.Close()

	final := resp.Request.URL.String()
	if IsShortLink(final) {
		return nil, &ValidationError{Input: raw, Message: "short link did not redirect to amazon"}
	}
	return ParseProductURL(final)
}

func countryForHost(host string) (string, bool) {
	for _, prefix := range []string{"www.", "smile.", "m."} {
		host = strings.TrimPrefix(host, prefix)
	}
	suffix, ok := strings.CutPrefix(host, "amazon.")
	if !ok {
		return "", false
	}
	country, ok := domainCountry[suffix]
	return country, ok
}
