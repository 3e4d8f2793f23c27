package scraper

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"nullfake/config"
	"nullfake/models"

	"github.com/PuerkitoBio/goquery"
)

var ratingExpr = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)

// AmazonScraper 直接抓取亚马逊评论页
type AmazonScraper struct {
	client    *http.Client
	maxPages  int
	cookies   string
	userAgent string
	// baseURL 为空时按国家拼亚马逊域名，测试时指向本地服务
	baseURL string
}

func NewAmazonScraper(cfg config.DirectConfig) *AmazonScraper {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}
	return &AmazonScraper{
		client:    &http.Client{Timeout: timeout},
		maxPages:  maxPages,
		cookies:   cfg.Cookies,
		userAgent: cfg.UserAgent,
	}
}

// WithBaseURL 覆盖站点地址
func (s *AmazonScraper) WithBaseURL(baseURL string) *AmazonScraper {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

// Fetch 逐页抓取，某页没有新评论时停止
func (s *AmazonScraper) Fetch(ctx context.Context, ref *ProductRef) ([]models.Review, models.ProductInfo, error) {
	var (
		info    models.ProductInfo
		reviews []models.Review
		seen    = map[string]struct{}{}
	)

	for page := 1; page <= s.maxPages; page++ {
		doc, err := s.fetchDocument(ctx, s.pageURL(ref, page))
		if err != nil {
			if page == 1 {
				return nil, info, err
			}
			// 后续页失败时保留已抓到的
			break
		}
		if page == 1 {
			info = extractProductInfo(doc)
		}

		added := 0
		for _, r := range extractReviews(doc) {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			reviews = append(reviews, r)
			added++
		}
		if added == 0 {
			break
		}
	}
	return reviews, info, nil
}

func (s *AmazonScraper) pageURL(ref *ProductRef, page int) string {
	base := s.baseURL
	if base == "" {
		domain, ok := countryDomain[ref.Country]
		if !ok {
			domain = "com"
		}
		base = "https://www.amazon." + domain
	}
	return fmt.Sprintf("%s/product-reviews/%s/?reviewerType=all_reviews&sortBy=recent&pageNumber=%d", base, ref.ASIN, page)
}

func (s *AmazonScraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if s.cookies != "" {
		req.Header.Set("Cookie", s.cookies)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("amazon returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractReviews(doc *goquery.Document) []models.Review {
	var out []models.Review
	doc.Find(`[data-hook="review"]`).Each(func(i int, sel *goquery.Selection) {
		id, _ := sel.Attr("id")
		text := CleanText(sel.Find(`[data-hook="review-body"]`).Text())
		if id == "" || text == "" {
			return
		}

		title := sel.Find(`[data-hook="review-title"] span`).Last().Text()
		if strings.TrimSpace(title) == "" {
			title = sel.Find(`[data-hook="review-title"]`).Text()
		}
		stars := sel.Find(`[data-hook="review-star-rating"], [data-hook="cmps-review-star-rating"]`).First().Text()

		out = append(out, models.Review{
			ID:               id,
			Rating:           clampRating(parseRating(stars)),
			Title:            CleanText(title),
			Text:             text,
			Author:           CleanText(sel.Find(".a-profile-name").First().Text()),
			VerifiedPurchase: sel.Find(`[data-hook="avp-badge"]`).Length() > 0,
			Date:             CleanText(sel.Find(`[data-hook="review-date"]`).Text()),
		})
	})
	return out
}

func extractProductInfo(doc *goquery.Document) models.ProductInfo {
	info := models.ProductInfo{
		Title:  CleanText(doc.Find(`[data-hook="product-link"]`).First().Text()),
		Rating: parseRating(doc.Find(`[data-hook="rating-out-of-text"]`).First().Text()),
	}
	if src, ok := doc.Find(`[data-hook="cr-product-image"] img, img[data-hook="cr-product-image"]`).First().Attr("src"); ok {
		info.ImageURL = strings.TrimSpace(src)
	}
	return info
}

// parseRating 取 "4.5 out of 5 stars" / "4,5 von 5 Sternen" 中的第一个数
func parseRating(s string) float64 {
	m := ratingExpr.FindString(s)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return 0
	}
	return f
}
