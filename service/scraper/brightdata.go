package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nullfake/config"
	"nullfake/models"
)

// BrightData 任务状态
const (
	ProgressReady   = "ready"
	ProgressRunning = "running"
	ProgressFailed  = "failed"
)

// ErrScrapingJobFailed 远端抓取任务失败或超时
var ErrScrapingJobFailed = errors.New("scraping job failed")

// ScrapingJobFailedError 携带快照 ID 与原因
type ScrapingJobFailedError struct {
	SnapshotID string
	Reason     string
}

func (e *ScrapingJobFailedError) Error() string {
	if e.SnapshotID == "" {
		return "scraping job failed: " + e.Reason
	}
	return fmt.Sprintf("scraping job %s failed: %s", e.SnapshotID, e.Reason)
}

func (e *ScrapingJobFailedError) Is(target error) bool { return target == ErrScrapingJobFailed }

// BrightDataClient datasets v3 接口
type BrightDataClient struct {
	baseURL   string
	token     string
	datasetID string
	client    *http.Client
}

func NewBrightDataClient(cfg config.BrightDataConfig) *BrightDataClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &BrightDataClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.APIToken,
		datasetID: cfg.DatasetID,
		client:    &http.Client{Timeout: timeout},
	}
}

// Configured 是否配置了 token 与数据集
func (c *BrightDataClient) Configured() bool {
	return c.token != "" && c.datasetID != ""
}

// Trigger 提交抓取任务，返回 snapshot_id
func (c *BrightDataClient) Trigger(ctx context.Context, productURL string) (string, error) {
	payload, err := json.Marshal([]map[string]string{{"url": productURL}})
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("dataset_id", c.datasetID)
	q.Set("include_errors", "true")
	endpoint := c.baseURL + "/datasets/v3/trigger?" + q.Encode()

	var out struct {
		SnapshotID string `json:"snapshot_id"`
	}
	if err := c.do(ctx, http.MethodPost, endpoint, payload, &out); err != nil {
		return "", err
	}
	if out.SnapshotID == "" {
		return "", &ScrapingJobFailedError{Reason: "trigger returned no snapshot_id"}
	}
	return out.SnapshotID, nil
}

// Progress 查询任务进度，返回 ready / running / failed
func (c *BrightDataClient) Progress(ctx context.Context, snapshotID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	endpoint := c.baseURL + "/datasets/v3/progress/" + url.PathEscape(snapshotID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return "", err
	}
	switch strings.ToLower(out.Status) {
	case "ready":
		return ProgressReady, nil
	case "failed":
		return ProgressFailed, nil
	default:
		return ProgressRunning, nil
	}
}

// Snapshot 下载结果并规范化
func (c *BrightDataClient) Snapshot(ctx context.Context, snapshotID string) ([]models.Review, models.ProductInfo, error) {
	endpoint := c.baseURL + "/datasets/v3/snapshot/" + url.PathEscape(snapshotID) + "?format=json"
	var rows []map[string]any
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &rows); err != nil {
		return nil, models.ProductInfo{}, err
	}
	reviews, info := NormalizeRows(rows)
	return reviews, info, nil
}

func (c *BrightDataClient) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("请求 BrightData 失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("读取 BrightData 响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("BrightData 返回错误: %d, %s", resp.StatusCode, truncateBody(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析 BrightData 响应失败: %w", err)
	}
	return nil
}

// NormalizeRows 把数据集行转换为评论；带 error 字段的行跳过，按 ID 去重
func NormalizeRows(rows []map[string]any) ([]models.Review, models.ProductInfo) {
	var info models.ProductInfo
	reviews := make([]models.Review, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))

	for i, row := range rows {
		if _, bad := row["error"]; bad {
			continue
		}
		if info.Title == "" {
			info.Title = CleanText(str(row["product_name"]))
		}
		if info.Rating == 0 {
			info.Rating = num(row["product_rating"])
		}
		if info.ImageURL == "" {
			info.ImageURL = firstNonEmpty(str(row["product_image_url"]), str(row["image_url"]))
		}

		text := CleanText(str(row["review_text"]))
		if text == "" {
			continue
		}
		id := str(row["review_id"])
		if id == "" {
			id = "r" + strconv.Itoa(i+1)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		reviews = append(reviews, models.Review{
			ID:               id,
			Rating:           clampRating(num(row["rating"])),
			Title:            CleanText(str(row["review_header"])),
			Text:             text,
			Author:           CleanText(str(row["author_name"])),
			VerifiedPurchase: truthy(row["is_verified"]),
			Date:             str(row["review_posted_date"]),
		})
	}
	return reviews, info
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func num(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	}
	return 0
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	case float64:
		return t != 0
	}
	return false
}

func clampRating(r float64) int {
	n := int(r + 0.5)
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncateBody(b []byte) string {
	const limit = 300
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
