package serper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/model"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/search"
)

const defaultBaseURL = "https://google.serper.dev"

// Client Serper API 客户端
type Client struct {
	client *resty.Client
}

// NewClient 创建一个新的 Serper 客户端，timeout 为单次请求超时
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeaders(Headers(apiKey))
	return &Client{client: client}
}

// Headers Serper 请求头
func Headers(apiKey string) map[string]string {
	return map[string]string{
		"X-API-KEY":    apiKey,
		"Content-Type": "application/json",
	}
}

// Ensure Client implements search.Searcher
var _ search.Searcher = (*Client)(nil)

// SearchRequest Serper 请求体
type SearchRequest struct {
	Q string `json:"q"`
}

// SearchNews 调用 /news，返回 news 字段的前 limit 条
func (c *Client) SearchNews(ctx context.Context, query string, limit int) ([]model.NewsItem, error) {
	body, err := c.post(ctx, "/news", query)
	if err != nil {
		return nil, err
	}
	items, err := search.ItemsField(body, "news")
	if err != nil {
		return nil, fmt.Errorf("serper news: %w", err)
	}
	return search.Head(items, limit), nil
}

// SearchAnalysis 调用 /search，原样返回响应体
func (c *Client) SearchAnalysis(ctx context.Context, query string) (model.AnalysisResult, error) {
	return c.post(ctx, "/search", query)
}

func (c *Client) post(ctx context.Context, path, query string) (map[string]any, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(SearchRequest{Q: query}).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("serper request %s failed: %w", path, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("serper api error (status %d): %s", res.StatusCode(), res.String())
	}

	obj, err := search.DecodeObject(res.Body())
	if err != nil {
		return nil, fmt.Errorf("serper %s: %w", path, err)
	}
	return obj, nil
}
