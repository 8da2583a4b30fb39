package tavily

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/model"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/search"
)

const defaultBaseURL = "https://api.tavily.com"

// Client Tavily API 客户端
type Client struct {
	client *resty.Client
}

// NewClient 创建一个新的 Tavily 客户端
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")
	return &Client{client: client}
}

// Ensure Client implements search.Searcher
var _ search.Searcher = (*Client)(nil)

// SearchRequest Tavily 搜索请求参数
type SearchRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth,omitempty"` // basic or advanced
	Topic       string `json:"topic,omitempty"`        // general or news
	MaxResults  int    `json:"max_results,omitempty"`
}

// SearchNews topic=news，返回 results 字段的前 limit 条
func (c *Client) SearchNews(ctx context.Context, query string, limit int) ([]model.NewsItem, error) {
	body, err := c.doSearch(ctx, SearchRequest{Query: query, Topic: "news", MaxResults: limit})
	if err != nil {
		return nil, err
	}
	items, err := search.ItemsField(body, "results")
	if err != nil {
		return nil, fmt.Errorf("tavily news: %w", err)
	}
	return search.Head(items, limit), nil
}

// SearchAnalysis topic=general，原样返回响应体
func (c *Client) SearchAnalysis(ctx context.Context, query string) (model.AnalysisResult, error) {
	return c.doSearch(ctx, SearchRequest{Query: query, Topic: "general"})
}

func (c *Client) doSearch(ctx context.Context, req SearchRequest) (map[string]any, error) {
	if req.SearchDepth == "" {
		req.SearchDepth = "basic"
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 5
	}

	res, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("tavily api error (status %d): %s", res.StatusCode(), res.String())
	}

	obj, err := search.DecodeObject(res.Body())
	if err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}
	return obj, nil
}
