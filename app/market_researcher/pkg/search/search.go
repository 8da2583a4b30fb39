package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/model"
)

// Searcher 定义通用的搜索接口
type Searcher interface {
	// SearchNews 返回新闻列表，最多 limit 条，保持服务端顺序
	SearchNews(ctx context.Context, query string, limit int) ([]model.NewsItem, error)
	// SearchAnalysis 返回通用搜索的完整响应体
	SearchAnalysis(ctx context.Context, query string) (model.AnalysisResult, error)
}

// Head 取前 n 条，n <= 0 时返回空列表
func Head(items []model.NewsItem, n int) []model.NewsItem {
	if n <= 0 {
		return []model.NewsItem{}
	}
	if len(items) > n {
		items = items[:n]
	}
	out := make([]model.NewsItem, len(items))
	copy(out, items)
	return out
}

// DecodeObject 把响应体解析为 JSON 对象，数字保留原始文本
func DecodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("unmarshal response failed: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("unmarshal response failed: body is not a JSON object")
	}
	return obj, nil
}

// ItemsField 读取对象中的数组字段，字段不存在时返回空列表
func ItemsField(obj map[string]any, field string) ([]model.NewsItem, error) {
	raw, ok := obj[field]
	if !ok || raw == nil {
		return []model.NewsItem{}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected %q field: want array, got %T", field, raw)
	}

	items := make([]model.NewsItem, 0, len(list))
	for i, v := range list {
		item, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected %s[%d]: want object, got %T", field, i, v)
		}
		items = append(items, item)
	}
	return items, nil
}
