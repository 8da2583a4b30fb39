package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	// DefaultMaxNewsSources 未指定时每个标的保留的新闻条数
	DefaultMaxNewsSources = 5
	// DepthBrief 只使用搜索结果生成报告
	DepthBrief = "brief"
	// DepthComprehensive 额外抓取新闻原文摘录
	DepthComprehensive = "comprehensive"
)

// ErrInvalidRequest 请求参数不合法
var ErrInvalidRequest = errors.New("invalid research request")

// ResearchRequest 一次研究请求
type ResearchRequest struct {
	TickerSymbols  []string `json:"ticker_symbols" jsonschema:"required,minItems=1,description=Ticker symbols to research in order"`
	MaxNewsSources int      `json:"max_news_sources,omitempty" jsonschema:"minimum=1,default=5,description=Number of news items kept per symbol"`
	ResearchDepth  string   `json:"research_depth,omitempty" jsonschema:"default=brief,description=brief or comprehensive"`
}

// Normalize 填充默认值
func (r ResearchRequest) Normalize() ResearchRequest {
	out := r
	out.TickerSymbols = append([]string(nil), r.TickerSymbols...)
	if out.MaxNewsSources == 0 {
		out.MaxNewsSources = DefaultMaxNewsSources
	}
	if out.ResearchDepth == "" {
		out.ResearchDepth = DepthBrief
	}
	return out
}

// Validate 校验请求，所有错误都可以用 errors.Is(err, ErrInvalidRequest) 判断
func (r ResearchRequest) Validate() error {
	if len(r.TickerSymbols) == 0 {
		return fmt.Errorf("%w: ticker_symbols is empty", ErrInvalidRequest)
	}
	if r.MaxNewsSources < 0 {
		return fmt.Errorf("%w: max_news_sources must be positive, got %d", ErrInvalidRequest, r.MaxNewsSources)
	}

	seen := make(map[string]struct{}, len(r.TickerSymbols))
	for i, s := range r.TickerSymbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: ticker_symbols[%d] is blank", ErrInvalidRequest, i)
		}
		if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
			return fmt.Errorf("%w: ticker symbol %q contains whitespace", ErrInvalidRequest, s)
		}
		if _, ok := seen[s]; ok {
			return fmt.Errorf("%w: duplicate ticker symbol %q", ErrInvalidRequest, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// NewsItem 搜索服务返回的单条新闻，结构不做校验
type NewsItem = map[string]any

// AnalysisResult 通用搜索返回的完整响应体
type AnalysisResult = map[string]any

// SymbolReport 单个标的的研究结果
type SymbolReport struct {
	NewsSummary    []NewsItem     `json:"news_summary"`
	MarketAnalysis AnalysisResult `json:"market_analysis"`
	ResearchReport string         `json:"research_report"`
}

// ResearchResult 标的 -> 报告，保持请求中的顺序
type ResearchResult struct {
	reports *orderedmap.OrderedMap[string, *SymbolReport]
}

// NewResearchResult 创建空结果
func NewResearchResult() *ResearchResult {
	return &ResearchResult{reports: orderedmap.New[string, *SymbolReport]()}
}

// Set 写入一个标的的报告
func (r *ResearchResult) Set(symbol string, report *SymbolReport) {
	r.reports.Set(symbol, report)
}

// Get 按标的读取报告
func (r *ResearchResult) Get(symbol string) (*SymbolReport, bool) {
	return r.reports.Get(symbol)
}

// Len 已完成的标的数量
func (r *ResearchResult) Len() int {
	return r.reports.Len()
}

// Symbols 按插入顺序返回标的
func (r *ResearchResult) Symbols() []string {
	symbols := make([]string, 0, r.reports.Len())
	for pair := r.reports.Oldest(); pair != nil; pair = pair.Next() {
		symbols = append(symbols, pair.Key)
	}
	return symbols
}

// MarshalJSON 按插入顺序输出 JSON 对象
func (r *ResearchResult) MarshalJSON() ([]byte, error) {
	return r.reports.MarshalJSON()
}

// UnmarshalJSON 保留 JSON 中的键顺序
func (r *ResearchResult) UnmarshalJSON(data []byte) error {
	if r.reports == nil {
		r.reports = orderedmap.New[string, *SymbolReport]()
	}
	return r.reports.UnmarshalJSON(data)
}
