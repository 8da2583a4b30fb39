package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-shiori/go-readability"

	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/logger"
	dm "github.com/iWorld-y/market_researcher/app/market_researcher/pkg/model"
)

const truncatedMarker = "\n...[truncated]"

// ChatGenerator 报告生成依赖的模型能力，eino ChatModel 均满足
type ChatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// ArticleFetcher 抓取新闻原文正文
type ArticleFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ReadabilityFetcher 使用 go-readability 提取正文
type ReadabilityFetcher struct {
	Timeout time.Duration
}

// Fetch 抓取 URL 并提取核心文本
func (f ReadabilityFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	article, err := readability.FromURL(url, f.Timeout)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}

// Options 提示词预算
type Options struct {
	MaxSectionChars int // 新闻/分析两段各自的最大字符数
	ExcerptCount    int // comprehensive 模式下抓取的原文篇数
	ExcerptChars    int // 每篇原文摘录的最大字符数
}

// Synthesizer 把搜索结果组织成提示词并调用模型生成研究报告
type Synthesizer struct {
	cm      ChatGenerator
	fetcher ArticleFetcher
	opts    Options
}

// NewSynthesizer 创建报告生成器，fetcher 为空时不抓取原文
func NewSynthesizer(cm ChatGenerator, fetcher ArticleFetcher, opts Options) *Synthesizer {
	return &Synthesizer{cm: cm, fetcher: fetcher, opts: opts}
}

// Excerpt 新闻原文摘录
type Excerpt struct {
	Title string
	URL   string
	Text  string
}

// Synthesize 生成单个标的的研究报告，模型输出原样返回
func (s *Synthesizer) Synthesize(ctx context.Context, symbol string, news []dm.NewsItem, analysis dm.AnalysisResult, depth string) (string, error) {
	newsText, err := renderSection(news, s.opts.MaxSectionChars)
	if err != nil {
		return "", fmt.Errorf("render news: %w", err)
	}
	analysisText, err := renderSection(analysis, s.opts.MaxSectionChars)
	if err != nil {
		return "", fmt.Errorf("render analysis: %w", err)
	}

	var excerpts []Excerpt
	if depth == dm.DepthComprehensive {
		excerpts = s.collectExcerpts(ctx, symbol, news)
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: "You are a senior equity research analyst."},
		{Role: schema.User, Content: BuildPrompt(symbol, newsText, analysisText, excerpts)},
	}

	resp, err := s.cm.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate report for %s: %w", symbol, err)
	}
	if resp == nil {
		return "", fmt.Errorf("generate report for %s: empty response", symbol)
	}
	return resp.Content, nil
}

// BuildPrompt 固定模板：五部分研究报告
func BuildPrompt(symbol, newsText, analysisText string, excerpts []Excerpt) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Based on this information about %s:\n\n", symbol)
	fmt.Fprintf(&sb, "News:\n%s\n\n", newsText)
	fmt.Fprintf(&sb, "Market Analysis:\n%s\n\n", analysisText)

	if len(excerpts) > 0 {
		sb.WriteString("Article Excerpts:\n")
		for i, ex := range excerpts {
			fmt.Fprintf(&sb, "Article %d: %s (%s)\n%s\n\n", i+1, ex.Title, ex.URL, ex.Text)
		}
	}

	sb.WriteString(`Provide a detailed research report covering:
1. Key recent developments
2. Market trends
3. Competitive position
4. Industry outlook
5. Risks and opportunities
`)
	return sb.String()
}

func (s *Synthesizer) collectExcerpts(ctx context.Context, symbol string, news []dm.NewsItem) []Excerpt {
	if s.fetcher == nil || s.opts.ExcerptCount <= 0 {
		return nil
	}

	var excerpts []Excerpt
	for _, item := range news {
		if len(excerpts) >= s.opts.ExcerptCount || ctx.Err() != nil {
			break
		}
		link := stringField(item, "link", "url")
		if link == "" {
			continue
		}

		text, err := s.fetcher.Fetch(ctx, link)
		if err != nil {
			logger.Log.Warnf("原文抓取失败 [%s] %s: %v", symbol, link, err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		excerpts = append(excerpts, Excerpt{
			Title: stringField(item, "title"),
			URL:   link,
			Text:  truncate(text, s.opts.ExcerptChars),
		})
	}
	return excerpts
}

// renderSection 把原始 JSON 渲染为缩进文本并按预算截断
func renderSection(v any, limit int) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return truncate(string(data), limit), nil
}

// truncate 按字符数截断并追加标记，limit <= 0 表示不限制
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + truncatedMarker
}

func stringField(item dm.NewsItem, keys ...string) string {
	for _, k := range keys {
		if v, ok := item[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
