package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/google/uuid"

	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/config"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/logger"
	dm "github.com/iWorld-y/market_researcher/app/market_researcher/pkg/model"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/report"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/search"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/search/factory"
)

// Synthesizer 报告生成接口
type Synthesizer interface {
	Synthesize(ctx context.Context, symbol string, news []dm.NewsItem, analysis dm.AnalysisResult, depth string) (string, error)
}

// SymbolError 单个标的的失败
type SymbolError struct {
	Symbol string
	Err    error
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("research %s: %v", e.Symbol, e.Err)
}

func (e *SymbolError) Unwrap() error {
	return e.Err
}

// SymbolErrors 从 Analyze 返回的错误中取出所有单标的失败
func SymbolErrors(err error) []*SymbolError {
	if err == nil {
		return nil
	}
	var out []*SymbolError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, SymbolErrors(e)...)
		}
		return out
	}
	var se *SymbolError
	if errors.As(err, &se) {
		out = append(out, se)
	}
	return out
}

// ProgressFunc 每完成（或失败）一个标的回调一次
type ProgressFunc func(symbol string, done, total int)

// Engine 研究流程编排：逐个标的 搜索新闻 -> 搜索分析 -> 生成报告
type Engine struct {
	searcher    search.Searcher
	synthesizer Synthesizer
	failFast    bool
	progress    ProgressFunc
}

// Option 引擎选项
type Option func(*Engine)

// WithFailFast 任一标的失败即终止整个请求
func WithFailFast(failFast bool) Option {
	return func(e *Engine) { e.failFast = failFast }
}

// WithProgress 设置进度回调
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// New 使用给定依赖创建引擎
func New(searcher search.Searcher, synthesizer Synthesizer, opts ...Option) *Engine {
	e := &Engine{searcher: searcher, synthesizer: synthesizer}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewEngine 根据配置创建引擎，配置先经过校验
func NewEngine(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	temperature := cfg.LLM.Temperature
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: &temperature,
		Timeout:     cfg.LLMTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}

	searcher, err := factory.NewSearcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("搜索客户端初始化失败: %w", err)
	}

	synthesizer := report.NewSynthesizer(chatModel,
		report.ReadabilityFetcher{Timeout: cfg.ExcerptTimeout()},
		report.Options{
			MaxSectionChars: cfg.Research.MaxSectionChars,
			ExcerptCount:    cfg.Research.ExcerptCount,
			ExcerptChars:    cfg.Research.ExcerptChars,
		})

	opts = append([]Option{WithFailFast(cfg.Research.FailurePolicy == config.PolicyFailFast)}, opts...)
	return New(searcher, synthesizer, opts...), nil
}

// Analyze 按请求顺序研究每个标的。
//
// fail-fast 模式下第一个失败直接返回 (nil, err)，已完成的标的一并丢弃；
// 否则失败的标的记录为 *SymbolError，返回部分结果和 errors.Join 后的错误。
// ctx 取消时两种模式都立即返回。
func (e *Engine) Analyze(ctx context.Context, req dm.ResearchRequest) (*dm.ResearchResult, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	log := logger.WithRun(uuid.NewString())
	log.Infof("开始研究 %d 个标的: %v", len(req.TickerSymbols), req.TickerSymbols)

	results := dm.NewResearchResult()
	var errs []error
	total := len(req.TickerSymbols)

	for i, symbol := range req.TickerSymbols {
		if err := ctx.Err(); err != nil {
			log.Errorf("Research failed: %v", err)
			return nil, err
		}

		rep, err := e.researchCompany(ctx, symbol, req)
		if err != nil {
			log.Errorf("Research failed [%s]: %v", symbol, err)
			symErr := &SymbolError{Symbol: symbol, Err: err}
			if e.failFast || ctx.Err() != nil {
				return nil, symErr
			}
			errs = append(errs, symErr)
		} else {
			results.Set(symbol, rep)
			log.Infof("标的 [%s] 处理完成 (news: %d)", symbol, len(rep.NewsSummary))
		}

		if e.progress != nil {
			e.progress(symbol, i+1, total)
		}
	}

	return results, errors.Join(errs...)
}

func (e *Engine) researchCompany(ctx context.Context, symbol string, req dm.ResearchRequest) (*dm.SymbolReport, error) {
	news, err := e.searcher.SearchNews(ctx, symbol+" stock news latest developments", req.MaxNewsSources)
	if err != nil {
		return nil, fmt.Errorf("search news: %w", err)
	}

	analysis, err := e.searcher.SearchAnalysis(ctx, symbol+" market analysis industry trends competitors")
	if err != nil {
		return nil, fmt.Errorf("search analysis: %w", err)
	}

	text, err := e.synthesizer.Synthesize(ctx, symbol, news, analysis, req.ResearchDepth)
	if err != nil {
		return nil, err
	}

	return &dm.SymbolReport{
		NewsSummary:    news,
		MarketAnalysis: analysis,
		ResearchReport: text,
	}, nil
}
