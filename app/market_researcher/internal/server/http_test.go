package server

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/market_researcher/app/market_researcher/internal/conf"
	"github.com/iWorld-y/market_researcher/app/market_researcher/internal/service"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/agentrun"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/config"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/engine"
	dm "github.com/iWorld-y/market_researcher/app/market_researcher/pkg/model"
)

// stubRunner 对 fail 中的标的返回 SymbolError
type stubRunner struct {
	fail map[string]bool
	err  error
	got  *agentrun.AgentRun
}

func (r *stubRunner) Run(ctx context.Context, run *agentrun.AgentRun) (*dm.ResearchResult, error) {
	r.got = run
	if r.err != nil {
		return nil, r.err
	}
	res := dm.NewResearchResult()
	var errs []error
	for _, s := range run.Inputs.ToolInputData.TickerSymbols {
		if r.fail[s] {
			errs = append(errs, &engine.SymbolError{Symbol: s, Err: errors.New("llm down")})
			continue
		}
		res.Set(s, &dm.SymbolReport{NewsSummary: []dm.NewsItem{}, ResearchReport: "REPORT " + s})
	}
	return res, errors.Join(errs...)
}

func newTestServer(r service.Runner) nethttp.Handler {
	temp := 0.1
	svc := service.NewResearchService(r, agentrun.Deployment{
		Config: agentrun.DeploymentConfig{LLMConfig: &agentrun.LLMConfig{Model: "gpt-4o", Temperature: &temp}},
	}, log.DefaultLogger)
	return NewHTTPServer(&conf.Server{Http: &conf.HTTP{Addr: "127.0.0.1:0"}}, svc, log.DefaultLogger)
}

func do(t *testing.T, h nethttp.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRunEndpoint(t *testing.T) {
	runner := &stubRunner{}
	h := newTestServer(runner)

	rec := do(t, h, nethttp.MethodPost, "/v1/run",
		`{"inputs":{"tool_name":"analyze","tool_input_data":{"ticker_symbols":["MSFT","AAPL"]}},"deployment":{"config":{"llm_config":{"model":"gpt-4o-mini"}}}}`)
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())

	body := rec.Body.String()
	assert.Less(t, strings.Index(body, `"MSFT"`), strings.Index(body, `"AAPL"`))
	assert.NotContains(t, body, `"errors"`)
	assert.Equal(t, "gpt-4o-mini", runner.got.Deployment.Config.LLMConfig.Model)
	assert.Equal(t, 5, runner.got.Inputs.ToolInputData.MaxNewsSources)
}

func TestRunEndpointPartialFailure(t *testing.T) {
	h := newTestServer(&stubRunner{fail: map[string]bool{"AAPL": true}})

	rec := do(t, h, nethttp.MethodPost, "/v1/run",
		`{"inputs":{"tool_input_data":{"ticker_symbols":["AAPL","MSFT"]}}}`)
	require.Equal(t, nethttp.StatusOK, rec.Code)

	var reply struct {
		Result map[string]dm.SymbolReport `json:"result"`
		Errors []service.SymbolFailure    `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Contains(t, reply.Result, "MSFT")
	assert.NotContains(t, reply.Result, "AAPL")
	require.Len(t, reply.Errors, 1)
	assert.Equal(t, "AAPL", reply.Errors[0].Symbol)
	assert.Equal(t, "llm down", reply.Errors[0].Error)
}

func TestRunEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		runner *stubRunner
		body   string
		code   int
	}{
		{"malformed", &stubRunner{}, `{"inputs": "AAPL"}`, nethttp.StatusBadRequest},
		{"all failed", &stubRunner{fail: map[string]bool{"AAPL": true}}, `{"inputs":{"tool_input_data":{"ticker_symbols":["AAPL"]}}}`, nethttp.StatusBadGateway},
		{"config", &stubRunner{err: config.ErrMissingCredential}, `{"inputs":{"tool_input_data":{"ticker_symbols":["AAPL"]}}}`, nethttp.StatusInternalServerError},
		{"timeout", &stubRunner{err: context.DeadlineExceeded}, `{"inputs":{"tool_input_data":{"ticker_symbols":["AAPL"]}}}`, nethttp.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(tt.runner), nethttp.MethodPost, "/v1/run", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestResearchEndpointUsesDefaultDeployment(t *testing.T) {
	runner := &stubRunner{}
	h := newTestServer(runner)

	rec := do(t, h, nethttp.MethodPost, "/v1/research", `{"ticker_symbols":["NVDA"],"max_news_sources":3,"research_depth":"comprehensive"}`)
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "gpt-4o", runner.got.Deployment.Config.LLMConfig.Model)
	assert.Equal(t, dm.DepthComprehensive, runner.got.Inputs.ToolInputData.ResearchDepth)

	rec = do(t, h, nethttp.MethodPost, "/v1/research", `{"ticker_symbols":[]}`)
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
}

func TestSchemaAndHealth(t *testing.T) {
	h := newTestServer(&stubRunner{})

	rec := do(t, h, nethttp.MethodGet, "/v1/schema", "")
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ticker_symbols")

	rec = do(t, h, nethttp.MethodGet, "/healthz", "")
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNewResearchConfig(t *testing.T) {
	cfg := NewResearchConfig(&conf.Research{
		Llm:      &conf.LLM{Model: "gpt-4o", Temperature: 0.5},
		Search:   &conf.Search{Provider: "tavily", Tavily: &conf.Tavily{ApiKey: "t"}},
		Pipeline: &conf.Pipeline{FailurePolicy: config.PolicyFailFast, MaxSectionChars: 500},
	})
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.InDelta(t, 0.5, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, config.ProviderTavily, cfg.Search.Provider)
	assert.Equal(t, "t", cfg.Search.Tavily.APIKey)
	assert.Equal(t, config.PolicyFailFast, cfg.Research.FailurePolicy)
	assert.Equal(t, 500, cfg.Research.MaxSectionChars)
	assert.Equal(t, 2000, cfg.Research.ExcerptChars)
	assert.Equal(t, 30, cfg.Search.Timeout)

	assert.Equal(t, config.Default(), NewResearchConfig(nil))
}
