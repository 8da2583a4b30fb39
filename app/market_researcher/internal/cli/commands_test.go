package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/agentrun"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/config"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/engine"
	dm "github.com/iWorld-y/market_researcher/app/market_researcher/pkg/model"
)

type stubAnalyzer struct {
	cfg  *config.Config
	req  dm.ResearchRequest
	fail string
}

func (a *stubAnalyzer) Analyze(ctx context.Context, req dm.ResearchRequest) (*dm.ResearchResult, error) {
	a.req = req.Normalize()
	res := dm.NewResearchResult()
	var errs []error
	for _, s := range a.req.TickerSymbols {
		if s == a.fail {
			errs = append(errs, &engine.SymbolError{Symbol: s, Err: errors.New("boom")})
			continue
		}
		res.Set(s, &dm.SymbolReport{NewsSummary: []dm.NewsItem{}, ResearchReport: "REPORT"})
	}
	return res, errors.Join(errs...)
}

func newTestCmd(t *testing.T, a *stubAnalyzer, args ...string) (string, string, error) {
	t.Helper()
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SERPER_API_KEY", "serper-test")
	t.Setenv("NODE_URL", "http://node.local")

	o := &options{newEngine: func(ctx context.Context, cfg *config.Config) (agentrun.Analyzer, error) {
		a.cfg = cfg
		return a, nil
	}}
	cmd := newRootCmd(o)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestDefaultExample(t *testing.T) {
	a := &stubAnalyzer{}
	out, _, err := newTestCmd(t, a)
	require.NoError(t, err)

	assert.Contains(t, out, "OpenAI Key loaded: true")
	assert.Contains(t, out, "Serper API Key loaded: true")
	assert.Contains(t, out, `"AAPL"`)
	assert.Equal(t, []string{"AAPL"}, a.req.TickerSymbols)
	assert.Equal(t, 5, a.req.MaxNewsSources)
	assert.Equal(t, dm.DepthComprehensive, a.req.ResearchDepth)
}

func TestResearchCommand(t *testing.T) {
	a := &stubAnalyzer{fail: "MSFT"}
	out, errOut, err := newTestCmd(t, a, "research", "NVDA", "MSFT", "--max-news-sources=2", "--model=gpt-4o", "--temperature=0.3")
	require.NoError(t, err)

	assert.Equal(t, []string{"NVDA", "MSFT"}, a.req.TickerSymbols)
	assert.Equal(t, 2, a.req.MaxNewsSources)
	assert.Equal(t, "gpt-4o", a.cfg.LLM.Model)
	assert.InDelta(t, 0.3, a.cfg.LLM.Temperature, 1e-6)
	assert.Contains(t, out, `"NVDA"`)
	assert.Contains(t, errOut, "failed MSFT: boom")
}

func TestResearchCommandDeploymentFile(t *testing.T) {
	a := &stubAnalyzer{}
	dir := t.TempDir()
	path := filepath.Join(dir, "deployment.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"mr","config":{"llm_config":{"model":"gpt-4.1","temperature":0.7}}}`), 0o644))

	_, _, err := newTestCmd(t, a, "research", "AAPL", "--deployment", path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", a.cfg.LLM.Model)
	assert.InDelta(t, 0.7, a.cfg.LLM.Temperature, 1e-6)
}

func TestResearchCommandErrors(t *testing.T) {
	_, _, err := newTestCmd(t, &stubAnalyzer{}, "research")
	require.Error(t, err)

	_, _, err = newTestCmd(t, &stubAnalyzer{}, "research", "AAPL", "AAPL")
	require.ErrorIs(t, err, dm.ErrInvalidRequest)

	_, _, err = newTestCmd(t, &stubAnalyzer{fail: "AAPL"}, "research", "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "research failed")
}

func TestSchemaAndVersion(t *testing.T) {
	out, _, err := newTestCmd(t, &stubAnalyzer{}, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "ticker_symbols")
	assert.Contains(t, out, "tool_input_data")

	out, _, err = newTestCmd(t, &stubAnalyzer{}, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "market-researcher "))
}
