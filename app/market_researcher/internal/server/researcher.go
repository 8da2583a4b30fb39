package server

import (
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/market_researcher/app/market_researcher/internal/conf"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/agentrun"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/config"
	mrLogger "github.com/iWorld-y/market_researcher/app/market_researcher/pkg/logger"
)

// NewResearchConfig 将 conf.Research 转换为 pkg/config.Config，未配置的字段保留默认值
func NewResearchConfig(c *conf.Research) *config.Config {
	cfg := config.Default()
	if c == nil {
		return cfg
	}

	if l := c.Llm; l != nil {
		setString(&cfg.LLM.BaseURL, l.BaseUrl)
		setString(&cfg.LLM.APIKey, l.ApiKey)
		setString(&cfg.LLM.Model, l.Model)
		cfg.LLM.Temperature = l.Temperature
		setInt(&cfg.LLM.Timeout, l.Timeout)
	}
	if s := c.Search; s != nil {
		setString(&cfg.Search.Provider, s.Provider)
		setInt(&cfg.Search.Timeout, s.Timeout)
		if s.Serper != nil {
			setString(&cfg.Search.Serper.APIKey, s.Serper.ApiKey)
			setString(&cfg.Search.Serper.BaseURL, s.Serper.BaseUrl)
		}
		if s.Tavily != nil {
			setString(&cfg.Search.Tavily.APIKey, s.Tavily.ApiKey)
			setString(&cfg.Search.Tavily.BaseURL, s.Tavily.BaseUrl)
		}
	}
	if p := c.Pipeline; p != nil {
		setString(&cfg.Research.FailurePolicy, p.FailurePolicy)
		setInt(&cfg.Research.MaxSectionChars, p.MaxSectionChars)
		setInt(&cfg.Research.ExcerptCount, p.ExcerptCount)
		setInt(&cfg.Research.ExcerptChars, p.ExcerptChars)
		setInt(&cfg.Research.ExcerptTimeout, p.ExcerptTimeout)
	}
	if lg := c.Log; lg != nil {
		setString(&cfg.Log.Level, lg.Level)
		setString(&cfg.Log.File, lg.File)
	}
	return cfg
}

// NewRunner 初始化研究引擎入口，配置在启动时校验
func NewRunner(c *conf.Research, logger log.Logger) (*agentrun.Runner, agentrun.Deployment, error) {
	cfg := NewResearchConfig(c)
	cfg.LoadEnv()

	if err := mrLogger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.NewHelper(logger).Errorf("Failed to init research logger: %v", err)
		_ = mrLogger.InitLogger("info", "")
	}

	if err := cfg.Validate(); err != nil {
		log.NewHelper(logger).Errorf("Invalid research config: %v", err)
		return nil, agentrun.Deployment{}, err
	}

	temperature := float64(cfg.LLM.Temperature)
	deployment := agentrun.Deployment{
		Name: "market_researcher",
		Config: agentrun.DeploymentConfig{
			LLMConfig: &agentrun.LLMConfig{Model: cfg.LLM.Model, Temperature: &temperature},
		},
	}
	return agentrun.NewRunner(cfg, nil), deployment, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int32) {
	if v != 0 {
		*dst = int(v)
	}
}
