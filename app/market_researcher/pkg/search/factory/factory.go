package factory

import (
	"fmt"

	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/config"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/search"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/serper"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/tavily"
)

// NewSearcher 根据配置创建搜索实例
func NewSearcher(cfg *config.Config) (search.Searcher, error) {
	timeout := cfg.SearchTimeout()

	switch cfg.Search.Provider {
	case config.ProviderSerper, "":
		if cfg.Search.Serper.APIKey == "" {
			return nil, fmt.Errorf("%w: serper api key is missing", config.ErrMissingCredential)
		}
		return serper.NewClient(cfg.Search.Serper.APIKey, cfg.Search.Serper.BaseURL, timeout), nil

	case config.ProviderTavily:
		if cfg.Search.Tavily.APIKey == "" {
			return nil, fmt.Errorf("%w: tavily api key is missing", config.ErrMissingCredential)
		}
		return tavily.NewClient(cfg.Search.Tavily.APIKey, cfg.Search.Tavily.BaseURL, timeout), nil

	default:
		return nil, fmt.Errorf("%w: unknown search provider: %s", config.ErrInvalidConfig, cfg.Search.Provider)
	}
}
