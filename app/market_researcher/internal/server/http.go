package server

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/market_researcher/app/market_researcher/internal/conf"
	"github.com/iWorld-y/market_researcher/app/market_researcher/internal/service"
)

const defaultTimeout = 10 * time.Minute

// NewHTTPServer 注册研究服务的路由
func NewHTTPServer(c *conf.Server, s *service.ResearchService, logger log.Logger) *http.Server {
	// kratos 默认 1s 超时，一次研究包含多次 LLM 调用
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
		http.Timeout(defaultTimeout),
	}
	if c != nil && c.Http != nil {
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout != "" {
			if d, err := time.ParseDuration(c.Http.Timeout); err == nil {
				opts = append(opts, http.Timeout(d))
			}
		}
	}

	srv := http.NewServer(opts...)
	log.NewHelper(logger).Infof("research routes: /v1/run /v1/research /v1/schema /healthz")

	r := srv.Route("/")
	r.POST("/v1/run", s.Run)
	r.POST("/v1/research", s.Research)
	r.GET("/v1/schema", s.Schema)
	r.GET("/healthz", s.Health)

	return srv
}
