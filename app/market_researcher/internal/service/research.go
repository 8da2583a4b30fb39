package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/agentrun"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/config"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/engine"
	dm "github.com/iWorld-y/market_researcher/app/market_researcher/pkg/model"
)

const (
	OperationRun      = "/market_researcher.v1.Research/Run"
	OperationResearch = "/market_researcher.v1.Research/Research"
)

// Runner 执行运行描述
type Runner interface {
	Run(ctx context.Context, run *agentrun.AgentRun) (*dm.ResearchResult, error)
}

// SymbolFailure 单个标的的失败信息
type SymbolFailure struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// RunReply 运行结果；best_effort 模式下可能同时包含结果和失败列表
type RunReply struct {
	Result *dm.ResearchResult `json:"result"`
	Errors []SymbolFailure    `json:"errors,omitempty"`
}

type ResearchService struct {
	runner     Runner
	deployment agentrun.Deployment
	log        *log.Helper
}

// NewResearchService deployment 用于 /v1/research 这种不带部署描述的请求
func NewResearchService(runner Runner, deployment agentrun.Deployment, logger log.Logger) *ResearchService {
	return &ResearchService{
		runner:     runner,
		deployment: deployment,
		log:        log.NewHelper(logger),
	}
}

// Run POST /v1/run，请求体为完整的运行描述
func (s *ResearchService) Run(ctx http.Context) error {
	http.SetOperation(ctx, OperationRun)
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return kerrors.BadRequest("INVALID_REQUEST", err.Error())
	}
	run, err := agentrun.Parse(body)
	if err != nil {
		return toStatus(err)
	}
	return s.execute(ctx, run)
}

// Research POST /v1/research，请求体为 ResearchRequest，使用服务默认的部署设置
func (s *ResearchService) Research(ctx http.Context) error {
	http.SetOperation(ctx, OperationResearch)
	var req dm.ResearchRequest
	if err := json.NewDecoder(ctx.Request().Body).Decode(&req); err != nil {
		return kerrors.BadRequest("INVALID_REQUEST", err.Error())
	}
	run := agentrun.NewAgentRun(req, s.deployment)
	if err := run.Validate(); err != nil {
		return toStatus(err)
	}
	return s.execute(ctx, run)
}

// Schema GET /v1/schema
func (s *ResearchService) Schema(ctx http.Context) error {
	return ctx.JSON(nethttp.StatusOK, agentrun.InputSchema())
}

// Health GET /healthz
func (s *ResearchService) Health(ctx http.Context) error {
	return ctx.JSON(nethttp.StatusOK, map[string]string{"status": "ok"})
}

func (s *ResearchService) execute(ctx http.Context, run *agentrun.AgentRun) error {
	h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
		return s.runner.Run(c, req.(*agentrun.AgentRun))
	})
	out, err := h(ctx, run)

	var result *dm.ResearchResult
	if out != nil {
		result, _ = out.(*dm.ResearchResult)
	}
	if err != nil && (result == nil || result.Len() == 0) {
		s.log.Errorf("research failed: %v", err)
		return toStatus(err)
	}

	reply := &RunReply{Result: result}
	for _, se := range engine.SymbolErrors(err) {
		reply.Errors = append(reply.Errors, SymbolFailure{Symbol: se.Symbol, Error: se.Err.Error()})
	}
	if len(reply.Errors) > 0 {
		s.log.Warnf("research finished with %d failed symbols", len(reply.Errors))
	}
	return ctx.JSON(nethttp.StatusOK, reply)
}

// toStatus 把领域错误映射为 HTTP 状态
func toStatus(err error) error {
	switch {
	case errors.Is(err, dm.ErrInvalidRequest):
		return kerrors.BadRequest("INVALID_REQUEST", err.Error())
	case errors.Is(err, config.ErrMissingCredential), errors.Is(err, config.ErrInvalidConfig):
		return kerrors.InternalServer("CONFIG_ERROR", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return kerrors.GatewayTimeout("UPSTREAM_TIMEOUT", err.Error())
	case errors.Is(err, context.Canceled):
		return kerrors.ClientClosed("CANCELED", err.Error())
	default:
		return kerrors.New(nethttp.StatusBadGateway, "UPSTREAM_FAILED", err.Error())
	}
}
