// Package agentrun adapts an agent run descriptor into a research request
// and executes it.
package agentrun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/config"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/engine"
	dm "github.com/iWorld-y/market_researcher/app/market_researcher/pkg/model"
)

// DefaultToolName 唯一支持的工具
const DefaultToolName = "analyze"

// LLMConfig 部署描述中的模型设置
type LLMConfig struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// DeploymentConfig deployment.config
type DeploymentConfig struct {
	LLMConfig *LLMConfig `json:"llm_config,omitempty"`
}

// Deployment 部署描述
type Deployment struct {
	Name   string           `json:"name,omitempty"`
	Config DeploymentConfig `json:"config"`
}

// Inputs 工具调用输入
type Inputs struct {
	ToolName      string             `json:"tool_name" jsonschema:"required,enum=analyze"`
	ToolInputData dm.ResearchRequest `json:"tool_input_data" jsonschema:"required"`
}

// AgentRun 一次运行的完整描述
type AgentRun struct {
	Inputs     Inputs     `json:"inputs"`
	Deployment Deployment `json:"deployment"`
	ConsumerID string     `json:"consumer_id,omitempty"`
}

// NewAgentRun 由已构造好的请求创建运行描述
func NewAgentRun(req dm.ResearchRequest, deployment Deployment) *AgentRun {
	return &AgentRun{
		Inputs:     Inputs{ToolName: DefaultToolName, ToolInputData: req},
		Deployment: deployment,
	}
}

// Parse 解析并校验运行描述，inputs 必须是符合 schema 的 JSON 对象
func Parse(data []byte) (*AgentRun, error) {
	var raw struct {
		Inputs     json.RawMessage `json:"inputs"`
		Deployment json.RawMessage `json:"deployment"`
		ConsumerID string          `json:"consumer_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode run: %v", dm.ErrInvalidRequest, err)
	}

	trimmed := bytes.TrimSpace(raw.Inputs)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: inputs must be a JSON object", dm.ErrInvalidRequest)
	}

	run := &AgentRun{ConsumerID: raw.ConsumerID}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&run.Inputs); err != nil {
		return nil, fmt.Errorf("%w: decode inputs: %v", dm.ErrInvalidRequest, err)
	}

	if len(bytes.TrimSpace(raw.Deployment)) > 0 {
		if err := json.Unmarshal(raw.Deployment, &run.Deployment); err != nil {
			return nil, fmt.Errorf("%w: decode deployment: %v", dm.ErrInvalidRequest, err)
		}
	}

	if err := run.Validate(); err != nil {
		return nil, err
	}
	return run, nil
}

// Validate 校验工具名和研究请求，并填充默认值
func (r *AgentRun) Validate() error {
	if r.Inputs.ToolName == "" {
		r.Inputs.ToolName = DefaultToolName
	}
	if r.Inputs.ToolName != DefaultToolName {
		return fmt.Errorf("%w: unsupported tool %q", dm.ErrInvalidRequest, r.Inputs.ToolName)
	}
	r.Inputs.ToolInputData = r.Inputs.ToolInputData.Normalize()
	return r.Inputs.ToolInputData.Validate()
}

// Analyzer 执行研究请求
type Analyzer interface {
	Analyze(ctx context.Context, req dm.ResearchRequest) (*dm.ResearchResult, error)
}

// EngineFactory 根据单次运行的配置创建 Analyzer
type EngineFactory func(ctx context.Context, cfg *config.Config) (Analyzer, error)

// Runner 运行入口：合并部署设置，创建引擎并执行
type Runner struct {
	base      *config.Config
	newEngine EngineFactory
}

// NewRunner 创建运行入口，newEngine 为空时使用 engine.NewEngine
func NewRunner(base *config.Config, newEngine EngineFactory) *Runner {
	if newEngine == nil {
		newEngine = func(ctx context.Context, cfg *config.Config) (Analyzer, error) {
			return engine.NewEngine(ctx, cfg)
		}
	}
	return &Runner{base: base, newEngine: newEngine}
}

// Config 返回合并部署设置后的配置（已校验）
func (r *Runner) Config(run *AgentRun) (*config.Config, error) {
	cfg := r.base.Clone()
	if llm := run.Deployment.Config.LLMConfig; llm != nil {
		cfg.ApplyDeployment(llm.Model, llm.Temperature)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Run 执行一次运行描述
func (r *Runner) Run(ctx context.Context, run *AgentRun) (*dm.ResearchResult, error) {
	if err := run.Validate(); err != nil {
		return nil, err
	}
	cfg, err := r.Config(run)
	if err != nil {
		return nil, err
	}
	eng, err := r.newEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return eng.Analyze(ctx, run.Inputs.ToolInputData)
}

// InputSchema inputs 的 JSON Schema
func InputSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true}
	return r.Reflect(&Inputs{})
}
