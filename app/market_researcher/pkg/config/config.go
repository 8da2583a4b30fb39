package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderSerper = "serper"
	ProviderTavily = "tavily"

	PolicyFailFast   = "fail_fast"
	PolicyBestEffort = "best_effort"
)

var (
	// ErrMissingCredential 缺少 API Key
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidConfig 配置值不合法
	ErrInvalidConfig = errors.New("invalid config")
)

// Config 项目配置结构体
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Search   SearchConfig   `yaml:"search"`
	Research ResearchConfig `yaml:"research"`
	Log      LogConfig      `yaml:"log"`
	NodeURL  string         `yaml:"node_url"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	Timeout     int     `yaml:"timeout"` // 秒
}

// SearchConfig 搜索相关配置
type SearchConfig struct {
	Provider string       `yaml:"provider"`
	Timeout  int          `yaml:"timeout"` // 秒
	Serper   SerperConfig `yaml:"serper"`
	Tavily   TavilyConfig `yaml:"tavily"`
}

// SerperConfig Serper 配置
type SerperConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ResearchConfig 研究流程配置
type ResearchConfig struct {
	FailurePolicy   string `yaml:"failure_policy"`
	MaxSectionChars int    `yaml:"max_section_chars"`
	ExcerptCount    int    `yaml:"excerpt_count"`
	ExcerptChars    int    `yaml:"excerpt_chars"`
	ExcerptTimeout  int    `yaml:"excerpt_timeout"` // 秒
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0,
			Timeout:     120,
		},
		Search: SearchConfig{
			Provider: ProviderSerper,
			Timeout:  30,
			Serper:   SerperConfig{BaseURL: "https://google.serper.dev"},
			Tavily:   TavilyConfig{BaseURL: "https://api.tavily.com"},
		},
		Research: ResearchConfig{
			FailurePolicy:   PolicyBestEffort,
			MaxSectionChars: 12000,
			ExcerptCount:    3,
			ExcerptChars:    2000,
			ExcerptTimeout:  30,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig 从指定路径加载配置，未出现的字段保留默认值
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Load 依次应用配置文件、.env 和进程环境变量
func Load(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.LoadEnv()
	return cfg, nil
}

// LoadEnv 加载 .env 后用进程环境变量覆盖配置
func (c *Config) LoadEnv() {
	// .env 不存在是正常情况
	_ = godotenv.Load()
	c.ApplyEnv(os.Getenv)
}

// ApplyEnv 用环境变量覆盖配置
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := getenv("OPENAI_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := getenv("SERPER_API_KEY"); v != "" {
		c.Search.Serper.APIKey = v
	}
	if v := getenv("TAVILY_API_KEY"); v != "" {
		c.Search.Tavily.APIKey = v
	}
	if v := getenv("NODE_URL"); v != "" {
		c.NodeURL = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// ApplyDeployment 应用运行描述中的模型设置，空值不覆盖
func (c *Config) ApplyDeployment(model string, temperature *float64) {
	if model != "" {
		c.LLM.Model = model
	}
	if temperature != nil {
		c.LLM.Temperature = float32(*temperature)
	}
}

// Clone 返回副本，单次运行的覆盖不影响共享配置
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Validate 在发起任何网络请求之前检查配置
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrMissingCredential)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("%w: llm model is empty", ErrInvalidConfig)
	}

	switch c.Search.Provider {
	case ProviderSerper:
		if c.Search.Serper.APIKey == "" {
			return fmt.Errorf("%w: SERPER_API_KEY is not set", ErrMissingCredential)
		}
	case ProviderTavily:
		if c.Search.Tavily.APIKey == "" {
			return fmt.Errorf("%w: TAVILY_API_KEY is not set", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("%w: unknown search provider %q", ErrInvalidConfig, c.Search.Provider)
	}

	switch c.Research.FailurePolicy {
	case PolicyFailFast, PolicyBestEffort:
	default:
		return fmt.Errorf("%w: unknown failure policy %q", ErrInvalidConfig, c.Research.FailurePolicy)
	}

	if c.Research.MaxSectionChars <= 0 {
		return fmt.Errorf("%w: research.max_section_chars must be positive", ErrInvalidConfig)
	}
	if c.Research.ExcerptCount < 0 || c.Research.ExcerptChars < 0 {
		return fmt.Errorf("%w: research excerpt limits must not be negative", ErrInvalidConfig)
	}
	if c.LLM.Timeout < 0 || c.Search.Timeout < 0 || c.Research.ExcerptTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LLMTimeout LLM 单次调用超时
func (c *Config) LLMTimeout() time.Duration {
	return seconds(c.LLM.Timeout, 120)
}

// SearchTimeout 搜索单次调用超时
func (c *Config) SearchTimeout() time.Duration {
	return seconds(c.Search.Timeout, 30)
}

// ExcerptTimeout 原文抓取超时
func (c *Config) ExcerptTimeout() time.Duration {
	return seconds(c.Research.ExcerptTimeout, 30)
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}
