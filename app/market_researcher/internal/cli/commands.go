package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/agentrun"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/config"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/engine"
	"github.com/iWorld-y/market_researcher/app/market_researcher/pkg/logger"
	dm "github.com/iWorld-y/market_researcher/app/market_researcher/pkg/model"
)

// Version 通过 -ldflags "-X .../internal/cli.Version=x.y.z" 注入
var Version = "dev"

type options struct {
	configPath string
	logLevel   string
	newEngine  agentrun.EngineFactory
}

// NewRootCmd 创建命令行入口
func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{})
}

func newRootCmd(o *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "market-researcher",
		Short: "Market research reports for ticker symbols",
		Long: `market-researcher searches recent news and market analysis for each ticker symbol
and asks an LLM for a structured research report.

Without a subcommand it runs the built-in example (AAPL, 5 sources, comprehensive).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExample(cmd, o)
		},
	}

	rootCmd.AddCommand(newResearchCmd(o))
	rootCmd.AddCommand(newSchemaCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&o.configPath, "config", "", "Configuration file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	return rootCmd
}

func newResearchCmd(o *options) *cobra.Command {
	var (
		maxNews        int
		depth          string
		model          string
		temperature    float64
		deploymentPath string
	)

	cmd := &cobra.Command{
		Use:   "research SYMBOL...",
		Short: "Research one or more ticker symbols",
		Long: `Research one or more ticker symbols in the given order.
Example: market-researcher research AAPL MSFT --max-news-sources=3 --depth=comprehensive`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deployment, err := loadDeployment(deploymentPath)
			if err != nil {
				return err
			}
			if deployment.Config.LLMConfig == nil {
				deployment.Config.LLMConfig = &agentrun.LLMConfig{}
			}
			if model != "" {
				deployment.Config.LLMConfig.Model = model
			}
			if cmd.Flags().Changed("temperature") {
				deployment.Config.LLMConfig.Temperature = &temperature
			}

			req := dm.ResearchRequest{
				TickerSymbols:  args,
				MaxNewsSources: maxNews,
				ResearchDepth:  depth,
			}
			return runResearch(cmd, o, agentrun.NewAgentRun(req, deployment))
		},
	}

	cmd.Flags().IntVar(&maxNews, "max-news-sources", dm.DefaultMaxNewsSources, "Maximum news items per symbol")
	cmd.Flags().StringVar(&depth, "depth", dm.DepthBrief, "Research depth (brief, comprehensive)")
	cmd.Flags().StringVar(&model, "model", "", "LLM model override")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "LLM temperature override")
	cmd.Flags().StringVar(&deploymentPath, "deployment", "", "Deployment JSON file")

	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the run inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), agentrun.InputSchema())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "market-researcher %s\n", Version)
		},
	}
}

// runExample 内置示例，与无参数启动的行为一致
func runExample(cmd *cobra.Command, o *options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "OpenAI Key loaded: %t\n", cfg.LLM.APIKey != "")
	fmt.Fprintf(out, "Serper API Key loaded: %t\n", cfg.Search.Serper.APIKey != "")
	logger.Log.Infof("NODE_URL: %s", cfg.NodeURL)

	req := dm.ResearchRequest{
		TickerSymbols:  []string{"AAPL"},
		MaxNewsSources: 5,
		ResearchDepth:  dm.DepthComprehensive,
	}
	return execute(cmd, o, cfg, agentrun.NewAgentRun(req, agentrun.Deployment{Name: "market_researcher"}))
}

func runResearch(cmd *cobra.Command, o *options, run *agentrun.AgentRun) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	return execute(cmd, o, cfg, run)
}

func execute(cmd *cobra.Command, o *options, cfg *config.Config, run *agentrun.AgentRun) error {
	newEngine := o.newEngine
	if newEngine == nil {
		newEngine = func(ctx context.Context, cfg *config.Config) (agentrun.Analyzer, error) {
			return engine.NewEngine(ctx, cfg, engine.WithProgress(func(symbol string, done, total int) {
				logger.Log.Infof("进度 %d/%d: %s", done, total, symbol)
			}))
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := agentrun.NewRunner(cfg, newEngine).Run(ctx, run)
	if err != nil && (result == nil || result.Len() == 0) {
		return fmt.Errorf("research failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Market Research Results:")
	fmt.Fprintln(out, "=========================")
	if werr := writeJSON(out, result); werr != nil {
		return werr
	}

	for _, se := range engine.SymbolErrors(err) {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed %s: %v\n", se.Symbol, se.Err)
	}
	return nil
}

func loadConfig(o *options) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

// loadDeployment 读取部署描述文件，路径为空时返回空描述
func loadDeployment(path string) (agentrun.Deployment, error) {
	var d agentrun.Deployment
	if path == "" {
		return d, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("read deployment: %w", err)
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("parse deployment %s: %w", path, err)
	}
	return d, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
