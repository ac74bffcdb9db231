// Package app provides the application initialization and lifecycle management
package app

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/prtwin/internal/apply"
	"github.com/tildaslashalef/prtwin/internal/config"
	"github.com/tildaslashalef/prtwin/internal/derive"
	"github.com/tildaslashalef/prtwin/internal/github"
	"github.com/tildaslashalef/prtwin/internal/llm"
	"github.com/tildaslashalef/prtwin/internal/loggy"
	"github.com/tildaslashalef/prtwin/internal/pipeline"
)

// App represents the application instance with its dependencies
type App struct {
	Config   *config.Config
	GitHub   *github.Service
	Pipeline *pipeline.Service
	Cost     *llm.Tracker
}

// New initializes a new application instance with all its dependencies
func New() (*App, error) {
	cfg, err := initConfig()
	if err != nil {
		return nil, err
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	loggy.Info("Application initializing",
		"provider", cfg.DefaultLLMProvider,
		"log_level", cfg.Logging.Level,
	)

	app, err := initServices(cfg)
	if err != nil {
		return nil, err
	}

	loggy.Info("Application initialized successfully")
	return app, nil
}

// initConfig loads and sets up the application configuration
func initConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv("", "")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	config.Set(cfg)
	return cfg, nil
}

// initLogger initializes the logging system
func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initServices initializes all application services
func initServices(cfg *config.Config) (*App, error) {
	logger := loggy.GetGlobalLogger()

	githubService, err := github.NewService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GitHub client: %w", err)
	}

	llmClient, llmType, err := initLLMClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	loggy.Info("Initialized LLM client", "type", llmType)

	// Every LLM call flows through the cost tracker so the CLI can
	// report cumulative spend at the end of a run
	cost := llm.NewTracker()
	llmClient = llm.WithTracker(llmClient, cost)

	deriveService := derive.NewService(llmClient, cfg, logger)
	applier := apply.NewApplier(llmClient, cfg, logger)

	pipelineService := pipeline.NewService(
		githubService,
		deriveService,
		applier,
		cost,
		cfg,
		logger,
	)

	return &App{
		Config:   cfg,
		GitHub:   githubService,
		Pipeline: pipelineService,
		Cost:     cost,
	}, nil
}

// initLLMClient initializes the LLM client
func initLLMClient(cfg *config.Config, logger *loggy.Logger) (llm.Client, llm.ClientType, error) {
	llmFactory := llm.NewFactory(cfg, logger)
	return llmFactory.GetDefaultClient()
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown() error {
	loggy.Info("Shutting down application")
	return nil
}

// FromContext retrieves the App instance from the CLI context
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	app, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return app, nil
}
