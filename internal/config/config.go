// Package config handles configuration loading and management for dispatch.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/dispatch/internal/decompose"
	"github.com/ShayCichocki/dispatch/internal/diagnostic"
	"github.com/ShayCichocki/dispatch/internal/refine"
	"github.com/ShayCichocki/dispatch/internal/routing"
	"github.com/ShayCichocki/dispatch/pkg/models"
)

// ProjectConfigName is the project-level config file searched for upwards
// from the working directory.
const ProjectConfigName = ".dispatch.yaml"

// Config holds all configuration for dispatch.
type Config struct {
	Anthropic     AnthropicConfig     `mapstructure:"anthropic"`
	Budget        models.BudgetLimits `mapstructure:"budget"`
	Routing       RoutingConfig       `mapstructure:"routing"`
	Decomposition DecompositionConfig `mapstructure:"decomposition"`
	Refinement    RefinementConfig    `mapstructure:"refinement"`
	Diagnostics   DiagnosticsConfig   `mapstructure:"diagnostics"`
	Contracts     ContractsConfig     `mapstructure:"contracts"`
	Execution     ExecutionConfig     `mapstructure:"execution"`
	State         StateConfig         `mapstructure:"state"`
}

// AnthropicConfig holds generation service settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
	// PlannerModel is the model used for estimation and decomposition.
	PlannerModel string `mapstructure:"planner_model"`
}

// RoutingConfig holds routing policy settings.
type RoutingConfig struct {
	HardStopProposer     string                   `mapstructure:"hard_stop_proposer"`
	SecurityKeywords     []string                 `mapstructure:"security_keywords"`
	ArchitectureKeywords []string                 `mapstructure:"architecture_keywords"`
	KeywordsFile         string                   `mapstructure:"keywords_file"`
	Proposers            []models.ProposerProfile `mapstructure:"proposers"`
}

// DecompositionConfig holds the tuned decomposition constants.
type DecompositionConfig struct {
	BatchThreshold        int     `mapstructure:"batch_threshold"`
	MaxTasksPerBatch      int     `mapstructure:"max_tasks_per_batch"`
	DefaultBatchSize      int     `mapstructure:"default_batch_size"`
	MinTasks              int     `mapstructure:"min_tasks"`
	MaxTasks              int     `mapstructure:"max_tasks"`
	ContextUnitsPerDollar float64 `mapstructure:"context_units_per_dollar"`
	CostVarianceTolerance float64 `mapstructure:"cost_variance_tolerance"`
}

// RefinementConfig holds refinement loop settings.
type RefinementConfig struct {
	MaxCycles               int     `mapstructure:"max_cycles"`
	LowImprovementThreshold float64 `mapstructure:"low_improvement_threshold"`
}

// DiagnosticsConfig holds the external checker settings.
type DiagnosticsConfig struct {
	Command       []string      `mapstructure:"command"`
	FileExtension string        `mapstructure:"file_extension"`
	Timeout       time.Duration `mapstructure:"timeout"`
	CacheSize     int           `mapstructure:"cache_size"`
}

// ContractsConfig holds contract checking settings.
type ContractsConfig struct {
	OpenAPIFile string `mapstructure:"openapi_file"`
}

// ExecutionConfig holds orchestrator settings.
type ExecutionConfig struct {
	MaxParallel int `mapstructure:"max_parallel"`
	MaxAttempts int `mapstructure:"max_attempts"`
}

// StateConfig holds persistence settings.
type StateConfig struct {
	// DBPath overrides the project database location.
	DBPath string `mapstructure:"db_path"`
}

// DecomposeOptions converts the decomposition section to decompose.Options.
func (c *Config) DecomposeOptions() decompose.Options {
	d := c.Decomposition
	return decompose.Options{
		BatchThreshold:        d.BatchThreshold,
		MaxTasksPerBatch:      d.MaxTasksPerBatch,
		DefaultBatchSize:      d.DefaultBatchSize,
		MinTasks:              d.MinTasks,
		MaxTasks:              d.MaxTasks,
		ContextUnitsPerDollar: d.ContextUnitsPerDollar,
		CostVarianceTolerance: d.CostVarianceTolerance,
	}
}

// Validate checks the configuration for mistakes.
func (c *Config) Validate() error {
	if err := c.Budget.Validate(); err != nil {
		return fmt.Errorf("budget: %w", err)
	}
	if err := routing.ValidateProposers(c.Routing.Proposers); err != nil {
		return fmt.Errorf("routing: %w", err)
	}
	if c.Refinement.MaxCycles < 1 {
		return fmt.Errorf("refinement: max_cycles must be at least 1")
	}
	if t := c.Refinement.LowImprovementThreshold; t < 0 || t > 1 {
		return fmt.Errorf("refinement: low_improvement_threshold %.2f outside [0,1]", t)
	}
	if c.Execution.MaxParallel < 1 {
		return fmt.Errorf("execution: max_parallel must be at least 1")
	}
	if c.Execution.MaxAttempts < 1 {
		return fmt.Errorf("execution: max_attempts must be at least 1")
	}
	if len(c.Diagnostics.Command) == 0 {
		return fmt.Errorf("diagnostics: command is required")
	}
	return nil
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, DISPATCH_*)
// 2. Project config (.dispatch.yaml in current directory or parent)
// 3. User config (~/.config/dispatch/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY", "DISPATCH_ANTHROPIC_API_KEY")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	if len(cfg.Routing.Proposers) == 0 {
		cfg.Routing.Proposers = routing.DefaultProposers()
	} else {
		applyActiveDefault(v, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyActiveDefault marks configured proposers active unless the entry sets
// active explicitly.
func applyActiveDefault(v *viper.Viper, cfg *Config) {
	raw, ok := v.Get("routing.proposers").([]interface{})
	if !ok {
		return
	}
	for i, entry := range raw {
		if i >= len(cfg.Routing.Proposers) {
			break
		}
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if _, set := m["active"]; !set {
			cfg.Routing.Proposers[i].Active = true
		}
	}
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.planner_model", cfg.Anthropic.PlannerModel)
	v.Set("budget.daily_soft_cap", cfg.Budget.DailySoftCap)
	v.Set("budget.daily_hard_cap", cfg.Budget.DailyHardCap)
	v.Set("budget.emergency_kill", cfg.Budget.EmergencyKill)
	v.Set("routing.hard_stop_proposer", cfg.Routing.HardStopProposer)
	v.Set("refinement.max_cycles", cfg.Refinement.MaxCycles)
	v.Set("diagnostics.command", cfg.Diagnostics.Command)
	v.Set("diagnostics.file_extension", cfg.Diagnostics.FileExtension)
	v.Set("diagnostics.timeout", cfg.Diagnostics.Timeout.String())
	v.Set("execution.max_parallel", cfg.Execution.MaxParallel)
	v.Set("execution.max_attempts", cfg.Execution.MaxAttempts)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)
	v.SetDefault("anthropic.planner_model", d.Anthropic.PlannerModel)

	v.SetDefault("budget.daily_soft_cap", d.Budget.DailySoftCap)
	v.SetDefault("budget.daily_hard_cap", d.Budget.DailyHardCap)
	v.SetDefault("budget.emergency_kill", d.Budget.EmergencyKill)

	v.SetDefault("routing.hard_stop_proposer", d.Routing.HardStopProposer)
	v.SetDefault("routing.security_keywords", []string{})
	v.SetDefault("routing.architecture_keywords", []string{})
	v.SetDefault("routing.keywords_file", "")

	v.SetDefault("decomposition.batch_threshold", decompose.BatchThreshold)
	v.SetDefault("decomposition.max_tasks_per_batch", decompose.MaxTasksPerBatch)
	v.SetDefault("decomposition.default_batch_size", decompose.DefaultBatchSize)
	v.SetDefault("decomposition.min_tasks", decompose.MinTasks)
	v.SetDefault("decomposition.max_tasks", decompose.MaxTasks)
	v.SetDefault("decomposition.context_units_per_dollar", decompose.ContextUnitsPerDollar)
	v.SetDefault("decomposition.cost_variance_tolerance", decompose.CostVarianceTolerance)

	v.SetDefault("refinement.max_cycles", refine.DefaultMaxCycles)
	v.SetDefault("refinement.low_improvement_threshold", refine.DefaultLowImprovement)

	v.SetDefault("diagnostics.command", d.Diagnostics.Command)
	v.SetDefault("diagnostics.file_extension", d.Diagnostics.FileExtension)
	v.SetDefault("diagnostics.timeout", d.Diagnostics.Timeout.String())
	v.SetDefault("diagnostics.cache_size", d.Diagnostics.CacheSize)

	v.SetDefault("contracts.openapi_file", "")

	v.SetDefault("execution.max_parallel", d.Execution.MaxParallel)
	v.SetDefault("execution.max_attempts", d.Execution.MaxAttempts)

	v.SetDefault("state.db_path", "")
}

// getUserConfigDir returns the XDG config directory for dispatch.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dispatch")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "dispatch")
	}
	return filepath.Join(home, ".config", "dispatch")
}

// findProjectConfig searches for .dispatch.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			MaxTokens:    8192,
			PlannerModel: routing.ProposerSonnet,
		},
		Budget: models.BudgetLimits{
			DailySoftCap:  25,
			DailyHardCap:  50,
			EmergencyKill: 100,
		},
		Routing: RoutingConfig{
			HardStopProposer: routing.DefaultHardStopProposer,
			Proposers:        routing.DefaultProposers(),
		},
		Decomposition: DecompositionConfig{
			BatchThreshold:        decompose.BatchThreshold,
			MaxTasksPerBatch:      decompose.MaxTasksPerBatch,
			DefaultBatchSize:      decompose.DefaultBatchSize,
			MinTasks:              decompose.MinTasks,
			MaxTasks:              decompose.MaxTasks,
			ContextUnitsPerDollar: decompose.ContextUnitsPerDollar,
			CostVarianceTolerance: decompose.CostVarianceTolerance,
		},
		Refinement: RefinementConfig{
			MaxCycles:               refine.DefaultMaxCycles,
			LowImprovementThreshold: refine.DefaultLowImprovement,
		},
		Diagnostics: DiagnosticsConfig{
			Command:       []string{"npx", "tsc", "--noEmit", "--strict", diagnostic.FilePlaceholder},
			FileExtension: ".ts",
			Timeout:       diagnostic.DefaultTimeout,
			CacheSize:     diagnostic.DefaultCacheSize,
		},
		Execution: ExecutionConfig{
			MaxParallel: 3,
			MaxAttempts: routing.MaxAttempts,
		},
	}
}
