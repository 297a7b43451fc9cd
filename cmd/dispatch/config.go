package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dispatch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Dispatch configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/dispatch/config.yaml
Project-specific overrides can be placed in .dispatch.yaml`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// configKeys lists the keys shown by displayAllConfig, in order.
var configKeys = []string{
	"anthropic.api_key",
	"anthropic.use_bedrock",
	"anthropic.aws_region",
	"anthropic.planner_model",
	"budget.daily_soft_cap",
	"budget.daily_hard_cap",
	"budget.emergency_kill",
	"routing.hard_stop_proposer",
	"refinement.max_cycles",
	"diagnostics.command",
	"diagnostics.file_extension",
	"diagnostics.timeout",
	"execution.max_parallel",
	"execution.max_attempts",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}

	_, source, _ := config.ResolveAPIKey(cfg)
	fmt.Printf("\napi key source: %s\n", source)
	fmt.Printf("user config: %s\n", config.GetUserConfigPath())
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Printf("project config: %s\n", p)
	}
	fmt.Println("proposers:")
	for _, p := range cfg.Routing.Proposers {
		state := "inactive"
		if p.Active {
			state = "active"
		}
		fmt.Printf("  %s (%s, ceiling %.2f, %s)\n", p.Name, p.Provider, p.ComplexityCeiling, state)
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	if strings.EqualFold(key, "anthropic.api_key") {
		value = config.MaskAPIKey(value)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.planner_model":
		return cfg.Anthropic.PlannerModel, nil
	case "budget.daily_soft_cap":
		return formatDollars(cfg.Budget.DailySoftCap), nil
	case "budget.daily_hard_cap":
		return formatDollars(cfg.Budget.DailyHardCap), nil
	case "budget.emergency_kill":
		return formatDollars(cfg.Budget.EmergencyKill), nil
	case "routing.hard_stop_proposer":
		return cfg.Routing.HardStopProposer, nil
	case "refinement.max_cycles":
		return strconv.Itoa(cfg.Refinement.MaxCycles), nil
	case "diagnostics.command":
		return strings.Join(cfg.Diagnostics.Command, " "), nil
	case "diagnostics.file_extension":
		return cfg.Diagnostics.FileExtension, nil
	case "diagnostics.timeout":
		return cfg.Diagnostics.Timeout.String(), nil
	case "execution.max_parallel":
		return strconv.Itoa(cfg.Execution.MaxParallel), nil
	case "execution.max_attempts":
		return strconv.Itoa(cfg.Execution.MaxAttempts), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for anthropic.use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.planner_model":
		cfg.Anthropic.PlannerModel = value
	case "budget.daily_soft_cap":
		f, err := parseDollars(value)
		if err != nil {
			return fmt.Errorf("invalid value for budget.daily_soft_cap: %w", err)
		}
		cfg.Budget.DailySoftCap = f
	case "budget.daily_hard_cap":
		f, err := parseDollars(value)
		if err != nil {
			return fmt.Errorf("invalid value for budget.daily_hard_cap: %w", err)
		}
		cfg.Budget.DailyHardCap = f
	case "budget.emergency_kill":
		f, err := parseDollars(value)
		if err != nil {
			return fmt.Errorf("invalid value for budget.emergency_kill: %w", err)
		}
		cfg.Budget.EmergencyKill = f
	case "routing.hard_stop_proposer":
		cfg.Routing.HardStopProposer = value
	case "refinement.max_cycles":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for refinement.max_cycles: %w", err)
		}
		cfg.Refinement.MaxCycles = n
	case "diagnostics.command":
		cfg.Diagnostics.Command = strings.Fields(value)
	case "diagnostics.file_extension":
		cfg.Diagnostics.FileExtension = value
	case "diagnostics.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for diagnostics.timeout: %w", err)
		}
		cfg.Diagnostics.Timeout = d
	case "execution.max_parallel":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for execution.max_parallel: %w", err)
		}
		cfg.Execution.MaxParallel = n
	case "execution.max_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for execution.max_attempts: %w", err)
		}
		cfg.Execution.MaxAttempts = n
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func formatDollars(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// parseDollars accepts an optional leading dollar sign.
func parseDollars(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(s), "$"), 64)
}
