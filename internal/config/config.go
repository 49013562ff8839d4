// Package config loads and validates the stagecraft configuration using
// viper, with defaults for every key so the engine runs without a config
// file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete stagecraft configuration.
type Config struct {
	Store        StoreConfig        `mapstructure:"store"`
	Engine       EngineConfig       `mapstructure:"engine"`
	Review       ReviewConfig       `mapstructure:"review"`
	Ledger       LedgerConfig       `mapstructure:"ledger"`
	Completeness CompletenessConfig `mapstructure:"completeness"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// StoreConfig controls the versioned store adapter.
type StoreConfig struct {
	// Backend selects the store implementation: "github" or "memory".
	// "memory" is only useful for dry runs and tests.
	Backend string `mapstructure:"backend"`
	// APIBase overrides the store API endpoint (GitHub Enterprise).
	// Empty means the public endpoint.
	APIBase string `mapstructure:"api_base"`
	// TokenEnv names the environment variable holding the access token.
	TokenEnv string `mapstructure:"token_env"`
}

// Token reads the access token from the configured environment variable.
func (s *StoreConfig) Token() string {
	if s.TokenEnv == "" {
		return ""
	}
	return os.Getenv(s.TokenEnv)
}

// EngineConfig controls the stage progression state machine.
type EngineConfig struct {
	// Generator selects the content generator backend: "http" or "stub".
	Generator string `mapstructure:"generator"`
	// GeneratorURL is the endpoint for the http generator backend.
	GeneratorURL string `mapstructure:"generator_url"`
	// GenerationTimeoutSeconds bounds one content generation call.
	GenerationTimeoutSeconds int `mapstructure:"generation_timeout_seconds"`
	// ReviewTimeoutSeconds bounds one PR review call.
	ReviewTimeoutSeconds int `mapstructure:"review_timeout_seconds"`
}

// GenerationTimeout returns the generation timeout as a time.Duration.
func (e *EngineConfig) GenerationTimeout() time.Duration {
	return time.Duration(e.GenerationTimeoutSeconds) * time.Second
}

// ReviewTimeout returns the review timeout as a time.Duration.
func (e *EngineConfig) ReviewTimeout() time.Duration {
	return time.Duration(e.ReviewTimeoutSeconds) * time.Second
}

// ReviewConfig controls transition PR review and merging.
type ReviewConfig struct {
	// Reviewer selects the reviewer backend: "http" or "stub".
	Reviewer string `mapstructure:"reviewer"`
	// ReviewerURL is the endpoint for the http reviewer backend.
	ReviewerURL string `mapstructure:"reviewer_url"`
	// MergeThreshold is the minimum reviewer confidence for an automatic
	// merge. Below it, approved or not, the PR stays open for manual
	// resolution.
	MergeThreshold float64 `mapstructure:"merge_threshold"`
	// MergeMethod is the merge strategy for transition PRs ("squash" or
	// "merge").
	MergeMethod string `mapstructure:"merge_method"`
}

// LedgerConfig controls decision ledger behavior.
type LedgerConfig struct {
	// RevisitThreshold is the minimum revisit probability at which a
	// blocked caller may reverse an existing decision.
	RevisitThreshold float64 `mapstructure:"revisit_threshold"`
	// MaxWriteRetries bounds compare-and-append retries after a
	// conflicting write.
	MaxWriteRetries int `mapstructure:"max_write_retries"`
}

// CompletenessConfig holds stage-specific completeness thresholds.
type CompletenessConfig struct {
	// MinRequirementsChars is the minimum requirements document length.
	MinRequirementsChars int `mapstructure:"min_requirements_chars"`
	// CriticalAssumptionCutoff is the criticality above which an
	// assumption counts as critical.
	CriticalAssumptionCutoff float64 `mapstructure:"critical_assumption_cutoff"`
	// MinValidatedFraction is the required validated fraction of critical
	// assumptions.
	MinValidatedFraction float64 `mapstructure:"min_validated_fraction"`
	// MinUnknowns, MinRisks, MinCompetitors are the analysis-stage
	// minimum counts.
	MinUnknowns    int `mapstructure:"min_unknowns"`
	MinRisks       int `mapstructure:"min_risks"`
	MinCompetitors int `mapstructure:"min_competitors"`
	// MinInterfaces is the design-stage minimum interface count.
	MinInterfaces int `mapstructure:"min_interfaces"`
	// MinFeedbackEntries is the validation-stage minimum feedback count.
	MinFeedbackEntries int `mapstructure:"min_feedback_entries"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Dir is the log directory; empty logs to stderr.
	Dir string `mapstructure:"dir"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:  "github",
			APIBase:  "",
			TokenEnv: "STAGECRAFT_TOKEN",
		},
		Engine: EngineConfig{
			// The stub backend keeps a config-less setup self-contained;
			// production deployments configure "http" with an endpoint.
			Generator:                "stub",
			GeneratorURL:             "",
			GenerationTimeoutSeconds: 300,
			ReviewTimeoutSeconds:     120,
		},
		Review: ReviewConfig{
			Reviewer:       "stub",
			ReviewerURL:    "",
			MergeThreshold: 0.8,
			MergeMethod:    "squash",
		},
		Ledger: LedgerConfig{
			RevisitThreshold: 0.7,
			MaxWriteRetries:  3,
		},
		Completeness: CompletenessConfig{
			MinRequirementsChars:     400,
			CriticalAssumptionCutoff: 0.7,
			MinValidatedFraction:     0.8,
			MinUnknowns:              5,
			MinRisks:                 5,
			MinCompetitors:           3,
			MinInterfaces:            3,
			MinFeedbackEntries:       3,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("store.backend", defaults.Store.Backend)
	viper.SetDefault("store.api_base", defaults.Store.APIBase)
	viper.SetDefault("store.token_env", defaults.Store.TokenEnv)

	viper.SetDefault("engine.generator", defaults.Engine.Generator)
	viper.SetDefault("engine.generator_url", defaults.Engine.GeneratorURL)
	viper.SetDefault("engine.generation_timeout_seconds", defaults.Engine.GenerationTimeoutSeconds)
	viper.SetDefault("engine.review_timeout_seconds", defaults.Engine.ReviewTimeoutSeconds)

	viper.SetDefault("review.reviewer", defaults.Review.Reviewer)
	viper.SetDefault("review.reviewer_url", defaults.Review.ReviewerURL)
	viper.SetDefault("review.merge_threshold", defaults.Review.MergeThreshold)
	viper.SetDefault("review.merge_method", defaults.Review.MergeMethod)

	viper.SetDefault("ledger.revisit_threshold", defaults.Ledger.RevisitThreshold)
	viper.SetDefault("ledger.max_write_retries", defaults.Ledger.MaxWriteRetries)

	viper.SetDefault("completeness.min_requirements_chars", defaults.Completeness.MinRequirementsChars)
	viper.SetDefault("completeness.critical_assumption_cutoff", defaults.Completeness.CriticalAssumptionCutoff)
	viper.SetDefault("completeness.min_validated_fraction", defaults.Completeness.MinValidatedFraction)
	viper.SetDefault("completeness.min_unknowns", defaults.Completeness.MinUnknowns)
	viper.SetDefault("completeness.min_risks", defaults.Completeness.MinRisks)
	viper.SetDefault("completeness.min_competitors", defaults.Completeness.MinCompetitors)
	viper.SetDefault("completeness.min_interfaces", defaults.Completeness.MinInterfaces)
	viper.SetDefault("completeness.min_feedback_entries", defaults.Completeness.MinFeedbackEntries)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if
// unmarshaling fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "stagecraft")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stagecraft"
	}
	return filepath.Join(home, ".config", "stagecraft")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
