package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stagecraft/stagecraft/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "stagecraft",
	Short: "Decision ledger and stage progression engine for venture ideas",
	Long: `Stagecraft walks a venture idea through fixed development stages held
as branches in a versioned repository. Every substantive choice is an
immutable named decision, and each stage transition is gated by an
automatic completeness check, a generated candidate for the next stage,
and a reviewed pull request.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/stagecraft/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/stagecraft")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("STAGECRAFT")
	// Replace dots with underscores for nested keys in env vars
	// e.g., STAGECRAFT_REVIEW_MERGE_THRESHOLD for review.merge_threshold
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
