// Package commands implements the CLI commands for leadhunter.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/leadhunter/internal/compose"
	"github.com/jmylchreest/leadhunter/internal/logger"
	"github.com/jmylchreest/leadhunter/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "leadhunter",
	Short: "Find local businesses and their contact addresses",
	Long: `Leadhunter searches the map listing feed for a niche in a location,
visits each business website and reports a contact address per lead.

Examples:
  # Ten dentists in Austin, printed as JSON
  leadhunter hunt --niche dentist --location "Austin, TX" --limit 10

  # Export to a spreadsheet and keep a campaign history
  leadhunter hunt -n plumber -l Denver -o plumbers.xlsx --history

  # Draft a pitch for every lead with an address, without sending
  leadhunter hunt -n florist -l Leeds --pitch "offer a website redesign" --send --dry-run`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Options{
			Debug: viper.GetBool("debug"),
			Quiet: viper.GetBool("quiet"),
			JSON:  viper.GetBool("log_json"),
		})
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.Version = version.Get().String()

	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.leadhunter.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().Bool("log-json", false, "log as JSON")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
}

func initConfig() {
	// A missing .env is normal.
	_ = godotenv.Load()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".leadhunter")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LEADHUNTER")
	viper.AutomaticEnv()

	for _, kv := range compose.KeyVariables {
		_ = viper.BindEnv("keys."+kv.Provider, kv.Key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error: reading config: %v\n", err)
		}
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logInfo prints a progress line to stderr unless quiet.
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
