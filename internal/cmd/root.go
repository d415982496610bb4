// Package cmd wires the orchestrator's components into the fleet CLI.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Parallel work-claiming agent orchestrator",
	Long: `Fleet runs concurrent agent sessions against a shared issue backlog.
Each session claims one item at a time through a crash-safe claim
ledger, executes it, verifies the item actually closed, and reports
back. The run ends once the backlog stays empty for several rounds.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/fleet/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FLEET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Missing config file is fine; defaults and env cover it.
	_ = viper.ReadInConfig()
}
