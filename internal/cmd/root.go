package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/wiggum/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "wiggum",
	Short: "Autonomous work-packet convergence agent",
	Long: `Wiggum drives AI-assisted code generation for projects broken into
work packets, converging each packet through bounded generate-critique
cycles under a single agent with a durable cross-project priority queue.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/wiggum/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory for state and logs (default is .wiggum)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("paths.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
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
		viper.AddConfigPath("$HOME/.config/wiggum")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("WIGGUM")
	// Replace dots with underscores for nested keys in env vars
	// e.g., WIGGUM_PACKET_MAX_ITERATIONS for packet.max_iterations
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
