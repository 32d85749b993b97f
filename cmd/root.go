package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/policyvoice/internal/config"
)

var (
	cfgFile string
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "policyvoice",
	Short: "Voice-first life insurance assistant",
	Long: `PolicyVoice answers customer questions about life insurance by voice or
text. Each turn looks up matching knowledge base snippets, asks an LLM for a
short answer and stores the exchange so follow-up questions keep their
context.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(envFile)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
