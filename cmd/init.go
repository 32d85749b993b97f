package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/policyvoice/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize policyvoice configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose the LLM provider, session store and knowledge base, and writes a .policyvoice.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
