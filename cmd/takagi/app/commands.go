// Package app provides the entry point for the takagi command-line
// application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/takagi-dev/takagi/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "takagi",
	DisableAutoGenTag: true,
	Short:             "An OpenID Connect provider in front of GitHub",
	Long: `takagi is a stateless OpenID Connect provider that fronts GitHub's
OAuth2 service. Relying parties speak standard OIDC to takagi; takagi
translates the flow to GitHub and signs the resulting identity into OIDC
tokens. No sessions or codes are stored server-side: all flow state travels
inside signed token envelopes.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the takagi CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newKeygenCmd())

	rootCmd.SilenceUsage = true

	return rootCmd
}
