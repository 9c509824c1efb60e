/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sahayak",
	Short: "Conversational assistant backend for informal workers",
	Long: `Sahayak routes worker messages from Telegram and WhatsApp through a
turn orchestration core: safety guard, location onboarding, intent routing,
and specialist handlers for jobs, wage audits, and safety reporting.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
