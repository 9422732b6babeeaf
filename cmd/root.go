// Package cmd defines the command line interface of the mentor service.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mentingo-mentor",
	Short: "AI mentor conversation pipeline",
	Long: `mentingo-mentor runs the lesson mentor backend: token-budgeted
streamed tutor replies, automatic history summarization, retrieval over
embedded course documents, and judge scoring of finished threads.`,
	SilenceUsage: true,
}

// Execute runs the root command. It exits the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
