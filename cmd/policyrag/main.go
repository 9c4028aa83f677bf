// Command policyrag ingests policy documents and serves role-aware retrieval over them.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/policyrag/internal/config"
)

var envName string

var rootCmd = &cobra.Command{
	Use:   "policyrag",
	Short: "Role-aware retrieval over company policy documents",
	Long: `policyrag chunks, tags and embeds policy documents into a vector store and
answers queries with context ranked by role scope, recency and similarity.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envName, "env", config.GetEnv(),
		"configuration environment (reads config/<env>.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
