package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/policyrag/internal/domain/bundle"
	"github.com/kailas-cloud/policyrag/internal/domain/role"
)

var (
	retrieveRole string
	retrieveTopN int
	retrieveJSON bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Print the ranked policy context for a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringVarP(&retrieveRole, "role", "r", string(role.Employee),
		"requester role: intern, employee, manager or unknown")
	retrieveCmd.Flags().IntVarP(&retrieveTopN, "top-n", "n", 0, "number of chunks to return (default from config)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output the bundle as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	r, err := role.Parse(retrieveRole)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), envName)
	if err != nil {
		return err
	}
	defer a.close()

	b, err := a.retrieval.Retrieve(cmd.Context(), args[0], r, retrieveTopN)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}

	if retrieveJSON {
		return outputBundleJSON(cmd, b)
	}
	if b.Len() == 0 {
		cmd.Println("No results found.")
		return nil
	}
	cmd.Print(b.Render())
	return nil
}

func outputBundleJSON(cmd *cobra.Command, b bundle.Bundle) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
