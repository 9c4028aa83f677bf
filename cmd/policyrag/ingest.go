package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/policyrag/internal/domain/batch"
	ingestuc "github.com/kailas-cloud/policyrag/internal/usecase/ingest"
)

var ingestDelete bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Chunk, tag, embed and store policy documents",
	Long: `Ingests each file as one document identified by its base name.
Re-ingesting a document replaces all of its chunks. With --delete the
named documents are removed instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDelete, "delete", false, "remove the named documents instead of ingesting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), envName)
	if err != nil {
		return err
	}
	defer a.close()

	if ingestDelete {
		for _, id := range args {
			n, err := a.ingest.Delete(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
			cmd.Printf("deleted %s (%d chunks)\n", id, n)
		}
		return nil
	}

	sources, err := ingestuc.ReadFiles(args)
	if err != nil {
		return err
	}

	results := a.ingest.IngestAll(cmd.Context(), sources)
	for _, r := range results {
		if r.Status() == batch.StatusCommitted {
			cmd.Printf("  ok      %s (%d chunks)\n", r.DocumentID(), r.Chunks())
			continue
		}
		cmd.Printf("  failed  %s: %v\n", r.DocumentID(), r.Err())
	}

	committed, failed := batch.Summary(results)
	cmd.Printf("%d committed, %d failed\n", committed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}
