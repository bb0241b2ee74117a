package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// KBCmd manages the knowledge base the retrieval steps search.
func KBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the knowledge base",
	}
	cmd.AddCommand(kbAddCmd(), kbSearchCmd())
	return cmd
}

func kbAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>",
		Short: "Chunk and ingest a text document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			svc, db, err := openService(ctx, configFromContext(ctx))
			if err != nil {
				return err
			}
			defer db.Close()

			docID, chunks, err := svc.IngestDocument(ctx, filepath.Base(args[0]), string(raw))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored document %d with %d chunks\n", docID, chunks)
			return nil
		},
	}
}

func kbSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Query the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, db, err := openService(ctx, configFromContext(ctx))
			if err != nil {
				return err
			}
			defer db.Close()

			chunks, err := svc.SearchKnowledge(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(chunks)
		},
	}
}
