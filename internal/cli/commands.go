package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func newIngestCmd(rt *runtime) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Store and index local files",
		Long: `Copies each file into the upload directory and indexes it under its base
name, exactly as an HTTP upload would. Re-ingesting a name follows the
configured re-ingest mode.`,
		Args: cobra.MinimumNArgs(1),
	}
	cmd.Flags().StringVar(&name, "name", "", "document name to use (single file only)")

	cmd.RunE = rt.withApp(func(cmd *cobra.Command, args []string) error {
		if name != "" && len(args) > 1 {
			return errors.New("--name can only be used with a single file")
		}
		for _, path := range args {
			docName := name
			if docName == "" {
				docName = filepath.Base(path)
			}
			if err := ingestFile(cmd, rt, path, docName); err != nil {
				return err
			}
		}
		return nil
	})
	return cmd
}

func ingestFile(cmd *cobra.Command, rt *runtime, path, name string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	res, err := rt.app.Documents.Upload(cmd.Context(), name, f)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}
	verb := "Ingested"
	if res.Overwrote {
		verb = "Re-ingested"
	}
	cmd.Printf("%s %s: %d chunks\n", verb, res.Name, res.Chunks)
	return nil
}

func newDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: rt.withApp(func(cmd *cobra.Command, args []string) error {
			found, err := rt.app.Documents.Delete(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("delete %s: %w", args[0], err)
			}
			if !found {
				cmd.Printf("Document %s not found\n", args[0])
				return nil
			}
			cmd.Printf("Deleted %s\n", args[0])
			return nil
		}),
	}
}

func newSearchCmd(rt *runtime) *cobra.Command {
	var (
		k       int
		asJSON  bool
		showAll bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the passages closest to a query",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of passages (default: index.default_k)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	cmd.Flags().BoolVar(&showAll, "full", false, "print whole passages instead of a snippet")

	cmd.RunE = rt.withApp(func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		hits, err := rt.app.Ask.Search(cmd.Context(), query, k)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if asJSON {
			return printJSON(cmd, hits)
		}
		if len(hits) == 0 {
			cmd.Println("No results found.")
			return nil
		}
		for i, h := range hits {
			cmd.Printf("  [%d] %s (%.4f)\n", i+1, h.ChunkID, h.Score)
			text := h.Text
			if !showAll {
				text = snippet(text, 120)
			}
			cmd.Printf("      %s\n", text)
		}
		return nil
	})
	return cmd
}

func newCheckCmd(rt *runtime) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the catalog/index invariant",
		Long: `Checks that every catalog chunk id has exactly one vector record, every
record belongs to a catalog entry and the persisted snapshot equals the
loaded state. Exits non-zero on any violation.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the report as JSON")

	cmd.RunE = rt.withApp(func(cmd *cobra.Command, _ []string) error {
		rep, err := rt.app.Engine.Check(cmd.Context())
		if err != nil && !errors.Is(err, domain.ErrConsistencyViolation) {
			return fmt.Errorf("check failed: %w", err)
		}
		if asJSON {
			if jerr := printJSON(cmd, rep); jerr != nil {
				return jerr
			}
		} else {
			cmd.Printf("Documents:      %d\n", rep.Documents)
			cmd.Printf("Records:        %d\n", rep.Records)
			cmd.Printf("Catalog chunks: %d\n", rep.CatalogChunks)
			printIDs(cmd, "Missing records", rep.MissingRecords)
			printIDs(cmd, "Orphan records", rep.OrphanRecords)
			printIDs(cmd, "Misowned records", rep.Misowned)
			if !rep.PersistedMatches {
				cmd.Printf("Persisted snapshot differs: %s\n", rep.PersistedDetail)
			}
		}
		if !rep.Consistent() {
			return errors.Join(errInconsistent, err)
		}
		if !asJSON {
			cmd.Println("OK")
		}
		return nil
	})
	return cmd
}

func newStatsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print index counts",
		Args:  cobra.NoArgs,
		RunE: rt.withApp(func(cmd *cobra.Command, _ []string) error {
			s := rt.app.Engine.Stats()
			cmd.Printf("Storage:    %s (%s)\n", rt.cfg.Storage.Driver, rt.cfg.Storage.IndexPath)
			cmd.Printf("Index:      %s/%s\n", rt.cfg.Index.Kind, rt.cfg.Index.Metric)
			cmd.Printf("Documents:  %d\n", s.Documents)
			cmd.Printf("Records:    %d\n", s.Records)
			cmd.Printf("Dimensions: %d\n", s.Dimensions)
			return nil
		}),
	}
}

func newDocsCmd(rt *runtime) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"ls"},
		Short:   "List stored and indexed documents",
		Args:    cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	cmd.RunE = rt.withApp(func(cmd *cobra.Command, _ []string) error {
		entries, err := rt.app.Documents.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		if asJSON {
			return printJSON(cmd, entries)
		}
		if len(entries) == 0 {
			cmd.Println("No documents.")
			return nil
		}
		for _, e := range entries {
			state := "indexed"
			switch {
			case !e.Indexed:
				state = "not indexed"
			case !e.Stored:
				state = "file missing"
			}
			cmd.Printf("  %-40s %6d chunks %10d bytes  %s\n", e.Name, e.Chunks, e.Size, state)
		}
		return nil
	})
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func printIDs(cmd *cobra.Command, label string, ids []string) {
	if len(ids) == 0 {
		return
	}
	cmd.Printf("%s (%d):\n", label, len(ids))
	for _, id := range ids {
		cmd.Printf("  %s\n", id)
	}
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
