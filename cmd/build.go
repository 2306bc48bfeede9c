package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TFMV/pubmap/ingest"
	"github.com/TFMV/pubmap/logging"
	"github.com/TFMV/pubmap/store"
	"github.com/TFMV/pubmap/ui"
)

func buildCmd(a *app) *cobra.Command {
	var (
		input  string
		format string
		outDir string
		dbPath string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build yearly snapshots from a publication list",
		Long: "Reads a CSV or TSV of publications (title, year or date, authors) and\n" +
			"writes one co-authorship snapshot per year plus info.json, either to a\n" +
			"directory or to a SQLite database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(input)), ".")
			}
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			builder := ingest.NewBuilder(a.cfg.Build)
			processor, err := ingest.GetProcessor(format, builder)
			if err != nil {
				return err
			}
			ds, err := processor.ProcessData(ctx, data)
			if errors.Is(err, ingest.ErrNoCoauthors) {
				return fmt.Errorf("%s: no publication has two or more authors", input)
			}
			if err != nil {
				return err
			}

			if dbPath != "" {
				db, err := store.Open(dbPath)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.ImportDataset(ctx, ds); err != nil {
					return err
				}
			} else {
				if err := ingest.WriteDataset(ctx, ingest.NewDirSource(outDir), ds); err != nil {
					return err
				}
			}

			a.log.Info(ctx, "built snapshots",
				logging.String("processor", processor.GetName()),
				logging.Int("snapshots", len(ds.Snapshots)),
			)

			ui.Banner(out, "snapshots built")
			rows := make([][]string, 0, len(ds.Snapshots))
			for _, s := range ds.Snapshots {
				rows = append(rows, []string{
					strconv.Itoa(s.Year),
					strconv.Itoa(len(s.Nodes)),
					strconv.Itoa(len(s.Edges)),
				})
			}
			ui.Table(out, []string{"YEAR", "NODES", "EDGES"}, rows)
			dest := outDir
			if dbPath != "" {
				dest = dbPath
			}
			fmt.Fprintf(out, "\n  %s %d snapshots written to %s\n", ui.StatusIcon(true), len(ds.Snapshots), dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Publication list (.csv or .tsv)")
	cmd.Flags().StringVar(&format, "format", "", "Input format: csv, tsv or json (default from extension)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "data", "Output directory")
	cmd.Flags().StringVar(&dbPath, "db", "", "Write to this SQLite database instead of a directory")
	cmd.MarkFlagRequired("input")
	return cmd
}
