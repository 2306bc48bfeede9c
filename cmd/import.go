package cmd

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TFMV/pubmap/ingest"
	"github.com/TFMV/pubmap/logging"
	"github.com/TFMV/pubmap/models"
	"github.com/TFMV/pubmap/store"
	"github.com/TFMV/pubmap/ui"
)

func importCmd(a *app) *cobra.Command {
	var (
		fromDir string
		dbPath  string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a snapshot directory into SQLite",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src := ingest.NewDirSource(fromDir)

			summary, err := src.Summary(ctx)
			if err != nil {
				return fmt.Errorf("read summary: %w", err)
			}

			years := make([]int, 0, summary.MaxYear()-summary.MinYear()+1)
			for y := summary.MinYear(); y <= summary.MaxYear(); y++ {
				years = append(years, y)
			}
			snaps := make([]*models.Snapshot, len(years))

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(runtime.NumCPU())
			for i, year := range years {
				g.Go(func() error {
					snap, err := src.Snapshot(gctx, year)
					if errors.Is(err, models.ErrSnapshotNotFound) {
						a.log.Warn(gctx, "no snapshot for year, skipping", logging.Int("year", year))
						return nil
					}
					if err != nil {
						return fmt.Errorf("read %d: %w", year, err)
					}
					if snap.Year == 0 {
						snap.Year = year
					}
					snaps[i] = snap
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			ds := &ingest.Dataset{Summary: summary}
			for _, s := range snaps {
				if s != nil {
					ds.Snapshots = append(ds.Snapshots, s)
				}
			}

			db, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.ImportDataset(ctx, ds); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s imported %d of %d years into %s\n",
				ui.StatusIcon(true), len(ds.Snapshots), len(years), dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&fromDir, "from", "data", "Snapshot directory")
	cmd.Flags().StringVar(&dbPath, "db", "pubmap.db", "SQLite database")
	return cmd
}
