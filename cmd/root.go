package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/TFMV/pubmap/config"
	"github.com/TFMV/pubmap/ingest"
	"github.com/TFMV/pubmap/logging"
	"github.com/TFMV/pubmap/store"
	"github.com/TFMV/pubmap/ui"
)

var version = "0.1.0"

// app is the state shared by every command once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	source     config.Source

	cfg *config.Config
	log logging.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "pubmap",
		Short: "pubmap - animated co-authorship maps",
		Long: ui.Brand.Sprint("pubmap") + " - build, store and animate yearly co-authorship networks\n" +
			ui.Subtle.Sprint("A force-directed layout that keeps every author in place across years"),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.SetVersionTemplate("pubmap {{ .Version }}\n")

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (.toml, .yaml or .yml)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.source.Kind, "source", "", "Snapshot source: dir, http or sqlite")
	flags.StringVar(&a.source.Path, "path", "", "Snapshot directory or database file")
	flags.StringVar(&a.source.URL, "url", "", "Snapshot base URL for the http source")

	root.AddCommand(
		serveCmd(a),
		renderCmd(a),
		buildCmd(a),
		importCmd(a),
		summaryCmd(a),
		configCmd(a),
	)
	return root
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		ui.Bad.Fprintf(os.Stderr, "pubmap: %v\n", err)
		os.Exit(1)
	}
}

// load reads the config file and applies flag overrides.
func (a *app) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg.Logging = logging.FromEnv(cfg.Logging)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("source") {
		cfg.Source.Kind = a.source.Kind
	}
	if flags.Changed("path") {
		cfg.Source.Path = a.source.Path
	}
	if flags.Changed("url") {
		cfg.Source.URL = a.source.URL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	a.log = logging.New(cfg.Logging)
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openSource opens the configured snapshot source.
func openSource(cfg config.Source) (ingest.Source, io.Closer, error) {
	switch cfg.Kind {
	case config.SourceDir:
		return ingest.NewDirSource(cfg.Path), nopCloser{}, nil
	case config.SourceHTTP:
		return ingest.NewHTTPSource(cfg.URL, &http.Client{Timeout: cfg.Timeout}), nopCloser{}, nil
	case config.SourceSQLite:
		db, err := store.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
