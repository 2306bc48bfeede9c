// Package config loads pubmap settings from TOML or YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/TFMV/pubmap/driver"
	"github.com/TFMV/pubmap/engine"
	"github.com/TFMV/pubmap/ingest"
	"github.com/TFMV/pubmap/logging"
	"github.com/TFMV/pubmap/observability"
	"github.com/TFMV/pubmap/physics"
	"github.com/TFMV/pubmap/reconcile"
	"github.com/TFMV/pubmap/scale"
	"github.com/TFMV/pubmap/server"
)

// Source kinds.
const (
	SourceDir    = "dir"
	SourceHTTP   = "http"
	SourceSQLite = "sqlite"
)

// Canvas is the layout area.
type Canvas struct {
	Width  float64 `toml:"width" yaml:"width" json:"width"`
	Height float64 `toml:"height" yaml:"height" json:"height"`
	// Seed drives initial placement.
	Seed uint64 `toml:"seed" yaml:"seed" json:"seed"`
}

// Source selects where snapshots are read from.
type Source struct {
	Kind    string        `toml:"kind" yaml:"kind" json:"kind"` // dir, http or sqlite
	Path    string        `toml:"path" yaml:"path" json:"path"` // directory or database file
	URL     string        `toml:"url" yaml:"url" json:"url"`
	Timeout time.Duration `toml:"timeout" yaml:"timeout" json:"timeout"` // http client timeout
}

// Validate checks the kind and its location.
func (s Source) Validate() error {
	switch s.Kind {
	case SourceDir, SourceSQLite:
		if s.Path == "" {
			return fmt.Errorf("source %s requires a path", s.Kind)
		}
	case SourceHTTP:
		if s.URL == "" {
			return errors.New("source http requires a url")
		}
	default:
		return fmt.Errorf("unknown source kind %q", s.Kind)
	}
	if s.Timeout < 0 {
		return errors.New("source timeout must not be negative")
	}
	return nil
}

// Config is the complete application configuration.
type Config struct {
	Canvas     Canvas                      `toml:"canvas" yaml:"canvas" json:"canvas"`
	Placement  reconcile.Placement         `toml:"placement" yaml:"placement" json:"placement"`
	Simulation physics.Config              `toml:"simulation" yaml:"simulation" json:"simulation"`
	Forces     physics.ForcesConfig        `toml:"forces" yaml:"forces" json:"forces"`
	Scales     scale.Config                `toml:"scales" yaml:"scales" json:"scales"`
	Timeline   driver.Config               `toml:"timeline" yaml:"timeline" json:"timeline"`
	Source     Source                      `toml:"source" yaml:"source" json:"source"`
	Server     server.Config               `toml:"server" yaml:"server" json:"server"`
	Logging    logging.Config              `toml:"logging" yaml:"logging" json:"logging"`
	Tracing    observability.TracingConfig `toml:"tracing" yaml:"tracing" json:"tracing"`
	Build      ingest.BuildConfig          `toml:"build" yaml:"build" json:"build"`
}

// Default returns the stock tuning: a 960x600 canvas, radius range [5,74]
// over a power ceiling of 3000, and a new year every three seconds.
func Default() *Config {
	eng := engine.DefaultConfig()
	return &Config{
		Canvas:     Canvas{Width: eng.Width, Height: eng.Height, Seed: eng.Seed},
		Placement:  eng.Placement,
		Simulation: eng.Simulation,
		Forces:     eng.Forces,
		Scales:     eng.Scales,
		Timeline:   driver.DefaultConfig(),
		Source:     Source{Kind: SourceDir, Path: "data", Timeout: 10 * time.Second},
		Server:     server.DefaultConfig(),
		Logging:    logging.Config{Level: "info", Format: "text"},
		Tracing:    observability.DefaultTracingConfig(),
		Build:      ingest.DefaultBuildConfig(),
	}
}

// Load reads path over the defaults. The format follows the extension:
// .toml, or .yaml/.yml. Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "toml"
	}
}

// Parse decodes data in the given format over the defaults and validates
// the result.
func Parse(data []byte, format string) (*Config, error) {
	cfg := Default()
	switch format {
	case "toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
	cfg.Logging = logging.FromEnv(cfg.Logging)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.EngineConfig().Validate(); err != nil {
		return err
	}
	if err := c.Timeline.Validate(); err != nil {
		return fmt.Errorf("timeline: %w", err)
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Build.Validate(); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return nil
}

// EngineConfig assembles the layout engine settings.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		Width:      c.Canvas.Width,
		Height:     c.Canvas.Height,
		Placement:  c.Placement,
		Seed:       c.Canvas.Seed,
		Simulation: c.Simulation,
		Forces:     c.Forces,
		Scales:     c.Scales,
	}
}

// Encode writes the configuration as toml or yaml.
func (c *Config) Encode(w io.Writer, format string) error {
	switch format {
	case "toml":
		return toml.NewEncoder(w).Encode(c)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
}
