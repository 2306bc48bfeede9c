package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TFMV/pubmap/driver"
	"github.com/TFMV/pubmap/reconcile"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Canvas.Width != 960 || cfg.Canvas.Height != 600 {
		t.Errorf("canvas = %+v", cfg.Canvas)
	}
	if cfg.Scales.Radius.Min != 5 || cfg.Scales.Radius.Max != 74 {
		t.Errorf("radius range = %+v", cfg.Scales.Radius)
	}
	if cfg.Forces.Collide.RadiusFactor != 1.3 || cfg.Simulation.WarmAlphaTarget != 0.3 {
		t.Error("collide factor or warm target drifted")
	}
	if cfg.Timeline.AdvanceInterval != 3*time.Second || cfg.Timeline.EndPolicy != driver.EndWrap {
		t.Errorf("timeline = %+v", cfg.Timeline)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "pubmap.toml", `
placement = "center"

[canvas]
width = 1200

[timeline]
end_policy = "stop"
advance_interval = "5s"

[forces.many_body]
strength = -40

[source]
kind = "sqlite"
path = "pubmap.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Canvas.Width != 1200 || cfg.Canvas.Height != 600 {
		t.Errorf("canvas = %+v", cfg.Canvas)
	}
	if cfg.Placement != reconcile.PlaceCenter {
		t.Errorf("placement = %q", cfg.Placement)
	}
	if cfg.Timeline.EndPolicy != driver.EndStop || cfg.Timeline.AdvanceInterval != 5*time.Second {
		t.Errorf("timeline = %+v", cfg.Timeline)
	}
	if cfg.Forces.ManyBody.Strength != -40 || cfg.Forces.ManyBody.Theta != Default().Forces.ManyBody.Theta {
		t.Errorf("many body = %+v", cfg.Forces.ManyBody)
	}
	if cfg.Source.Kind != SourceSQLite || cfg.Source.Path != "pubmap.db" {
		t.Errorf("source = %+v", cfg.Source)
	}

	ec := cfg.EngineConfig()
	if ec.Width != 1200 || ec.Placement != reconcile.PlaceCenter {
		t.Errorf("engine config = %+v", ec)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "pubmap.yaml", `
canvas:
  height: 800
scales:
  label_cutoff:
    mode: percentile
    value: 90
server:
  addr: "127.0.0.1:9000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Canvas.Height != 800 || cfg.Canvas.Width != 960 {
		t.Errorf("canvas = %+v", cfg.Canvas)
	}
	if cfg.Scales.LabelCutoff.Mode != "percentile" || cfg.Scales.LabelCutoff.Value != 90 {
		t.Errorf("label cutoff = %+v", cfg.Scales.LabelCutoff)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unknown toml key", "a.toml", "[canvas]\ndepth = 3\n", "unknown keys"},
		{"unknown yaml key", "a.yml", "canvas:\n  depth: 3\n", "depth"},
		{"bad alpha decay", "a.toml", "[simulation]\nalpha_decay = 1.5\n", "simulation"},
		{"bad end policy", "a.toml", "[timeline]\nend_policy = \"bounce\"\n", "timeline"},
		{"bad source", "a.toml", "[source]\nkind = \"ftp\"\n", "source kind"},
		{"http without url", "a.toml", "[source]\nkind = \"http\"\n", "url"},
		{"empty canvas", "a.yaml", "canvas:\n  width: 0\n", "canvas"},
		{"syntax", "a.toml", "[canvas\n", "decode toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestEmptyFileKeepsDefaults(t *testing.T) {
	for _, name := range []string{"empty.toml", "empty.yaml"} {
		cfg, err := Load(writeFile(t, name, ""))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if cfg.Canvas != Default().Canvas {
			t.Errorf("%s: canvas = %+v", name, cfg.Canvas)
		}
	}
}

func TestLoggingFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := Parse([]byte("[logging]\nformat = \"json\"\nlevel = \"\"\n"), "toml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestEncodeYAMLLoadsBack(t *testing.T) {
	cfg := Default()
	cfg.Canvas.Width = 640
	cfg.Timeline.EndPolicy = driver.EndStop

	var buf bytes.Buffer
	if err := cfg.Encode(&buf, "yaml"); err != nil {
		t.Fatal(err)
	}
	got, err := Parse(buf.Bytes(), "yaml")
	if err != nil {
		t.Fatalf("%v\n%s", err, buf.String())
	}
	if got.Canvas.Width != 640 || got.Timeline.EndPolicy != driver.EndStop || got.Timeline.AdvanceInterval != 3*time.Second {
		t.Errorf("decoded = %+v", got)
	}

	if err := cfg.Encode(&buf, "ini"); err == nil {
		t.Error("unsupported format accepted")
	}
}
