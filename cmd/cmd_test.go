package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
)

const publications = `title,year,authors
Graphs,2000,Ada;Bob
More graphs,2000,Ada;Bob;Cy
Layouts,2001,Ada;Cy
Forces,2002,Bob;Dee
Solo work,2002,Eve
`

func run(t *testing.T, args ...string) string {
	t.Helper()
	color.NoColor = true
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("pubmap %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func writeInput(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "pubs.csv")
	if err := os.WriteFile(input, []byte(publications), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, input
}

func TestBuildRenderPipeline(t *testing.T) {
	dir, input := writeInput(t)
	data := filepath.Join(dir, "data")
	frames := filepath.Join(dir, "frames")

	out := run(t, "build", "--input", input, "--out", data)
	if !strings.Contains(out, "3 snapshots written") {
		t.Errorf("build output:\n%s", out)
	}
	for _, name := range []string{"info.json", "pubmap2000.json", "pubmap2002.json"} {
		if _, err := os.Stat(filepath.Join(data, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	out = run(t, "summary", "--path", data, "--years")
	if !strings.Contains(out, "2000-2002") {
		t.Errorf("summary output:\n%s", out)
	}

	run(t, "render", "--path", data, "--out", frames, "--ticks", "50", "--format", "svg")
	for _, y := range []string{"2000", "2001", "2002"} {
		b, err := os.ReadFile(filepath.Join(frames, "pubmap"+y+".svg"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Contains(b, []byte("<circle")) {
			t.Errorf("frame %s has no nodes", y)
		}
	}
}

func TestBuildIntoSQLiteAndServeFromIt(t *testing.T) {
	dir, input := writeInput(t)
	data := filepath.Join(dir, "data")
	db := filepath.Join(dir, "pubmap.db")

	run(t, "build", "--input", input, "--out", data)
	out := run(t, "import", "--from", data, "--db", db)
	if !strings.Contains(out, "imported 3 of 3 years") {
		t.Errorf("import output:\n%s", out)
	}

	out = run(t, "summary", "--source", "sqlite", "--path", db)
	if !strings.Contains(out, "2000-2002") {
		t.Errorf("summary output:\n%s", out)
	}

	frames := filepath.Join(dir, "frames")
	run(t, "render", "--source", "sqlite", "--path", db, "--out", frames, "--format", "json", "--from", "2001", "--to", "2001")
	if _, err := os.Stat(filepath.Join(frames, "pubmap2001.json")); err != nil {
		t.Error(err)
	}
}

func TestConfigFileAndCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubmap.yaml")
	if err := os.WriteFile(path, []byte("canvas:\n  width: 640\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := run(t, "config", "--config", path, "--format", "yaml")
	if !strings.Contains(out, "width: 640") {
		t.Errorf("config output:\n%s", out)
	}
}

func TestInvalidFlagsFail(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"summary", "--source", "ftp"})
	if err := root.Execute(); err == nil {
		t.Error("unknown source kind accepted")
	}

	root = NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"render", "--format", "png", "--path", t.TempDir()})
	if err := root.Execute(); err == nil {
		t.Error("unsupported render format accepted")
	}
}
