package ingest

import (
	"context"
	"strings"
	"testing"
)

const snapshotJSON = `{
  "nodes": [{"id": 0, "name": "Volk,H", "power": 30}, {"id": "1", "name": "Reinke,S", "power": 12}],
  "edges": [{"source": 0, "target": 1, "weight": 4}],
  "info": {"nodes": "{\"count\":2,\"min\":12,\"50%\":21,\"75%\":25,\"max\":30}", "links": {"count": 1, "min": 4, "50%": 4, "max": 4}}
}`

func TestDecodeSnapshotMixedIDs(t *testing.T) {
	snap, err := DecodeSnapshot(strings.NewReader(snapshotJSON))
	if err != nil {
		t.Fatal(err)
	}
	if snap.Nodes[0].ID != "0" || snap.Edges[0].Target != "1" {
		t.Errorf("ids = %q, %q", snap.Nodes[0].ID, snap.Edges[0].Target)
	}
	if snap.Info.Nodes.Max != 30 || snap.Info.Links.P50 != 4 {
		t.Errorf("info = %+v", snap.Info)
	}
}

func TestJSONProcessorArray(t *testing.T) {
	data := `[{"year": 2001, "nodes": [{"id": "a", "power": 1}], "edges": []},
	          {"year": 1999, "nodes": [{"id": "a", "power": 5}, {"id": "b", "power": 2}], "edges": [{"source": "a", "target": "b", "weight": 2}]}]`
	ds, err := NewJSONProcessor().ProcessData(context.Background(), []byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Snapshots) != 2 {
		t.Fatalf("snapshots = %d", len(ds.Snapshots))
	}
	if ds.Summary.Year != [2]int{1999, 2001} {
		t.Errorf("summary years = %v", ds.Summary.Year)
	}
	// a's last-seen power is from 2001.
	if ds.Summary.Nodes.Count != 2 || ds.Summary.Nodes.Max != 2 {
		t.Errorf("summary nodes = %+v", ds.Summary.Nodes)
	}
}

func TestJSONProcessorRequiresYear(t *testing.T) {
	if _, err := NewJSONProcessor().ProcessData(context.Background(), []byte(snapshotJSON)); err == nil {
		t.Error("snapshot without year accepted")
	}
}

func TestDecodeSummaryRejectsEmptyRange(t *testing.T) {
	if _, err := DecodeSummary(strings.NewReader(`{"year": [2005, 1990]}`)); err == nil {
		t.Error("inverted year range accepted")
	}
	sum, err := DecodeSummary(strings.NewReader(`{"year": [1990, 2005], "nodes": "{\"count\": 3, \"min\": 1, \"50%\": 2, \"75%\": 2, \"max\": 9}"}`))
	if err != nil {
		t.Fatal(err)
	}
	if sum.MinYear() != 1990 || sum.MaxYear() != 2005 || sum.Nodes.Max != 9 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestReadPublications(t *testing.T) {
	tsv := "title\tpublication_date\tauthors\n" +
		"Paper one\t1998-03-01\t['Volk,H', 'Reinke,S']\n" +
		"Paper two\t2001\tVolk,H; Meyer,A ;\n"
	pubs, err := ReadPublications(strings.NewReader(tsv))
	if err != nil {
		t.Fatal(err)
	}
	if len(pubs) != 2 {
		t.Fatalf("pubs = %d", len(pubs))
	}
	if pubs[0].Year != 1998 || len(pubs[0].Authors) != 2 || pubs[0].Authors[1] != "Reinke,S" {
		t.Errorf("first = %+v", pubs[0])
	}
	if pubs[1].Year != 2001 || len(pubs[1].Authors) != 2 || pubs[1].Authors[1] != "Meyer,A" {
		t.Errorf("second = %+v", pubs[1])
	}
}

func TestReadPublicationsErrors(t *testing.T) {
	if _, err := ReadPublications(strings.NewReader("title,authors\nx,a;b\n")); err == nil {
		t.Error("missing year column accepted")
	}
	if _, err := ReadPublications(strings.NewReader("year,authors\nsoon,a;b\n")); err == nil {
		t.Error("bad year accepted")
	}
}

func TestGetProcessor(t *testing.T) {
	for format, name := range map[string]string{"json": "JSON Processor", "CSV": "CSV Processor", "tsv": "CSV Processor"} {
		p, err := GetProcessor(format, nil)
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if p.GetName() != name {
			t.Errorf("%s: name = %q", format, p.GetName())
		}
	}
	if _, err := GetProcessor("log", nil); err == nil {
		t.Error("unknown format accepted")
	}
}
