package main

import (
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/GrantMcConachie/FlyWireInitialScrape/internal/catalog"
	"github.com/GrantMcConachie/FlyWireInitialScrape/internal/connectivity"
)

const testClassificationCSV = `root_id,class
1,A
2,A
3,B
`

const testConnectionsCSV = `pre_root_id,post_root_id,syn_count,nt_type
1,2,5,ACH
1,3,2,GABA
`

func resetFlags() {
	flagConfig = "connmap.yaml"
	flagClassification = ""
	flagConnections = ""
	flagOutDir = ""
	flagClass = ""
	flagName = ""
	flagAll = false
	flagPlotOut = ""
	flagNormalize = false
	flagSum = false
	flagCell = 0
	flagMapsDir = ""
	flagMapsPattern = "*_connections.json"
}

func setupDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "classification.csv"), []byte(testClassificationCSV), 0644); err != nil {
		t.Fatalf("writing classification fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "connections.csv"), []byte(testConnectionsCSV), 0644); err != nil {
		t.Fatalf("writing connections fixture: %v", err)
	}
	return dir
}

func extractRegion(t *testing.T, dir, class, name string) string {
	t.Helper()
	resetFlags()
	flagConfig = filepath.Join(dir, "connmap.yaml")
	flagClassification = filepath.Join(dir, "classification.csv")
	flagConnections = filepath.Join(dir, "connections.csv")
	flagOutDir = dir
	flagClass = class
	flagName = name

	if err := runExtract(extractCmd, nil); err != nil {
		t.Fatalf("extract: %v", err)
	}
	return mapPath(dir, name)
}

func TestExtract_EndToEnd(t *testing.T) {
	dir := setupDataDir(t)
	path := extractRegion(t, dir, "A", "regionA")

	m, err := connectivity.ReadFile(path)
	if err != nil {
		t.Fatalf("reading extracted map: %v", err)
	}
	if !reflect.DeepEqual(m.Keys(), []string{"1", "2"}) {
		t.Errorf("expected keys [1 2], got %v", m.Keys())
	}

	e, _ := m.Entry("1")
	if !reflect.DeepEqual(e.Downstream, []uint64{2, 3}) {
		t.Errorf("expected downstream [2 3], got %v", e.Downstream)
	}
	if !reflect.DeepEqual(e.Strength, []int64{5, 2}) {
		t.Errorf("expected strength [5 2], got %v", e.Strength)
	}

	// The run lands in the catalog with its digests.
	cat, err := catalog.Open(dir)
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	defer cat.Close()

	runs, err := cat.ListRuns()
	if err != nil {
		t.Fatalf("listing runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}
	if runs[0].Region != "regionA" || runs[0].Neurons != 2 || runs[0].Connections != 2 {
		t.Errorf("unexpected run: %+v", runs[0])
	}
	if runs[0].MapDigest == "" || runs[0].ConnectionsDigest == "" {
		t.Error("expected digests to be recorded")
	}
}

func TestExtract_RequiresClassOrAll(t *testing.T) {
	dir := setupDataDir(t)
	resetFlags()
	flagConfig = filepath.Join(dir, "connmap.yaml")

	if err := runExtract(extractCmd, nil); err == nil {
		t.Error("expected error without --class or --all, got nil")
	}
}

func TestPlotSingle(t *testing.T) {
	dir := setupDataDir(t)
	path := extractRegion(t, dir, "A", "regionA")

	out := filepath.Join(dir, "regionA.png")
	resetFlags()
	flagConfig = filepath.Join(dir, "connmap.yaml")
	flagPlotOut = out

	if err := runPlotSingle(plotSingleCmd, []string{path}); err != nil {
		t.Fatalf("plot single: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("opening png: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decoding png: %v", err)
	}

	// 2 neurons at the default cell size of 4.
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Errorf("expected 8x8 image, got %v", img.Bounds())
	}
}

func TestPlotSingle_NormalizeEmpty(t *testing.T) {
	dir := setupDataDir(t)
	// Class B has one neuron with no outgoing connections: all-zero matrix.
	path := extractRegion(t, dir, "B", "regionB")

	resetFlags()
	flagConfig = filepath.Join(dir, "connmap.yaml")
	flagPlotOut = filepath.Join(dir, "regionB.png")
	flagNormalize = true

	if err := runPlotSingle(plotSingleCmd, []string{path}); err == nil {
		t.Error("expected a normalize error for an all-zero matrix, got nil")
	}
}

func TestPlotPair(t *testing.T) {
	dir := setupDataDir(t)
	pathA := extractRegion(t, dir, "A", "regionA")
	pathB := extractRegion(t, dir, "B", "regionB")

	out := filepath.Join(dir, "pair.png")
	resetFlags()
	flagConfig = filepath.Join(dir, "connmap.yaml")
	flagPlotOut = out

	if err := runPlotPair(plotPairCmd, []string{pathA, pathB}); err != nil {
		t.Fatalf("plot pair: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("expected paired png to exist: %v", err)
	}
}

func TestDownstream(t *testing.T) {
	dir := setupDataDir(t)
	path := extractRegion(t, dir, "A", "regionA")

	resetFlags()
	flagConfig = filepath.Join(dir, "connmap.yaml")
	flagClassification = filepath.Join(dir, "classification.csv")

	if err := runDownstream(downstreamCmd, []string{path}); err != nil {
		t.Fatalf("downstream: %v", err)
	}
}

func TestMapsList(t *testing.T) {
	dir := setupDataDir(t)
	extractRegion(t, dir, "A", "regionA")

	resetFlags()
	flagConfig = filepath.Join(dir, "connmap.yaml")
	flagMapsDir = dir
	flagMapsPattern = "*_connections.json"

	if err := runMapsList(mapsListCmd, nil); err != nil {
		t.Fatalf("maps list: %v", err)
	}
}
