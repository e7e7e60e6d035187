package catalog

import (
	"errors"
	"testing"
)

func setupCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return cat
}

func TestRecordAndGetRun(t *testing.T) {
	cat := setupCatalog(t)

	id, err := cat.RecordRun(Run{
		Region:               "olfactory",
		Class:                "olfactory",
		Neurons:              42,
		Connections:          1234,
		MapPath:              "olfactory_connections.json",
		MapDigest:            "abc123",
		ClassificationDigest: "def456",
		ConnectionsDigest:    "789aaa",
	})
	if err != nil {
		t.Fatalf("recording run: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated run id")
	}

	r, err := cat.GetRun(id)
	if err != nil {
		t.Fatalf("getting run: %v", err)
	}
	if r.Region != "olfactory" || r.Neurons != 42 || r.Connections != 1234 {
		t.Errorf("unexpected run: %+v", r)
	}
	if r.CreatedAt == 0 {
		t.Error("expected created_at to be set")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	cat := setupCatalog(t)

	_, err := cat.GetRun("nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	cat := setupCatalog(t)

	if runs, err := cat.ListRuns(); err != nil || len(runs) != 0 {
		t.Fatalf("expected empty catalog, got %v runs, err %v", len(runs), err)
	}

	for _, region := range []string{"ALPN", "LHCENT"} {
		if _, err := cat.RecordRun(Run{Region: region, Class: region}); err != nil {
			t.Fatalf("recording run: %v", err)
		}
	}

	runs, err := cat.ListRuns()
	if err != nil {
		t.Fatalf("listing runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}
