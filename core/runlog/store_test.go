package runlog

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func sampleRecords(now time.Time) []Record {
	return []Record{
		{Timestamp: now.Add(-2 * time.Hour), RunID: "r1", Status: "optimal", ClientIDs: []string{"c1", "c2"}},
		{Timestamp: now.Add(-time.Hour), RunID: "r2", Status: "infeasible"},
		{Timestamp: now, RunID: "r3", Status: "optimal", ClientIDs: []string{"c2"}},
	}
}

func checkStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	for _, r := range sampleRecords(now) {
		if err := store.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	cases := []struct {
		name string
		q    Query
		want []string
	}{
		{"all", Query{}, []string{"r1", "r2", "r3"}},
		{"status", Query{Status: "optimal"}, []string{"r1", "r3"}},
		{"client", Query{ClientID: "c1"}, []string{"r1"}},
		{"since", Query{Start: now.Add(-90 * time.Minute)}, []string{"r2", "r3"}},
		{"limit", Query{Limit: 1}, []string{"r3"}},
	}
	for _, c := range cases {
		out, err := store.Query(ctx, c.q)
		if err != nil {
			t.Fatalf("%s: query: %v", c.name, err)
		}
		if len(out) != len(c.want) {
			t.Fatalf("%s: got %d records, want %d", c.name, len(out), len(c.want))
		}
		for i, id := range c.want {
			if out[i].RunID != id {
				t.Fatalf("%s: record %d is %s, want %s", c.name, i, out[i].RunID, id)
			}
		}
	}
}

func TestJSONLStore(t *testing.T) {
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	checkStore(t, store)
}

func TestRotatingJSONLStore(t *testing.T) {
	store, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "logs", "runs.jsonl"), 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	checkStore(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore("file:runlog_test.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	checkStore(t, store)
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{})
	if err != nil {
		t.Fatalf("open default: %v", err)
	}
	if _, ok := s.(NopStore); !ok {
		t.Fatalf("expected NopStore, got %T", s)
	}
	s, err = Open(Config{Backend: "jsonl", Path: filepath.Join(t.TempDir(), "r.jsonl")})
	if err != nil {
		t.Fatalf("open jsonl: %v", err)
	}
	if _, ok := s.(*JSONLStore); !ok {
		t.Fatalf("expected JSONLStore, got %T", s)
	}
	if _, err := Open(Config{Backend: "mongo"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if err := (Config{Backend: "mongo"}).Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRecord_JSON(t *testing.T) {
	data, err := json.Marshal(Record{Timestamp: time.Unix(0, 0), RunID: "r", Status: "optimal"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"timestamp", "run_id", "status", "consultations", "duration_ms"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing key %s", k)
		}
	}
	if _, ok := m["client_ids"]; ok {
		t.Errorf("empty client_ids should be omitted")
	}
}
