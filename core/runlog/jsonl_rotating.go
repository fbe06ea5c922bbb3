package runlog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingJSONLStore stores records in a JSONL file with automatic rotation.
type RotatingJSONLStore struct {
	logger *lumberjack.Logger
	path   string
	mu     sync.Mutex
}

// NewRotatingJSONLStore creates a store with rotation options in megabytes and days.
func NewRotatingJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingJSONLStore, error) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &RotatingJSONLStore{logger: lj, path: path}, nil
}

// Append writes the record and triggers rotation if needed.
func (s *RotatingJSONLStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.NewEncoder(s.logger).Encode(rec)
}

// Query reads the active file and every rotated backup, oldest records first.
func (s *RotatingJSONLStore) Query(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ext := filepath.Ext(s.path)
	files, err := filepath.Glob(strings.TrimSuffix(s.path, ext) + "*" + ext)
	if err != nil {
		return nil, err
	}
	var res []Record
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			continue
		}
		res, err = scan(f, q, res)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	return q.limit(res), nil
}

// Close closes the underlying writer.
func (s *RotatingJSONLStore) Close() error {
	return s.logger.Close()
}
