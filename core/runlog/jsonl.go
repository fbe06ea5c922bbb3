package runlog

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// JSONLStore stores records in a JSONL file.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

func (s *JSONLStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(rec)
}

func (s *JSONLStore) Query(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	res, err := scan(f, q, nil)
	if err != nil {
		return nil, err
	}
	return q.limit(res), nil
}

func (s *JSONLStore) Close() error { return nil }

// scan appends the matching records of r to res. Malformed lines are skipped.
func scan(r io.Reader, q Query, res []Record) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if q.Match(rec) {
			res = append(res, rec)
		}
	}
	return res, scanner.Err()
}
