// Package cache is the append-only, JSON-lines cache shared by the three
// oracle call sites (spec.md §4.2/§4.4/§9): plan compilation keyed by
// exact query text, intent classification keyed by phase+turn text, and
// alias-map generation keyed by raw input text. Grounded on the
// append-only audit-log pattern in the teacher corpus's
// steveyegge-beads `internal/audit` package (one JSON object per line,
// opened in append mode, never rewritten in place).
package cache

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// record is one line of the JSONL file.
type record struct {
	ID    string          `json:"id"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Store is a process-wide, file-backed append-only cache. Safe for
// concurrent use; the in-memory index is rebuilt from the file on Open
// and kept in sync as entries are appended.
type Store struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	index map[string]json.RawMessage
}

// Open loads (or creates) the JSONL file at path and rebuilds the
// in-memory key index from its contents.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	s := &Store{path: path, file: f, index: make(map[string]json.RawMessage)}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var rec record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue // skip a corrupt line rather than fail the whole cache
		}
		s.index[rec.Key] = rec.Value
	}
	if err := sc.Err(); err != nil {
		_ = f.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// Get looks up key and decodes its cached value into out. Returns false
// if the key has never been cached.
func (s *Store) Get(key string, out interface{}) (bool, error) {
	s.mu.Lock()
	raw, ok := s.index[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// All decodes every cached entry into fn's out parameter, invoking fn
// once per key. Used to rebuild derived state (e.g. a compiled alias
// dictionary) from the cache at process startup without re-querying the
// oracle.
func (s *Store) All(new func() interface{}, fn func(key string, value interface{}) error) error {
	s.mu.Lock()
	snapshot := make(map[string]json.RawMessage, len(s.index))
	for k, v := range s.index {
		snapshot[k] = v
	}
	s.mu.Unlock()

	for key, raw := range snapshot {
		out := new()
		if err := json.Unmarshal(raw, out); err != nil {
			continue // skip an entry that no longer matches the expected shape
		}
		if err := fn(key, out); err != nil {
			return err
		}
	}
	return nil
}

// Put appends a new record for key and updates the in-memory index. A
// key already present is not rewritten in place; the newest appended
// value wins in the in-memory index (the file itself retains history).
func (s *Store) Put(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	rec := record{ID: uuid.NewString(), Key: key, Value: raw}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return err
	}
	if err := s.file.Sync(); err != nil {
		return err
	}
	s.index[key] = raw
	return nil
}
