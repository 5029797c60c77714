package index

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Load reads the store at path into a map keyed by filename.
// A missing file yields an empty map. A malformed line fails the whole load;
// the error names the offending line. Blank lines are skipped.
func Load(path string) (map[string]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]*Record{}, nil
		}
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	defer f.Close()

	records := make(map[string]*Record)
	r := bufio.NewReader(f)
	lineNo := 0
	for {
		line, readErr := r.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				var rec Record
				if err := json.Unmarshal(trimmed, &rec); err != nil {
					return nil, fmt.Errorf("store %s line %d: %w", path, lineNo, err)
				}
				if rec.Filename == "" {
					return nil, fmt.Errorf("store %s line %d: record has no filename", path, lineNo)
				}
				records[rec.Filename] = &rec
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read store %s: %w", path, readErr)
		}
	}
	return records, nil
}

// storeWriter appends records to a freshly truncated store, one JSON object
// per line. Every record reaches the file before the next one is produced.
type storeWriter struct {
	f   *os.File
	enc *json.Encoder
}

func createStore(path string) (*storeWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create store %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &storeWriter{f: f, enc: enc}, nil
}

func (w *storeWriter) write(rec *Record) error {
	return w.enc.Encode(rec)
}

func (w *storeWriter) close() error {
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
