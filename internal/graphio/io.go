package graphio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ReadRecords loads a JSON array of objects from path.
func ReadRecords(path string) ([]*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &InputMissingError{Path: path}
		}
		return nil, &ParseError{Path: path, Index: -1, Err: err}
	}
	return DecodeRecords(path, data)
}

// DecodeRecords parses data as a JSON array of objects. name is only used in
// error messages.
func DecodeRecords(name string, data []byte) ([]*Record, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, &ParseError{Path: name, Index: -1, Err: err}
	}

	records := make([]*Record, 0, len(elems))
	for i, raw := range elems {
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, &ParseError{Path: name, Index: i, Err: errors.New("null record")}
		}
		r := NewRecord()
		if err := r.UnmarshalJSON(raw); err != nil {
			return nil, &ParseError{Path: name, Index: i, Err: err}
		}
		records = append(records, r)
	}
	return records, nil
}

// WriteRecords writes records to path as an indented JSON array that
// ReadRecords can load again.
func WriteRecords(path string, records []*Record) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		if records == nil {
			records = []*Record{}
		}
		return enc.Encode(records)
	})
}

// WriteFileAtomic writes a file through a temporary sibling and renames it
// into place, so readers never observe a partially written file.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
