package project

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSource reads projects from disk. Path is either a single JSON file,
// returned for every id, or a directory of <id>.json files. Both the API
// envelope ({"data": {...}}) and a bare record are accepted.
type FileSource struct {
	Path string
}

// NewFileSource creates a file-backed source.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Fetch reads the project with the given id.
func (f *FileSource) Fetch(ctx context.Context, id string) (*Record, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat project path: %w", err)
	}

	path := f.Path
	if info.IsDir() {
		if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
			return nil, fmt.Errorf("invalid project id: %q", id)
		}
		path = filepath.Join(f.Path, id+".json")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	rec, err := DecodeRecord(data)
	if err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return rec, nil
}

// DecodeRecord decodes either the API envelope or a bare record.
func DecodeRecord(data []byte) (*Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse project JSON: %w", err)
	}

	if inner, ok := fields["data"]; ok {
		data = inner
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse project record: %w", err)
	}
	return &rec, nil
}
