// Package statefile persists pipeline state as JSON documents.
//
// Every intermediate artifact the pipeline writes between cycles (job cache,
// active jobs, credit-hold sets, readiness views, user-entered snapshot) is
// a standalone JSON file under the save directory. Loads are deliberately
// forgiving: a missing or corrupt file yields the caller's zero value so the
// pipeline does a cold rebuild instead of failing the run.
package statefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads the JSON document at path into out.
//
// A missing, empty, or unparseable file is not an error: out is left at its
// zero value and ok is false. Only genuine I/O failures (permissions, bad
// descriptor) are returned.
func Load(path string, out any) (ok bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read state %s: %w", path, err)
	}
	if len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		// Corrupt state forces a cold rebuild, never a hard failure.
		return false, nil
	}
	return true, nil
}

// Save writes v as indented JSON to path atomically (temp file + rename) so
// a crash mid-write never leaves a truncated document behind.
func Save(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}
