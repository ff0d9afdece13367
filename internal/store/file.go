package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/hazard-services/internal/domain"
)

// envelope wraps a store's JSON object with a revision counter. The counter
// is the TOCTOU guard: a write names the revision it read, and a mismatch on
// disk means another session wrote in between.
type envelope struct {
	Revision int64           `json:"revision"`
	Data     json.RawMessage `json:"data"`
}

// readFile loads a store file into v and returns the revision read. A
// missing file is an empty store at revision 0.
func readFile(path string, v any) (int64, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", domain.ErrStoreUnavailable, path, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, fmt.Errorf("%w: decode %s: %v", domain.ErrStoreUnavailable, path, err)
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, v); err != nil {
			return 0, fmt.Errorf("%w: decode %s contents: %v", domain.ErrStoreUnavailable, path, err)
		}
	}
	return env.Revision, nil
}

// writeFile writes v atomically via temp-file+rename, advancing the revision.
// expectRevision must match what is currently on disk or the write fails with
// ErrStoreConflict. Callers hold the store's file lock across the
// read-mutate-write sequence; the revision check catches writers that did not.
func writeFile(path string, v any, expectRevision int64) error {
	var current any
	onDisk, err := readFile(path, &current)
	if err != nil {
		return err
	}
	if onDisk != expectRevision {
		return fmt.Errorf("%w: %s is at revision %d, expected %d",
			domain.ErrStoreConflict, path, onDisk, expectRevision)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode store contents: %w", err)
	}
	env := envelope{Revision: expectRevision + 1, Data: data}
	payload, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store envelope: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", domain.ErrStoreUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp file: %v", domain.ErrStoreUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync temp file: %v", domain.ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", domain.ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: rename into place: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
