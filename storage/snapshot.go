package storage

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
)

// SaveSnapshot writes a Backup of store to path. The snapshot is written to a
// temporary file in the same directory first and renamed into place, so a
// reader never sees a partial snapshot.
func SaveSnapshot(store Store, path string) error {
	snapshot, err := store.Backup()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("Failed to create snapshot dir %s: %w", dir, err)
	}

	tmp, err := ioutil.TempFile(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("Failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(snapshot); err != nil {
		tmp.Close()
		return fmt.Errorf("Failed to write snapshot: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("Failed to sync snapshot: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("Failed to close snapshot: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

// LoadSnapshot restores store from the snapshot at path. A missing file is
// not an error, and reports false.
func LoadSnapshot(store Store, path string) (bool, error) {
	snapshot, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Failed to read snapshot %s: %w", path, err)
	}

	if err := store.Restore(snapshot); err != nil {
		return false, err
	}

	return true, nil
}
