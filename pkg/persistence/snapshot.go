// Package persistence implements the on-disk snapshot container: a
// CRC-checked binary frame written atomically via a temp file and rename,
// so a crash mid-save never clobbers the previous good snapshot.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"
)

// SaveSnapshot writes the payload to path atomically. The data is framed
// with a CRC32 checksum and fsynced before the rename.
func SaveSnapshot(path string, payload []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if err := WriteFrame(tmp, payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write snapshot frame: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

// LoadSnapshot reads and validates a snapshot file, returning its payload.
func LoadSnapshot(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	payload, err := ReadFrame(f)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return payload, nil
}
