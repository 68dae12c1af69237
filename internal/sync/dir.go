package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirDestination writes the snapshot to a file in a local directory. The
// file is replaced atomically so readers never see a partial workbook.
type DirDestination struct {
	dir  string
	file string
}

// NewDirDestination creates a directory destination writing dir/file.
func NewDirDestination(dir, file string) *DirDestination {
	return &DirDestination{dir: dir, file: file}
}

// Name returns the target path.
func (d *DirDestination) Name() string {
	return filepath.Join(d.dir, d.file)
}

// Write replaces the target file with data.
func (d *DirDestination) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := d.Name()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
