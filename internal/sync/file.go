package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileDestination writes the export to a local file. The file is replaced
// atomically so readers never see a partial snapshot.
type FileDestination struct {
	path string
}

// NewFileDestination returns a destination writing to path.
func NewFileDestination(path string) *FileDestination {
	return &FileDestination{path: path}
}

// Name identifies the destination in logs.
func (d *FileDestination) Name() string {
	return "file:" + d.path
}

// Write replaces the file with data.
func (d *FileDestination) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFileAtomic(d.path, data)
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// WriterDestination writes the export to an io.Writer such as stdout.
type WriterDestination struct {
	name string
	w    io.Writer
}

// NewWriterDestination returns a destination writing to w.
func NewWriterDestination(name string, w io.Writer) *WriterDestination {
	return &WriterDestination{name: name, w: w}
}

// Name identifies the destination in logs.
func (d *WriterDestination) Name() string { return d.name }

// Write copies data to the writer.
func (d *WriterDestination) Write(_ context.Context, data []byte) error {
	_, err := d.w.Write(data)
	return err
}
