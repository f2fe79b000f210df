package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrInvalidName is returned when a file name would escape the sink
// directory or is empty.
var ErrInvalidName = errors.New("invalid file name")

// Sink stores named blobs.
type Sink interface {
	Save(ctx context.Context, name string, data []byte) error
}

// runDirLayout is the timestamp layout of run directories.
const runDirLayout = "20060102150405"

// RunDir returns the directory name used for a run started at t inside
// parent, for example "out/run-20240101120000". The timestamp is in UTC.
func RunDir(parent string, t time.Time) string {
	return filepath.Join(parent, "run-"+t.UTC().Format(runDirLayout))
}

// LocalSink writes files into a single directory.
type LocalSink struct {
	dir string
}

// NewLocalSink returns a sink writing into dir. The directory is created
// lazily.
func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{dir: dir}
}

// Dir returns the target directory.
func (s *LocalSink) Dir() string {
	return s.dir
}

// Save writes data to name inside the sink directory, replacing any
// existing file.
func (s *LocalSink) Save(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
