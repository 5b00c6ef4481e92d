package attachment

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

const filesystemBackend = "filesystem"

// FilesystemSink stores attachments as files under
// <root>/<namespace>/<bucket>/<name>.
type FilesystemSink struct {
	fs  afero.Fs
	dir string
}

// NewFilesystemSink creates a sink rooted at root on the given filesystem.
// A nil fs means the host filesystem.
func NewFilesystemSink(fs afero.Fs, root, namespace, bucket string) (*FilesystemSink, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if namespace == "" || bucket == "" {
		return nil, fmt.Errorf("filesystem sink requires a namespace and a bucket")
	}
	if err := validName(namespace); err != nil {
		return nil, fmt.Errorf("namespace: %w", err)
	}
	if err := validName(bucket); err != nil {
		return nil, fmt.Errorf("bucket: %w", err)
	}

	dir := filepath.Join(root, namespace, bucket)
	if exists, _ := afero.DirExists(fs, dir); !exists {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}
	return &FilesystemSink{fs: fs, dir: dir}, nil
}

// Dir returns the directory that holds stored objects.
func (s *FilesystemSink) Dir() string {
	return s.dir
}

// Store writes content to a temporary file and renames it over the target,
// so readers never observe a partial object.
func (s *FilesystemSink) Store(ctx context.Context, name string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return &StorageError{Backend: filesystemBackend, Name: name, Err: err}
	}
	if err := validName(name); err != nil {
		return &StorageError{Backend: filesystemBackend, Name: name, Err: err}
	}

	target := filepath.Join(s.dir, name)
	tmp := target + ".partial"
	if err := afero.WriteFile(s.fs, tmp, content, 0o644); err != nil {
		return &StorageError{Backend: filesystemBackend, Name: name, Err: err}
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return &StorageError{Backend: filesystemBackend, Name: name, Err: err}
	}
	return nil
}
