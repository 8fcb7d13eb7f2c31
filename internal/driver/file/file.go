// Package file provides resources whose state is the content of a file.
//
// A file holds one JSON value, or plain text which is read as a string.
// File resources are event-driven: a Watcher raises the cache's change
// signal whenever a watched file is written, created, renamed or removed.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nerrad567/gray-logic-sync/internal/resource"
)

// maxFileSize caps how much of a file is read.
const maxFileSize = 64 << 10

// Resource reads and writes a state file.
type Resource struct {
	resource.Base
	path string
}

// New creates a file resource for path.
func New(m resource.Meta, path string) *Resource {
	m.Event = true
	return &Resource{Base: resource.NewBase(m), path: filepath.Clean(path)}
}

// Path returns the backing file path.
func (r *Resource) Path() string { return r.path }

// State implements resource.Resource. A missing or empty file is unknown.
func (r *Resource) State(context.Context) (any, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", resource.ErrReadFailed, r.path, err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("%w: %s: file larger than %d bytes", resource.ErrReadFailed, r.path, maxFileSize)
	}
	return parse(data), nil
}

// SetState implements resource.Writer. The value is written as JSON through
// a temporary file and a rename, so readers never see a partial write.
func (r *Resource) SetState(_ context.Context, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %v", resource.ErrWriteFailed, r.Name(), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), "."+filepath.Base(r.path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %v", resource.ErrWriteFailed, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Gone after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing %s: %v", resource.ErrWriteFailed, r.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: writing %s: %v", resource.ErrWriteFailed, r.path, err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("%w: replacing %s: %v", resource.ErrWriteFailed, r.path, err)
	}
	return nil
}

func parse(data []byte) any {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v
	}
	return text
}
