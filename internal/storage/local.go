package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local writes images under Dir and serves them from URLPrefix.
type Local struct {
	Dir       string
	URLPrefix string
}

// NewLocal creates the upload directory if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{Dir: dir, URLPrefix: "/uploads"}, nil
}

func (l *Local) Save(_ context.Context, r io.Reader) (string, error) {
	data, err := Normalize(r)
	if err != nil {
		return "", err
	}
	name := newName()
	if err := os.WriteFile(filepath.Join(l.Dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return strings.TrimRight(l.URLPrefix, "/") + "/" + name, nil
}
