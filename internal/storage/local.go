package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Local stores files on the local disk under a root directory.
type Local struct {
	root string
}

func NewLocal(root string) *Local {
	return &Local{root: root}
}

func (l *Local) abs(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(path))
}

func (l *Local) Read(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(l.abs(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (l *Local) Write(_ context.Context, path string, content []byte) error {
	abs := l.abs(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(abs, content, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (l *Local) Delete(_ context.Context, path string) error {
	err := os.Remove(l.abs(path))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	return err
}
