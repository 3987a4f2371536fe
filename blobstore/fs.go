// CLAUDE:SUMMARY Filesystem blobstore: traversal-guarded key→path mapping with content-type sidecars.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const metaSuffix = ".ctype"

// FS is a filesystem-backed Store rooted at a directory.
type FS struct {
	root string
}

// NewFS creates a filesystem store rooted at dir, creating it if missing.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root: %w", err)
	}
	return &FS{root: dir}, nil
}

func (s *FS) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("blobstore: invalid key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put writes the object, overwriting any previous attempt's data at this key.
func (s *FS) Put(_ context.Context, key string, data []byte, contentType string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("blobstore: mkdir: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("blobstore: write %s: %w", key, err)
	}
	if err := os.WriteFile(p+metaSuffix, []byte(contentType), 0o644); err != nil {
		return fmt.Errorf("blobstore: write meta %s: %w", key, err)
	}
	return nil
}

// Get retrieves an object by key.
func (s *FS) Get(_ context.Context, key string) (*Object, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", key, err)
	}
	ct, _ := os.ReadFile(p + metaSuffix)
	return &Object{Data: data, ContentType: string(ct)}, nil
}

// List returns all keys under prefix, in lexical order.
func (s *FS) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(p, metaSuffix) {
			return err
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: list: %w", err)
	}
	return keys, nil
}

// Delete removes an object. Deleting a missing key is not an error.
func (s *FS) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blobstore: delete %s: %w", key, err)
	}
	os.Remove(p + metaSuffix)
	return nil
}
