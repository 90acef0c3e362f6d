package tokenstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File persists the token on disk for CLI use. The file is created with 0600
// and holds nothing but the raw token.
type File struct {
	path string
}

// NewFile returns a store backed by path. The parent directory is created on
// first Save.
func NewFile(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("tokenstore: path is required")
	}
	return &File{path: path}, nil
}

// DefaultPath places the token under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("tokenstore: resolve config dir: %w", err)
	}
	return filepath.Join(dir, "firecloud", "token"), nil
}

func (f *File) Token() (string, bool) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", false
	}
	return token, true
}

func (f *File) Save(token string) error {
	if token == "" {
		return f.Clear()
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("tokenstore: create dir: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("tokenstore: write token: %w", err)
	}
	return nil
}

func (f *File) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("tokenstore: remove token: %w", err)
	}
	return nil
}
