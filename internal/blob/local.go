package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type Local struct {
	rootDir        string
	maxUploadBytes int64
}

var _ Store = (*Local)(nil)

func NewLocal(rootDir string, maxUploadBytes int64) (*Local, error) {
	if strings.TrimSpace(rootDir) == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}
	if maxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be > 0")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root directory: %w", err)
	}

	return &Local{rootDir: rootDir, maxUploadBytes: maxUploadBytes}, nil
}

func (l *Local) MaxUploadBytes() int64 {
	return l.maxUploadBytes
}

// Ping checks that the root directory is still a reachable directory.
func (l *Local) Ping(_ context.Context) error {
	info, err := os.Stat(l.rootDir)
	if err != nil {
		return fmt.Errorf("stat blob root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("blob root %s is not a directory", l.rootDir)
	}
	return nil
}

func (l *Local) Put(_ context.Context, key string, src io.Reader) (int64, error) {
	absPath, err := l.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return 0, fmt.Errorf("creating blob directory: %w", err)
	}

	written, err := spool(filepath.Dir(absPath), src, l.maxUploadBytes, func(tmpPath string) error {
		return os.Rename(tmpPath, absPath)
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	absPath, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening blob file: %w", err)
	}
	return f, nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	absPath, err := l.resolve(key)
	if err != nil {
		return err
	}

	err = os.Remove(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting blob file: %w", err)
	}
	return nil
}

func (l *Local) resolve(key string) (string, error) {
	clean, err := validateKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.rootDir, filepath.FromSlash(clean)), nil
}

// spool screens src into a temp file under dir, enforcing maxBytes, and hands
// the finished file to commit. The temp file is always removed afterwards.
func spool(dir string, src io.Reader, maxBytes int64, commit func(tmpPath string) error) (int64, error) {
	body, err := screen(src)
	if err != nil {
		return 0, err
	}

	tmpFile, err := os.CreateTemp(dir, "blob-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temporary blob file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	written, err := io.Copy(tmpFile, io.LimitReader(body, maxBytes+1))
	if err != nil {
		return 0, fmt.Errorf("writing blob file: %w", err)
	}
	if written > maxBytes {
		return 0, ErrFileTooLarge
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("closing temporary blob file: %w", err)
	}

	if err := commit(tmpPath); err != nil {
		return 0, fmt.Errorf("finalizing blob file: %w", err)
	}
	return written, nil
}
