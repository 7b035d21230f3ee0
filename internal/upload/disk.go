package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskStorage writes profile images under Dir and serves them from
// {BaseURL}/{URLPrefix}/{name}.
type DiskStorage struct {
	Dir       string
	BaseURL   string
	URLPrefix string
}

func NewDiskStorage(dir, baseURL string) (*DiskStorage, error) {
	err := os.MkdirAll(dir, 0o755)

	if err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &DiskStorage{
		Dir:       dir,
		BaseURL:   baseURL,
		URLPrefix: "/uploads/profile",
	}, nil
}

func (s *DiskStorage) Store(ctx context.Context, f File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := objectName(f)
	path := filepath.Join(s.Dir, name)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)

	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}

	_, err = io.Copy(out, f.Reader)

	closeErr := out.Close()

	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	return name, nil
}

// Remove deletes a stored file. Removing a file that is already gone is not an
// error.
func (s *DiskStorage) Remove(_ context.Context, name string) error {
	if !safeName(name) {
		return fmt.Errorf("refusing to remove %q", name)
	}

	err := os.Remove(filepath.Join(s.Dir, name))

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}

	return nil
}

func (s *DiskStorage) URL(name string) string {
	return joinURL(s.BaseURL, s.URLPrefix, name)
}
