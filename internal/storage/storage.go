package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Uploader stores a blob under bucket/path and returns a public URL for it.
type Uploader interface {
	Upload(ctx context.Context, bucket, path string, r io.Reader) (string, error)
}

// Disk writes uploads to the local filesystem and serves them under baseURL.
type Disk struct {
	root    string
	baseURL string
}

// NewDisk creates the root directory if missing.
func NewDisk(root, baseURL string) (*Disk, error) {
	if root == "" {
		return nil, fmt.Errorf("upload root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &Disk{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *Disk) Upload(_ context.Context, bucket, path string, r io.Reader) (string, error) {
	name := filepath.Base(path)
	dir := filepath.Join(d.root, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create bucket dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("%s/uploads/%s/%s", d.baseURL, bucket, name), nil
}
