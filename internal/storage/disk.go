package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Store is the object-storage contract the pipeline persists through:
// a byte blob plus content type under a path key, back comes a publicly
// resolvable URL.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
}

// Disk writes blobs under a local directory that the HTTP server exposes
// statically. BaseURL + PublicPath form the returned URL prefix.
type Disk struct {
	Dir        string
	BaseURL    string
	PublicPath string
}

func NewDisk(dir, baseURL, publicPath string) *Disk {
	return &Disk{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/"), PublicPath: publicPath}
}

func (d *Disk) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	full := filepath.Join(d.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", err
	}
	return d.BaseURL + path.Join(d.PublicPath, key), nil
}

func (d *Disk) Read(_ context.Context, key string) ([]byte, error) {
	full := filepath.Join(d.Dir, filepath.FromSlash(key))
	b, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("storage read %s: %w", key, err)
	}
	return b, nil
}
