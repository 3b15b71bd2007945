// Package objectstore stores thumbnail bytes and resolves their public URLs.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrInvalidPath    = errors.New("invalid object path")
	ErrObjectNotFound = errors.New("object not found")
)

type Store interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) error
	// Read returns the object's bytes and content type.
	Read(ctx context.Context, objectPath string) ([]byte, string, error)
	PublicURL(objectPath string) string
	Delete(ctx context.Context, objectPath string) error
}

// Local keeps objects under a directory on disk; the server exposes that
// directory as static files.
type Local struct {
	root    string
	baseURL string
}

func NewLocal(root, baseURL string) (*Local, error) {
	const op = "objectstore.NewLocal"
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *Local) Root() string { return l.root }

func (l *Local) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	const op = "objectstore.Local.Upload"

	full, err := l.resolve(objectPath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

// Read sniffs the content type from the stored bytes.
func (l *Local) Read(ctx context.Context, objectPath string) ([]byte, string, error) {
	const op = "objectstore.Local.Read"

	full, err := l.resolve(objectPath)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%s: %w: %s", op, ErrObjectNotFound, objectPath)
		}
		return nil, "", fmt.Errorf("%s: %v", op, err)
	}
	return data, mimetype.Detect(data).String(), nil
}

func (l *Local) PublicURL(objectPath string) string {
	return publicURL(l.baseURL, objectPath)
}

// Delete is idempotent: a missing object is not an error.
func (l *Local) Delete(ctx context.Context, objectPath string) error {
	const op = "objectstore.Local.Delete"

	full, err := l.resolve(objectPath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (l *Local) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if objectPath == "" || clean == "/" || clean != "/"+strings.TrimPrefix(objectPath, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
	}
	return filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func publicURL(baseURL, objectPath string) string {
	segments := strings.Split(strings.TrimPrefix(objectPath, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return baseURL + "/" + strings.Join(segments, "/")
}
