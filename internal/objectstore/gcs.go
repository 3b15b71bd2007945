package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS stores objects in a Cloud Storage bucket that is publicly readable.
type GCS struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewGCS(ctx context.Context, bucket, baseURL, credentialsFile string) (*GCS, error) {
	const op = "objectstore.NewGCS"

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &GCS{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (g *GCS) Close() error { return g.client.Close() }

func (g *GCS) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	const op = "objectstore.GCS.Upload"

	w := g.client.Bucket(g.bucket).Object(objectPath).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000, immutable"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("%s: %v", op, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (g *GCS) Read(ctx context.Context, objectPath string) ([]byte, string, error) {
	const op = "objectstore.GCS.Read"

	r, err := g.client.Bucket(g.bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, "", fmt.Errorf("%s: %w: %s", op, ErrObjectNotFound, objectPath)
		}
		return nil, "", fmt.Errorf("%s: %v", op, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %v", op, err)
	}
	return data, r.Attrs.ContentType, nil
}

func (g *GCS) PublicURL(objectPath string) string {
	return publicURL(g.baseURL, objectPath)
}

func (g *GCS) Delete(ctx context.Context, objectPath string) error {
	const op = "objectstore.GCS.Delete"

	err := g.client.Bucket(g.bucket).Object(objectPath).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}
