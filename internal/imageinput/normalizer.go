package imageinput

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nailart/internal/models"
)

// maxRemoteBytes bounds a single referenced image download.
const maxRemoteBytes = 20 << 20

var (
	// ErrInvalidData marks an inline image whose payload is not valid base64.
	ErrInvalidData = errors.New("invalid inline image data")
	// ErrFetch marks a failed download of a referenced remote image.
	ErrFetch = errors.New("remote image fetch failed")
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Cacher is satisfied by *cache.Cache from patrickmn/go-cache.
type Cacher interface {
	Get(key string) (any, bool)
	Set(key string, value any, d time.Duration)
}

type Option func(*Normalizer)

// WithCache keeps fetched remote images for ttl, keyed by URL.
func WithCache(c Cacher, ttl time.Duration) Option {
	return func(n *Normalizer) {
		n.cache = c
		n.cacheTTL = ttl
	}
}

// WithPrivateNetworkBlock rejects URLs resolving to private, loopback or
// link-local addresses.
func WithPrivateNetworkBlock() Option {
	return func(n *Normalizer) { n.blockPrivate = true }
}

// ObjectReader is satisfied by objectstore.Store.
type ObjectReader interface {
	Read(ctx context.Context, objectPath string) ([]byte, string, error)
}

// WithObjectStore reads URLs under baseURL straight from the store instead of
// over HTTP. Saved thumbnails picked as references resolve this way even when
// the store is served from a private address.
func WithObjectStore(baseURL string, r ObjectReader) Option {
	return func(n *Normalizer) {
		n.storeBase = strings.TrimRight(baseURL, "/") + "/"
		n.store = r
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(n *Normalizer) { n.log = l }
}

// Normalizer resolves raw image strings into payloads for the generation API.
type Normalizer struct {
	client       HTTPDoer
	cache        Cacher
	cacheTTL     time.Duration
	blockPrivate bool
	storeBase    string
	store        ObjectReader
	log          *zap.Logger
}

func NewNormalizer(client HTTPDoer, opts ...Option) *Normalizer {
	if client == nil {
		client = http.DefaultClient
	}
	n := &Normalizer{client: client, log: zap.NewNop()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize resolves images in order. Data URLs are decoded in place, http(s)
// URLs are downloaded concurrently, anything else is skipped with a warning.
// The returned slice keeps the relative order of the accepted inputs.
func (n *Normalizer) Normalize(ctx context.Context, images []string) ([]models.ImagePayload, error) {
	const op = "imageinput.Normalize"

	slots := make([]*models.ImagePayload, len(images))
	remote := make(map[int]string)

	for i, raw := range images {
		ref, ok := ParseReference(raw)
		if !ok {
			n.log.Warn("skipping unrecognized image reference", zap.Int("index", i), zap.Int("length", len(raw)))
			continue
		}

		switch ref.Kind {
		case models.ReferenceInline:
			data, err := base64.StdEncoding.DecodeString(ref.Base64Data)
			if err != nil {
				return nil, fmt.Errorf("%s: image %d: %w: %v", op, i, ErrInvalidData, err)
			}
			slots[i] = &models.ImagePayload{MimeType: ref.MimeType, Bytes: data}
		case models.ReferenceRemote:
			remote[i] = ref.URL
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for i, rawURL := range remote {
		i, rawURL := i, rawURL
		eg.Go(func() error {
			p, err := n.fetch(egCtx, rawURL)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			slots[i] = p
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]models.ImagePayload, 0, len(images))
	for _, p := range slots {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (n *Normalizer) fetch(ctx context.Context, rawURL string) (*models.ImagePayload, error) {
	if objectPath, ok := n.storedObject(rawURL); ok {
		data, mimeType, err := n.store.Read(ctx, objectPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		if mimeType == "" {
			mimeType = models.DefaultMimeType
		}
		return &models.ImagePayload{MimeType: mimeType, Bytes: data}, nil
	}

	if n.cache != nil {
		if v, ok := n.cache.Get(rawURL); ok {
			if p, ok := v.(models.ImagePayload); ok {
				return &p, nil
			}
			n.log.Warn("unexpected cached value type", zap.String("url", rawURL), zap.String("type", fmt.Sprintf("%T", v)))
		}
	}

	if n.blockPrivate {
		if err := checkPublicURL(rawURL); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrFetch, rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if len(data) > maxRemoteBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFetch, rawURL, maxRemoteBytes)
	}

	p := &models.ImagePayload{MimeType: contentType(resp.Header), Bytes: data}
	if n.cache != nil {
		n.cache.Set(rawURL, *p, n.cacheTTL)
	}
	return p, nil
}

// storedObject maps a public URL of the configured store back to its
// object path.
func (n *Normalizer) storedObject(rawURL string) (string, bool) {
	if n.store == nil || !strings.HasPrefix(rawURL, n.storeBase) {
		return "", false
	}
	rest, _, _ := strings.Cut(strings.TrimPrefix(rawURL, n.storeBase), "?")
	rest, _, _ = strings.Cut(rest, "#")
	objectPath, err := url.PathUnescape(rest)
	if err != nil || objectPath == "" {
		return "", false
	}
	return objectPath, true
}

func contentType(h http.Header) string {
	ct := h.Get("Content-Type")
	if ct == "" {
		return models.DefaultMimeType
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ct
}
