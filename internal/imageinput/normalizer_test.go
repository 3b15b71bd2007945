package imageinput

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nailart/internal/models"
)

// failingDoer fails the test if any request is made.
type failingDoer struct{ t *testing.T }

func (d failingDoer) Do(req *http.Request) (*http.Response, error) {
	d.t.Fatalf("unexpected request to %s", req.URL)
	return nil, errors.New("unreachable")
}

func dataURL(mimeType string, b []byte) string {
	return DataURL(mimeType, base64.StdEncoding.EncodeToString(b))
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
		kind models.ReferenceKind
		mime string
	}{
		{"png data url", "data:image/png;base64,AAAA", true, models.ReferenceInline, "image/png"},
		{"svg+xml data url", "data:image/svg+xml;base64,AAAA", true, models.ReferenceInline, "image/svg+xml"},
		{"https url", "https://cdn.example.com/a.png", true, models.ReferenceRemote, ""},
		{"http url", "http://cdn.example.com/a.png", true, models.ReferenceRemote, ""},
		{"non image data url", "data:text/plain;base64,AAAA", false, 0, ""},
		{"empty payload", "data:image/png;base64,", false, 0, ""},
		{"relative path", "/files/a.png", false, 0, ""},
		{"empty", "", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := ParseReference(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.kind, ref.Kind)
				assert.Equal(t, tt.mime, ref.MimeType)
			}
		})
	}
}

func TestNormalizer_InlineWithoutNetwork(t *testing.T) {
	n := NewNormalizer(failingDoer{t})

	got, err := n.Normalize(context.Background(), []string{
		dataURL("image/jpeg", []byte("jpeg-bytes")),
		dataURL("image/png", []byte("png-bytes")),
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.ImagePayload{MimeType: "image/jpeg", Bytes: []byte("jpeg-bytes")}, got[0])
	assert.Equal(t, models.ImagePayload{MimeType: "image/png", Bytes: []byte("png-bytes")}, got[1])
}

func TestNormalizer_RemoteFetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/typed.jpg":
			w.Header().Set("Content-Type", "image/jpeg; charset=binary")
			_, _ = w.Write([]byte("typed"))
		case "/untyped":
			// an explicit empty value stops net/http from sniffing one
			w.Header()["Content-Type"] = nil
			_, _ = w.Write([]byte("untyped"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	t.Run("one fetch per url and png default", func(t *testing.T) {
		hits.Store(0)
		n := NewNormalizer(srv.Client())

		got, err := n.Normalize(context.Background(), []string{srv.URL + "/untyped"})

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int32(1), hits.Load())
		assert.Equal(t, "image/png", got[0].MimeType)
		assert.Equal(t, []byte("untyped"), got[0].Bytes)
	})

	t.Run("media type parameters are dropped", func(t *testing.T) {
		n := NewNormalizer(srv.Client())

		got, err := n.Normalize(context.Background(), []string{srv.URL + "/typed.jpg"})

		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", got[0].MimeType)
	})

	t.Run("order matches input across kinds", func(t *testing.T) {
		n := NewNormalizer(srv.Client())

		got, err := n.Normalize(context.Background(), []string{
			srv.URL + "/typed.jpg",
			dataURL("image/gif", []byte("inline")),
			"not-an-image",
			srv.URL + "/untyped",
		})

		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []byte("typed"), got[0].Bytes)
		assert.Equal(t, []byte("inline"), got[1].Bytes)
		assert.Equal(t, []byte("untyped"), got[2].Bytes)
	})

	t.Run("non 2xx fails the request", func(t *testing.T) {
		n := NewNormalizer(srv.Client())

		_, err := n.Normalize(context.Background(), []string{srv.URL + "/missing"})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFetch)
	})

	t.Run("cache serves repeated urls", func(t *testing.T) {
		hits.Store(0)
		n := NewNormalizer(srv.Client(), WithCache(cache.New(time.Minute, time.Minute), time.Minute))

		for i := 0; i < 3; i++ {
			_, err := n.Normalize(context.Background(), []string{srv.URL + "/typed.jpg"})
			require.NoError(t, err)
		}
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("private network block rejects loopback", func(t *testing.T) {
		hits.Store(0)
		n := NewNormalizer(srv.Client(), WithPrivateNetworkBlock())

		_, err := n.Normalize(context.Background(), []string{srv.URL + "/typed.jpg"})

		assert.ErrorIs(t, err, ErrFetch)
		assert.Equal(t, int32(0), hits.Load())
	})
}

func TestNormalizer_InvalidBase64(t *testing.T) {
	n := NewNormalizer(failingDoer{t})

	_, err := n.Normalize(context.Background(), []string{"data:image/png;base64,@@not-base64@@"})

	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestNormalizer_SkipsUnknown(t *testing.T) {
	n := NewNormalizer(failingDoer{t})

	got, err := n.Normalize(context.Background(), []string{"ftp://x/y.png", "data:text/plain;base64,AAAA"})

	require.NoError(t, err)
	assert.Empty(t, got)
}

type mapReader map[string][]byte

func (m mapReader) Read(ctx context.Context, objectPath string) ([]byte, string, error) {
	data, ok := m[objectPath]
	if !ok {
		return nil, "", errors.New("object not found")
	}
	return data, "image/jpeg", nil
}

func TestNormalizer_StoredObjectsReadFromStore(t *testing.T) {
	store := mapReader{"user 1/a.jpg": []byte("saved")}
	n := NewNormalizer(failingDoer{t},
		WithPrivateNetworkBlock(),
		WithObjectStore("http://localhost:8080/files/", store),
	)

	got, err := n.Normalize(context.Background(), []string{"http://localhost:8080/files/user%201/a.jpg?v=2"})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.ImagePayload{MimeType: "image/jpeg", Bytes: []byte("saved")}, got[0])

	_, err = n.Normalize(context.Background(), []string{"http://localhost:8080/files/user%201/gone.jpg"})
	assert.ErrorIs(t, err, ErrFetch)
}
