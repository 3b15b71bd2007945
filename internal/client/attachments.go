package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"nailart/internal/imageinput"
	"nailart/internal/models"
)

var (
	ErrTooManyImages = errors.New("attachment limit reached")
	ErrFileTooLarge  = errors.New("file exceeds size limit")
)

// Attachment is either a local image read into a data URL or the hosted URL
// of a saved thumbnail.
type Attachment struct {
	Name    string
	DataURL string
	URL     string
}

// Value is the string sent to the generation endpoint.
func (a Attachment) Value() string {
	if a.URL != "" {
		return a.URL
	}
	return a.DataURL
}

func attachmentValues(list []Attachment) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Value()
	}
	return out
}

// File is a local file candidate for attachment.
type File interface {
	Name() string
	Size() int64
	MimeType() string
	ReadAll() ([]byte, error)
}

// OSFile is a file on disk. Its type is sniffed from content.
type OSFile struct {
	path string
	size int64
	mime string
}

func OpenFile(path string) (*OSFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, err
	}
	return &OSFile{path: path, size: info.Size(), mime: mt.String()}, nil
}

func (f *OSFile) Name() string             { return filepath.Base(f.path) }
func (f *OSFile) Size() int64              { return f.size }
func (f *OSFile) MimeType() string         { return f.mime }
func (f *OSFile) ReadAll() ([]byte, error) { return os.ReadFile(f.path) }

// MemFile is an in-memory file, such as a pasted clipboard image.
type MemFile struct {
	name string
	data []byte
	mime string
}

func NewMemFile(name string, data []byte) *MemFile {
	return &MemFile{name: name, data: data, mime: mimetype.Detect(data).String()}
}

func (f *MemFile) Name() string             { return f.name }
func (f *MemFile) Size() int64              { return int64(len(f.data)) }
func (f *MemFile) MimeType() string         { return f.mime }
func (f *MemFile) ReadAll() ([]byte, error) { return f.data, nil }

func isImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// AddFiles attaches images from files. Non-image files are skipped. One file
// over the size limit rejects the whole batch before anything is read. Files
// beyond the remaining capacity are ignored. Accepted files are read
// concurrently and appended as they finish, so their order is not fixed.
func (c *Controller) AddFiles(ctx context.Context, files []File) error {
	c.mu.Lock()
	remaining := models.MaxImages - len(c.state.Attachments)
	if remaining <= 0 {
		c.state.Err = models.MsgTooManyImages()
		c.mu.Unlock()
		return ErrTooManyImages
	}
	c.mu.Unlock()

	var accepted []File
	for _, f := range files {
		if !isImage(f.MimeType()) {
			continue
		}
		if f.Size() > models.MaxFileSize {
			c.setError(models.MsgFileTooLarge(f.Name()))
			return fmt.Errorf("%w: %s", ErrFileTooLarge, f.Name())
		}
		accepted = append(accepted, f)
		if len(accepted) >= remaining {
			break
		}
	}

	g, _ := errgroup.WithContext(ctx)
	for _, f := range accepted {
		g.Go(func() error {
			data, err := f.ReadAll()
			if err != nil {
				return fmt.Errorf("read %s: %w", f.Name(), err)
			}
			a := Attachment{
				Name:    f.Name(),
				DataURL: imageinput.DataURL(f.MimeType(), base64.StdEncoding.EncodeToString(data)),
			}

			c.mu.Lock()
			defer c.mu.Unlock()
			if len(c.state.Attachments) < models.MaxImages {
				c.state.Attachments = append(c.state.Attachments, a)
			}
			return nil
		})
	}
	return g.Wait()
}

// Paste routes clipboard images through AddFiles. It is ignored while a
// generation is running.
func (c *Controller) Paste(ctx context.Context, items []File) error {
	c.mu.Lock()
	busy := c.state.Status == StatusSubmitting
	c.mu.Unlock()
	if busy {
		return nil
	}

	var images []File
	for _, it := range items {
		if isImage(it.MimeType()) {
			images = append(images, it)
		}
	}
	if len(images) == 0 {
		return nil
	}
	return c.AddFiles(ctx, images)
}

// AddReference attaches the hosted URL of a saved thumbnail without fetching it.
func (c *Controller) AddReference(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.state.Attachments) >= models.MaxImages {
		c.state.Err = models.MsgTooManyImages()
		return ErrTooManyImages
	}
	c.state.Attachments = append(c.state.Attachments, Attachment{URL: url})
	return nil
}

func (c *Controller) RemoveAttachment(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.state.Attachments) {
		return
	}
	c.state.Attachments = append(c.state.Attachments[:i:i], c.state.Attachments[i+1:]...)
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Err = msg
}
