// Package gallery persists generated thumbnails: the image goes to object
// storage and a metadata row goes to the database.
package gallery

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"nailart/internal/events"
	"nailart/internal/models"
)

const (
	PreviewWidth  = 320
	PreviewHeight = 180
	previewSuffix = "_preview.jpg"
)

var ErrInvalidImage = errors.New("invalid image data")

type Repository interface {
	InsertThumbnail(ctx context.Context, t *models.SavedThumbnail) error
	ListThumbnails(ctx context.Context, userID string, limit int) ([]models.SavedThumbnail, error)
	DeleteThumbnail(ctx context.Context, id uuid.UUID, userID string) (*models.SavedThumbnail, error)
}

// ObjectStore is the subset of objectstore.Store used here.
type ObjectStore interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) error
	PublicURL(objectPath string) string
}

type Service struct {
	repo      Repository
	store     ObjectStore
	publisher events.Publisher
	log       *zap.Logger
}

func NewService(repo Repository, store ObjectStore, publisher events.Publisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, store: store, publisher: publisher, log: log}
}

// ObjectPath is <owner>/<uuid>.<ext>; only image/jpeg gets .jpg.
func ObjectPath(ownerID string, id uuid.UUID, mimeType string) string {
	ext := "png"
	if mimeType == "image/jpeg" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s/%s.%s", ownerID, id, ext)
}

func previewPath(objectPath string) string {
	if i := strings.LastIndex(objectPath, "."); i > strings.LastIndex(objectPath, "/") {
		objectPath = objectPath[:i]
	}
	return objectPath + previewSuffix
}

// Save uploads the image, renders a gallery preview, and records the row.
// If the row cannot be written the uploaded objects are handed to the
// cleanup publisher.
func (s *Service) Save(ctx context.Context, ownerID string, req models.SaveRequest) (*models.SavedThumbnail, error) {
	const op = "gallery.Save"

	data, err := base64.StdEncoding.DecodeString(req.ImageData)
	if err != nil || len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidImage)
	}
	// the declared type is ignored; stored objects are served with the
	// sniffed one
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") || mt.Is("image/svg+xml") {
		return nil, fmt.Errorf("%s: %w: detected %s", op, ErrInvalidImage, mt.String())
	}
	mimeType := mt.String()

	id := uuid.New()
	objectPath := ObjectPath(ownerID, id, mimeType)
	if err := s.store.Upload(ctx, objectPath, data, mimeType); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	uploaded := []string{objectPath}

	thumb := &models.SavedThumbnail{
		ID:          id,
		UserID:      ownerID,
		ImageURL:    s.store.PublicURL(objectPath),
		StoragePath: objectPath,
		Width:       models.ThumbnailWidth,
		Height:      models.ThumbnailHeight,
	}
	if p := strings.TrimSpace(req.Prompt); p != "" {
		thumb.Prompt = &p
	}

	if pp, err := s.uploadPreview(ctx, objectPath, data); err != nil {
		s.log.Warn("preview skipped", zap.String("path", objectPath), zap.Error(err))
	} else {
		thumb.PreviewPath = pp
		thumb.PreviewURL = s.store.PublicURL(pp)
		uploaded = append(uploaded, pp)
	}

	if err := s.repo.InsertThumbnail(ctx, thumb); err != nil {
		s.cleanup(ctx, ownerID, uploaded, events.ReasonInsertFailed)
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	s.log.Info("thumbnail saved", zap.String("id", id.String()), zap.String("user_id", ownerID))
	return thumb, nil
}

func (s *Service) uploadPreview(ctx context.Context, objectPath string, data []byte) (string, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	preview := imaging.Thumbnail(src, PreviewWidth, PreviewHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, preview, imaging.JPEG, imaging.JPEGQuality(jpeg.DefaultQuality)); err != nil {
		return "", err
	}
	pp := previewPath(objectPath)
	if err := s.store.Upload(ctx, pp, buf.Bytes(), "image/jpeg"); err != nil {
		return "", err
	}
	return pp, nil
}

// List returns ownerID's thumbnails newest first. limit <= 0 lists all.
func (s *Service) List(ctx context.Context, ownerID string, limit int) ([]models.SavedThumbnail, error) {
	thumbs, err := s.repo.ListThumbnails(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("gallery.List: %w", err)
	}
	if thumbs == nil {
		thumbs = []models.SavedThumbnail{}
	}
	return thumbs, nil
}

// Delete removes the row synchronously; its objects are removed through the
// cleanup publisher.
func (s *Service) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	const op = "gallery.Delete"

	thumb, err := s.repo.DeleteThumbnail(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.cleanup(ctx, ownerID, []string{thumb.StoragePath, thumb.PreviewPath}, events.ReasonDeleted)
	return nil
}

func (s *Service) cleanup(ctx context.Context, ownerID string, paths []string, reason string) {
	if s.publisher == nil {
		return
	}
	ev := events.CleanupEvent{UserID: ownerID, Paths: paths, Reason: reason}
	if err := s.publisher.PublishCleanup(ctx, ev); err != nil {
		s.log.Error("cleanup not published", zap.Strings("paths", paths), zap.String("reason", reason), zap.Error(err))
	}
}
