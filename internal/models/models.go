package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MaxImages       = 10
	MaxFileSize     = 5 * 1024 * 1024
	ThumbnailWidth  = 1280
	ThumbnailHeight = 720
	RecentLimit     = 20

	DefaultAspectRatio = "16:9"
	DefaultMimeType    = "image/png"
)

// AspectRatios is the allow-list accepted by the generation API.
var AspectRatios = []string{"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9"}

func IsAspectRatio(s string) bool {
	for _, r := range AspectRatios {
		if r == s {
			return true
		}
	}
	return false
}

// GenerationRequest is the body of POST /generate.
// Image is the legacy single-image field; see Normalize.
type GenerationRequest struct {
	Prompt      string   `json:"prompt,omitempty"`
	Images      []string `json:"images,omitempty" binding:"max=10"`
	Image       string   `json:"image,omitempty"`
	AspectRatio string   `json:"aspectRatio,omitempty" binding:"omitempty,oneof=1:1 2:3 3:2 3:4 4:3 4:5 5:4 9:16 16:9 21:9"`
}

// Normalize folds the legacy image field into Images and fills the default
// aspect ratio. It is the only place the legacy field is read.
func (r GenerationRequest) Normalize() GenerationRequest {
	if r.Images == nil && r.Image != "" {
		r.Images = []string{r.Image}
	}
	r.Image = ""
	if r.AspectRatio == "" {
		r.AspectRatio = DefaultAspectRatio
	}
	return r
}

type ReferenceKind int

const (
	ReferenceInline ReferenceKind = iota + 1
	ReferenceRemote
)

// ImageReference is either an inline data URL or a remote URL.
type ImageReference struct {
	Kind       ReferenceKind
	MimeType   string
	Base64Data string
	URL        string
}

// ImagePayload is a resolved image ready to send to the generation API.
type ImagePayload struct {
	MimeType string
	Bytes    []byte
}

// GenerationResult is the wire shape of a successful generation.
type GenerationResult struct {
	Text      string `json:"text,omitempty"`
	ImageData string `json:"imageData"`
	MimeType  string `json:"mimeType"`
	// Prompt is the trimmed prompt the result was generated from. It is
	// filled on the client side and never sent by the server.
	Prompt string `json:"-"`
}

type SavedThumbnail struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Prompt      *string   `json:"prompt" db:"prompt"`
	ImageURL    string    `json:"image_url" db:"image_url"`
	StoragePath string    `json:"storage_path" db:"storage_path"`
	PreviewURL  string    `json:"preview_url,omitempty" db:"preview_url"`
	PreviewPath string    `json:"-" db:"preview_path"`
	Width       int       `json:"width" db:"width"`
	Height      int       `json:"height" db:"height"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// SaveRequest is the body of POST /thumbnails.
type SaveRequest struct {
	ImageData string `json:"imageData" binding:"required"`
	MimeType  string `json:"mimeType"`
	Prompt    string `json:"prompt"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Text  string `json:"text,omitempty"`
}
