package imageinput

import (
	"regexp"
	"strings"

	"nailart/internal/models"
)

var dataURLPattern = regexp.MustCompile(`^data:(image/[a-zA-Z+]+);base64,(.+)$`)

// ParseReference classifies a raw image string. ok is false for strings that
// are neither an image data URL nor an http(s) URL.
func ParseReference(raw string) (ref models.ImageReference, ok bool) {
	if m := dataURLPattern.FindStringSubmatch(raw); m != nil {
		return models.ImageReference{
			Kind:       models.ReferenceInline,
			MimeType:   m[1],
			Base64Data: m[2],
		}, true
	}
	if strings.HasPrefix(raw, "http") {
		return models.ImageReference{Kind: models.ReferenceRemote, URL: raw}, true
	}
	return models.ImageReference{}, false
}

// DataURL renders bytes as an inline image reference string.
func DataURL(mimeType string, b64 string) string {
	return "data:" + mimeType + ";base64," + b64
}
