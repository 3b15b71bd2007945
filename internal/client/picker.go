package client

import (
	"context"

	"github.com/google/uuid"

	"nailart/internal/models"
)

type GalleryAPI interface {
	ListThumbnails(ctx context.Context, limit int) ([]models.SavedThumbnail, error)
	DeleteThumbnail(ctx context.Context, id uuid.UUID) error
}

// Selection is what choosing a saved thumbnail hands back to the caller.
type Selection struct {
	URL    string
	Prompt string
}

// Picker browses saved thumbnails: the full list for the sidebar and the
// recent ones for reference selection.
type Picker struct {
	api        GalleryAPI
	controller *Controller
}

func NewPicker(api GalleryAPI, c *Controller) *Picker {
	return &Picker{api: api, controller: c}
}

func (p *Picker) All(ctx context.Context) ([]models.SavedThumbnail, error) {
	return p.api.ListThumbnails(ctx, 0)
}

func (p *Picker) Recent(ctx context.Context) ([]models.SavedThumbnail, error) {
	return p.api.ListThumbnails(ctx, models.RecentLimit)
}

// Select attaches t's image URL to the controller and returns its URL and
// prompt.
func (p *Picker) Select(t models.SavedThumbnail) (Selection, error) {
	sel := Selection{URL: t.ImageURL}
	if t.Prompt != nil {
		sel.Prompt = *t.Prompt
	}
	if p.controller != nil {
		if err := p.controller.AddReference(t.ImageURL); err != nil {
			return Selection{}, err
		}
	}
	return sel, nil
}

func (p *Picker) Delete(ctx context.Context, id uuid.UUID) error {
	return p.api.DeleteThumbnail(ctx, id)
}
