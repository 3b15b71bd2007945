package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"nailart/internal/models"
)

type Status int

const (
	StatusIdle Status = iota
	StatusSubmitting
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSubmitting:
		return "submitting"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

type SaveStatus int

const (
	SaveIdle SaveStatus = iota
	SaveSaving
	SaveSaved
	SaveFailed
)

var (
	ErrBusy          = errors.New("a generation is already in progress")
	ErrNothingToSend = errors.New("prompt and attachments are both empty")
	ErrNoResult      = errors.New("no generated result")
)

// State is everything the prompt area renders. A Result is only present in
// StatusSuccess, and Save only leaves SaveIdle while a Result is present.
type State struct {
	Status      Status
	Prompt      string
	AspectRatio string
	Attachments []Attachment
	Result      *models.GenerationResult
	Err         string
	Save        SaveStatus
	Saved       *models.SavedThumbnail
}

func (s State) clone() State {
	s.Attachments = append([]Attachment(nil), s.Attachments...)
	return s
}

// CanSubmit reports whether a submission would leave idle.
func (s State) CanSubmit() bool {
	return s.Status != StatusSubmitting && (strings.TrimSpace(s.Prompt) != "" || len(s.Attachments) > 0)
}

type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
}

type Saver interface {
	SaveThumbnail(ctx context.Context, req models.SaveRequest) (*models.SavedThumbnail, error)
}

// Controller serializes every state transition behind one mutex so the file
// picker, paste and reference selection all append to the same list.
type Controller struct {
	mu    sync.Mutex
	state State
	// gen increments each time a new result replaces the previous one, so a
	// late save completion cannot mark the wrong result as saved.
	gen uint64

	generator Generator
	saver     Saver
	log       *zap.Logger
}

func NewController(g Generator, s Saver, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		state:     State{AspectRatio: models.DefaultAspectRatio},
		generator: g,
		saver:     s,
		log:       log,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// SetPrompt replaces the prompt text and clears any shown error.
func (c *Controller) SetPrompt(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Prompt = text
	c.state.Err = ""
}

func (c *Controller) SetAspectRatio(ratio string) error {
	if !models.IsAspectRatio(ratio) {
		return fmt.Errorf("unsupported aspect ratio %q", ratio)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.AspectRatio = ratio
	return nil
}

// Submit sends the current prompt and attachments. It blocks until the
// request finishes; concurrent calls get ErrBusy.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Status == StatusSubmitting {
		c.mu.Unlock()
		return ErrBusy
	}
	if !c.state.CanSubmit() {
		c.mu.Unlock()
		return ErrNothingToSend
	}

	trimmed := strings.TrimSpace(c.state.Prompt)
	req := models.GenerationRequest{
		Prompt:      trimmed,
		Images:      attachmentValues(c.state.Attachments),
		AspectRatio: c.state.AspectRatio,
	}
	c.state.Status = StatusSubmitting
	c.state.Err = ""
	c.state.Result = nil
	c.state.Save = SaveIdle
	c.state.Saved = nil
	c.gen++
	c.mu.Unlock()

	result, err := c.generator.Generate(ctx, req)
	if err == nil && (result == nil || result.ImageData == "") {
		err = &APIError{Status: 200, Message: models.MsgNoImageGenerated}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state.Status = StatusFailed
		c.state.Err = userMessage(err)
		c.log.Warn("generation failed", zap.Error(err))
		return err
	}

	if result.MimeType == "" {
		result.MimeType = models.DefaultMimeType
	}
	result.Prompt = trimmed
	c.state.Status = StatusSuccess
	c.state.Result = result
	c.state.Prompt = ""
	c.state.Attachments = nil
	return nil
}

// Dismiss returns to idle from success or failed.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Status == StatusSubmitting {
		return
	}
	c.state.Status = StatusIdle
	c.state.Err = ""
	c.state.Result = nil
	c.state.Save = SaveIdle
	c.state.Saved = nil
	c.gen++
}

// Save persists the current result. Saving the same result twice creates two
// rows.
func (c *Controller) Save(ctx context.Context) (*models.SavedThumbnail, error) {
	c.mu.Lock()
	if c.state.Result == nil {
		c.mu.Unlock()
		return nil, ErrNoResult
	}
	if c.state.Save == SaveSaving {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	res := *c.state.Result
	gen := c.gen
	c.state.Save = SaveSaving
	c.mu.Unlock()

	saved, err := c.saver.SaveThumbnail(ctx, models.SaveRequest{
		ImageData: res.ImageData,
		MimeType:  res.MimeType,
		Prompt:    res.Prompt,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return saved, err
	}
	if err != nil {
		c.state.Save = SaveFailed
		c.state.Err = models.MsgSaveFailed
		c.log.Warn("save failed", zap.Error(err))
		return nil, err
	}
	c.state.Save = SaveSaved
	c.state.Saved = saved
	return saved, nil
}

// Download writes the current result into dir and returns the file path.
func (c *Controller) Download(dir string) (string, error) {
	c.mu.Lock()
	res := c.state.Result
	c.mu.Unlock()
	if res == nil {
		return "", ErrNoResult
	}

	data, err := base64.StdEncoding.DecodeString(res.ImageData)
	if err != nil {
		return "", fmt.Errorf("client.Download: %w", err)
	}
	name := fmt.Sprintf("thumbnail-%d.%s", time.Now().UnixMilli(), extension(res.MimeType))
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", fmt.Errorf("client.Download: %w", err)
	}
	return p, nil
}

func extension(mimeType string) string {
	if mimeType == "image/jpeg" {
		return "jpg"
	}
	return "png"
}

// userMessage picks the localized text shown for a failed generation.
func userMessage(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, ErrNetwork):
		return models.MsgNetworkError
	default:
		return models.MsgGenerationFailed
	}
}
