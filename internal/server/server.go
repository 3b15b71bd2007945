package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"nailart/internal/auth"
	"nailart/internal/gallery"
	"nailart/internal/generator"
	"nailart/internal/imageinput"
	"nailart/internal/logger"
	"nailart/internal/models"
	"nailart/internal/storage"
)

type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
}

type Gallery interface {
	Save(ctx context.Context, ownerID string, req models.SaveRequest) (*models.SavedThumbnail, error)
	List(ctx context.Context, ownerID string, limit int) ([]models.SavedThumbnail, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
}

type Server struct {
	cfg       *models.Config
	router    *gin.Engine
	srv       *http.Server
	generator Generator
	gallery   Gallery
	log       *zap.Logger
}

func NewServer(cfg *models.Config, gen Generator, gal Gallery, verifier *auth.Verifier, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(log, currentUserID))
	if cfg.Storage.Backend == models.StorageBackendLocal {
		r.Static(cfg.FilesRoute(), cfg.Storage.LocalPath)
	}

	s := &Server{cfg: cfg, router: r, generator: gen, gallery: gal, log: log}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := r.Group("/", auth.Middleware(verifier))
	authed.GET("/auth/user", s.handleCurrentUser)
	authed.POST("/generate", s.handleGenerate)
	authed.POST("/thumbnails", s.handleSaveThumbnail)
	authed.GET("/thumbnails", s.handleListThumbnails)
	authed.DELETE("/thumbnails/:id", s.handleDeleteThumbnail)

	s.srv = &http.Server{Addr: cfg.ServerAddr, Handler: r}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops. A clean Stop returns nil.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.cfg.ServerAddr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func currentUserID(c *gin.Context) string {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return ""
	}
	return user.ID
}

func (s *Server) handleCurrentUser(c *gin.Context) {
	user, err := auth.CurrentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: models.MsgUnauthorized})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleGenerate(c *gin.Context) {
	const op = "server.handleGenerate"

	if _, err := auth.CurrentUser(c); err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: models.MsgUnauthorized})
		return
	}

	var req models.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: bindErrorMessage(err)})
		return
	}

	result, err := s.generator.Generate(c.Request.Context(), req)
	if err != nil {
		var empty *generator.EmptyResultError
		switch {
		case errors.As(err, &empty):
			c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: models.MsgNoImageGenerated, Text: empty.Text})
		case errors.Is(err, imageinput.ErrInvalidData):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.MsgInvalidImage})
		case errors.Is(err, generator.ErrValidation):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.MsgPromptOrImage})
		default:
			s.log.Error("generation failed", zap.String("op", op), zap.Error(err))
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.MsgGenerationError})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// bindErrorMessage maps a binding failure to a caller-facing message.
func bindErrorMessage(err error) string {
	if errors.Is(err, io.EOF) {
		return models.MsgPromptOrImage
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "Images" && fe.Tag() == "max" {
				return models.MsgTooManyImages()
			}
		}
	}
	return models.MsgInvalidRequest
}

func (s *Server) handleSaveThumbnail(c *gin.Context) {
	const op = "server.handleSaveThumbnail"

	user, err := auth.CurrentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: models.MsgUnauthorized})
		return
	}

	var req models.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.MsgInvalidRequest})
		return
	}

	saved, err := s.gallery.Save(c.Request.Context(), user.ID, req)
	if err != nil {
		if errors.Is(err, gallery.ErrInvalidImage) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.MsgInvalidImage})
			return
		}
		s.log.Error("save failed", zap.String("op", op), zap.String("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.MsgSaveFailed})
		return
	}

	c.JSON(http.StatusCreated, saved)
}

func (s *Server) handleListThumbnails(c *gin.Context) {
	const op = "server.handleListThumbnails"

	user, err := auth.CurrentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: models.MsgUnauthorized})
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.MsgInvalidRequest})
			return
		}
	}

	thumbs, err := s.gallery.List(c.Request.Context(), user.ID, limit)
	if err != nil {
		s.log.Error("list failed", zap.String("op", op), zap.String("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.MsgListFailed})
		return
	}

	c.JSON(http.StatusOK, thumbs)
}

func (s *Server) handleDeleteThumbnail(c *gin.Context) {
	const op = "server.handleDeleteThumbnail"

	user, err := auth.CurrentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: models.MsgUnauthorized})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.MsgInvalidRequest})
		return
	}

	if err := s.gallery.Delete(c.Request.Context(), user.ID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: models.MsgThumbnailNotFound})
			return
		}
		s.log.Error("delete failed", zap.String("op", op), zap.String("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.MsgDeleteFailed})
		return
	}

	c.Status(http.StatusNoContent)
}
