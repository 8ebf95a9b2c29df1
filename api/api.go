// Package api serves the gallery over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/adeilh/gallery/auth"
	"github.com/adeilh/gallery/gallery"
	"github.com/adeilh/gallery/httpx"
)

// Gallery is the part of gallery.Service the handlers use.
type Gallery interface {
	Images(ctx context.Context) ([]gallery.Image, error)
	Comments(ctx context.Context, imageID string) ([]gallery.Comment, error)
	Upload(ctx context.Context, in gallery.UploadInput) (gallery.Image, error)
	PostComment(ctx context.Context, imageID, userID, text string, rating int) (gallery.Comment, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps configures Register.
type Deps struct {
	Gallery Gallery
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// UploadDir is served at /uploads when set.
	UploadDir string
	// StaticDir is served at / when set.
	StaticDir string
	Health    map[string]HealthCheck
}

type handlers struct {
	gallery Gallery
	health  map[string]HealthCheck
}

// Register mounts every route on app.
func Register(app *httpx.App, d Deps) {
	h := &handlers{gallery: d.Gallery, health: d.Health}

	app.GET("/healthz", h.healthz)
	if d.Metrics != nil {
		app.Handle(http.MethodGet, "/metrics", d.Metrics)
	}

	images := app.Group("/api/images")
	images.GET("", h.listImages)
	images.POST("", h.uploadImage, httpx.RequireRole(auth.RoleCreator))
	images.GET("/:id/comments", h.listComments)
	images.POST("/:id/comments", h.postComment, httpx.RequireRole(auth.RoleConsumer))

	if d.UploadDir != "" {
		app.Static("/uploads", d.UploadDir)
	}
	if d.StaticDir != "" {
		app.Static("/", d.StaticDir)
	}
}

func (h *handlers) listImages(c httpx.Context) error {
	ctx := c.Request().Context()
	images, err := h.gallery.Images(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("list images")
		return httpx.HTTPError(httpx.StatusInternalError, "Failed to load images")
	}
	return c.JSON(httpx.StatusOK, images)
}

func (h *handlers) uploadImage(c httpx.Context) error {
	ctx := c.Request().Context()
	logger := log.Ctx(ctx)

	fh, err := c.FormFile("photo")
	if err != nil {
		if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			return err
		}
		logger.Debug().Err(err).Msg("upload without photo")
		return httpx.HTTPError(httpx.StatusBadRequest, "missing photo file")
	}
	f, err := fh.Open()
	if err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "unreadable photo file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "unreadable photo file")
	}
	if len(data) == 0 {
		return httpx.HTTPError(httpx.StatusBadRequest, "empty photo file")
	}

	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" || contentType == echo.MIMEOctetStream {
		contentType = http.DetectContentType(data)
	}

	img, err := h.gallery.Upload(ctx, gallery.UploadInput{
		Filename:    fh.Filename,
		ContentType: contentType,
		Data:        data,
		Title:       strings.TrimSpace(c.FormValue("title")),
		Caption:     strings.TrimSpace(c.FormValue("caption")),
		Uploader:    callerID(ctx),
	})
	switch {
	case err == nil:
	case errors.Is(err, gallery.ErrInvalidate):
		logger.Warn().Err(err).Str("image_id", img.ID).Msg("image stored but cache eviction failed")
	default:
		logger.Error().Err(err).Msg("upload image")
		return httpx.HTTPError(httpx.StatusInternalError, "Image upload failed")
	}
	return c.JSON(httpx.StatusOK, img)
}

func (h *handlers) listComments(c httpx.Context) error {
	ctx := c.Request().Context()
	comments, err := h.gallery.Comments(ctx, c.Param("id"))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("image_id", c.Param("id")).Msg("list comments")
		return httpx.HTTPError(httpx.StatusInternalError, "Failed to fetch comments")
	}
	return c.JSON(httpx.StatusOK, comments)
}

type commentRequest struct {
	Text   string `json:"text" validate:"max=2000"`
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
}

func (h *handlers) postComment(c httpx.Context) error {
	ctx := c.Request().Context()
	logger := log.Ctx(ctx)

	var req commentRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "invalid comment body")
	}
	if err := c.Validate(&req); err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, err.Error())
	}

	imageID := c.Param("id")
	comment, err := h.gallery.PostComment(ctx, imageID, callerID(ctx), req.Text, req.Rating)
	switch {
	case err == nil:
	case errors.Is(err, gallery.ErrInvalidate):
		logger.Warn().Err(err).Str("comment_id", comment.ID).Msg("comment stored but cache eviction failed")
	case errors.Is(err, gallery.ErrInvalidInput):
		return httpx.HTTPError(httpx.StatusBadRequest, "invalid image id")
	default:
		logger.Error().Err(err).Str("image_id", imageID).Msg("post comment")
		return httpx.HTTPError(httpx.StatusInternalError, "Failed to post comment")
	}
	return c.JSON(httpx.StatusOK, comment)
}

func (h *handlers) healthz(c httpx.Context) error {
	ctx := c.Request().Context()
	failed := map[string]string{}
	for name, check := range h.health {
		if err := check(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("dependency", name).Msg("health check failed")
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		return c.JSON(httpx.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
	}
	return c.JSON(httpx.StatusOK, map[string]string{"status": "ok"})
}

func callerID(ctx context.Context) string {
	id, _ := auth.IdentityFromContext(ctx)
	return id.ID
}
