package handler

import (
	"errors"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/response"
	"github.com/weiawesome/wes-io-chat/pkg/storage"
)

// MediaHandler serves stored images for the local storage driver.
type MediaHandler struct {
	storage storage.Storage
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(store storage.Storage) *MediaHandler {
	return &MediaHandler{storage: store}
}

// RegisterRoutes mounts the handler under prefix.
func (h *MediaHandler) RegisterRoutes(r gin.IRouter, prefix string) {
	r.GET(strings.TrimSuffix(prefix, "/")+"/*key", h.Get)
}

// Get streams the object named by the key path parameter.
func (h *MediaHandler) Get(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		response.NotFound(c, "media not found")
		return
	}

	rc, err := h.storage.Read(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.NotFound(c, "media not found")
			return
		}
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Str("key", key).Msg("failed to read media")
		response.NotFound(c, "media not found")
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Header("Content-Type", contentType)
	c.Status(200)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		l := log.Ctx(c.Request.Context())
		l.Debug().Err(err).Str("key", key).Msg("media stream interrupted")
	}
}
