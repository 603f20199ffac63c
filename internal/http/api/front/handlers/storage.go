package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/Storefront/internal/backend"
	"github.com/router-for-me/Storefront/internal/backend/local"
)

// Previewer renders stored files.
type Previewer interface {
	Preview(ctx context.Context, bucketID, fileID string, opts backend.PreviewOptions) (local.Preview, error)
}

// StorageHandler serves file previews and initials avatars for the embedded backend.
type StorageHandler struct {
	previewer Previewer
}

// NewStorageHandler constructs a StorageHandler.
func NewStorageHandler(previewer Previewer) *StorageHandler {
	return &StorageHandler{previewer: previewer}
}

// Preview streams a transformed image.
func (h *StorageHandler) Preview(c *gin.Context) {
	opts := local.ParsePreviewOptions(c.Request.URL.Query())
	preview, errPreview := h.previewer.Preview(c.Request.Context(), c.Param("bucket"), c.Param("id"), opts)
	if errPreview != nil {
		WriteError(c, errPreview)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, preview.ContentType, preview.Data)
}

// Initials renders an SVG avatar for the name query parameter.
func (h *StorageHandler) Initials(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/svg+xml", local.InitialsSVG(c.Query("name")))
}
