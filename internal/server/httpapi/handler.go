// Package httpapi exposes photo ingestion and search over HTTP.
package httpapi

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/snapkeeper/snapkeeper/internal/blob"
	"github.com/snapkeeper/snapkeeper/internal/common"
	"github.com/snapkeeper/snapkeeper/internal/logging"
	"github.com/snapkeeper/snapkeeper/internal/metadata"
	"github.com/snapkeeper/snapkeeper/internal/models"
	"github.com/snapkeeper/snapkeeper/internal/pipeline"
	"github.com/snapkeeper/snapkeeper/internal/search"
)

// Handler holds the components the HTTP endpoints operate on.
type Handler struct {
	pipeline *pipeline.Pipeline
	store    metadata.Store
	blobs    blob.Store
	index    *search.Index
	logger   logging.Logger

	// spool receives uploaded files before ingestion. Defaults to the OS
	// temp dir.
	spool string
}

func NewHandler(p *pipeline.Pipeline, store metadata.Store, blobs blob.Store, index *search.Index, logger logging.Logger) *Handler {
	return &Handler{
		pipeline: p,
		store:    store,
		blobs:    blobs,
		index:    index,
		logger:   logger.With("module", "httpapi"),
		spool:    os.TempDir(),
	}
}

// NewRouter wires the API routes onto a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.POST("/photos", h.BatchUploadPhotos)
	api.GET("/search", h.SearchPhotos)
	api.GET("/photos/:user/:filename", h.GetPhoto)

	return r
}

// BatchUploadPhotos ingests every file of a multipart form through the full
// pipeline. Files are processed independently: one failed file does not
// abort the batch, it is reported in the "failed" slice instead.
func (h *Handler) BatchUploadPhotos(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse multipart form"})
		return
	}

	userID := c.PostForm("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded (key 'files' missing or empty)"})
		return
	}

	var uploaded []gin.H
	var failed []gin.H

	for _, file := range files {
		filename := filepath.Base(file.Filename)

		record, err := h.ingestUpload(c, file, filename, userID)
		if err != nil {
			h.logger.Error(c.Request.Context(), "upload failed", "filename", filename, "error", err)
			failed = append(failed, gin.H{"filename": file.Filename, "error": err.Error()})
			continue
		}

		uploaded = append(uploaded, gin.H{
			"filename": file.Filename,
			"photo_id": record.ID,
			"tags":     record.Tags,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        fmt.Sprintf("Processed %d files", len(files)),
		"uploaded_count": len(uploaded),
		"failed_count":   len(failed),
		"uploaded":       uploaded,
		"failed":         failed,
	})
}

// ingestUpload spools one multipart file to disk and runs it through the
// pipeline. The spool file is removed regardless of outcome.
func (h *Handler) ingestUpload(c *gin.Context, file *multipart.FileHeader, filename, userID string) (*models.PhotoRecord, error) {
	spoolPath := filepath.Join(h.spool, uuid.NewString())
	if err := c.SaveUploadedFile(file, spoolPath); err != nil {
		return nil, fmt.Errorf("%w: spooling upload: %v", common.ErrStorage, err)
	}
	defer os.Remove(spoolPath)

	return h.pipeline.Ingest(c.Request.Context(), spoolPath, filename, userID)
}

// SearchPhotos resolves ?q= against the metadata store.
func (h *Handler) SearchPhotos(c *gin.Context) {
	query := c.Query("q")

	results, err := h.index.Search(c.Request.Context(), query)
	if err != nil {
		h.logger.Error(c.Request.Context(), "search failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

// GetPhoto returns the metadata record for one photo plus a locator the
// client can fetch the blob from.
func (h *Handler) GetPhoto(c *gin.Context) {
	userID := c.Param("user")
	filename := c.Param("filename")

	id := models.Key(userID, filename)

	record, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
			return
		}
		h.logger.Error(c.Request.Context(), "get failed", "photo_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lookup failed"})
		return
	}

	locator, err := h.blobs.Resolve(c.Request.Context(), id)
	if err != nil {
		h.logger.Error(c.Request.Context(), "locator resolve failed", "photo_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Locator resolve failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"photo":   record,
		"locator": locator,
	})
}
