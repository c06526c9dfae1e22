package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapkeeper/snapkeeper/internal/blob"
	"github.com/snapkeeper/snapkeeper/internal/detect"
	"github.com/snapkeeper/snapkeeper/internal/logging"
	"github.com/snapkeeper/snapkeeper/internal/metadata"
	"github.com/snapkeeper/snapkeeper/internal/pipeline"
	"github.com/snapkeeper/snapkeeper/internal/search"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, metadata.Store) {
	t.Helper()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))

	blobs, err := blob.NewFSStore(filepath.Join(t.TempDir(), "bucket"))
	require.NoError(t, err)
	store, err := metadata.NewFileStore(filepath.Join(t.TempDir(), "metadata.json"))
	require.NoError(t, err)

	p := pipeline.New(blobs, detect.NewStaticDetector(), store, logger, pipeline.Options{})
	h := NewHandler(p, store, blobs, search.NewIndex(store), logger)
	h.spool = t.TempDir()

	return NewRouter(h), store
}

func multipartBody(t *testing.T, userID string, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if userID != "" {
		require.NoError(t, w.WriteField("user_id", userID))
	}
	for _, name := range filenames {
		fw, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, "fake image bytes")
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return body, w.FormDataContentType()
}

func doRequest(router *gin.Engine, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestBatchUploadPhotos_Success(t *testing.T) {
	router, store := newTestRouter(t)

	body, contentType := multipartBody(t, "u1", "photo_error.png", "beach.jpg")
	rec := doRequest(router, http.MethodPost, "/api/photos", body, contentType)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeJSON(t, rec)
	assert.Equal(t, float64(2), resp["uploaded_count"])
	assert.Equal(t, float64(0), resp["failed_count"])

	uploaded := resp["uploaded"].([]any)
	first := uploaded[0].(map[string]any)
	assert.Equal(t, "photo_error.png", first["filename"])
	assert.Equal(t, "u1/photo_error.png", first["photo_id"])
	assert.Contains(t, first["tags"], "Error Message")

	// Both records reached the store.
	records, err := store.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "u1/photo_error.png", records[0].ID)
	assert.Equal(t, "u1/beach.jpg", records[1].ID)
}

func TestBatchUploadPhotos_MissingUserID(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartBody(t, "", "a.png")
	rec := doRequest(router, http.MethodPost, "/api/photos", body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchUploadPhotos_NoFiles(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartBody(t, "u1")
	rec := doRequest(router, http.MethodPost, "/api/photos", body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchUploadPhotos_NotMultipart(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/api/photos", bytes.NewBufferString("{}"), "application/json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchPhotos(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartBody(t, "u1", "photo_error.png", "photo_login.png")
	rec := doRequest(router, http.MethodPost, "/api/photos", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/search?q=error", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON(t, rec)
	assert.Equal(t, float64(1), resp["count"])
	results := resp["results"].([]any)
	hit := results[0].(map[string]any)
	assert.Equal(t, "u1/photo_error.png", hit["photo_id"])

	// Empty query matches nothing.
	rec = doRequest(router, http.MethodGet, "/api/search?q=", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeJSON(t, rec)
	assert.Equal(t, float64(0), resp["count"])
}

func TestGetPhoto(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartBody(t, "u1", "a.png")
	rec := doRequest(router, http.MethodPost, "/api/photos", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/photos/u1/a.png", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON(t, rec)

	photo := resp["photo"].(map[string]any)
	assert.Equal(t, "u1/a.png", photo["photo_id"])
	assert.Equal(t, "u1", photo["user_id"])
	assert.NotEmpty(t, resp["locator"])
}

func TestGetPhoto_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/api/photos/u1/absent.png", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
