package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/linkvault/pkg/linkvault"
	"github.com/tendant/linkvault/pkg/linkvault/repo/memory"
	memorystorage "github.com/tendant/linkvault/pkg/linkvault/storage/memory"
	"golang.org/x/crypto/bcrypt"
)

const testFrontendURL = "https://vault.example.com/"

// setupHandlerTest creates a Handler backed by in-memory stores
func setupHandlerTest(t *testing.T, opts ...HandlerOption) (http.Handler, *memorystorage.Backend) {
	t.Helper()

	blobs := memorystorage.New()
	svc, err := linkvault.New(
		linkvault.WithRepository(memory.New()),
		linkvault.WithBlobStore("memory", blobs),
		linkvault.WithBcryptCost(bcrypt.MinCost),
		linkvault.WithMaxBlobSize(1<<20),
	)
	require.NoError(t, err)

	options := append([]HandlerOption{WithFrontendURL(testFrontendURL)}, opts...)
	return NewHandler(svc, options...).Routes(), blobs
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func multipartUpload(t *testing.T, fileName string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		part, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestUpload_Text(t *testing.T) {
	h, _ := setupHandlerTest(t)

	rr := doJSON(t, h, http.MethodPost, "/upload", map[string]any{
		"text":           "hello",
		"expiry_minutes": 5,
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	resp := decode[UploadResponse](t, rr)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "https://vault.example.com/share/"+resp.ID, resp.ShareURL)
	assert.Equal(t, "text", resp.Type)
	assert.False(t, resp.ExpiresAt.IsZero())
}

func TestUpload_CamelCaseAliases(t *testing.T) {
	h, _ := setupHandlerTest(t)

	rr := doJSON(t, h, http.MethodPost, "/upload", map[string]any{
		"text":        "alias",
		"maxViews":    1,
		"oneTimeView": false,
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[UploadResponse](t, rr).ID

	rr = doJSON(t, h, http.MethodGet, "/content/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/content/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpload_Validation(t *testing.T) {
	h, _ := setupHandlerTest(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "empty body", body: map[string]any{}},
		{name: "empty text", body: map[string]any{"text": ""}},
		{name: "negative expiry", body: map[string]any{"text": "x", "expiry_minutes": -1}},
		{name: "zero max views", body: map[string]any{"text": "x", "max_views": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodPost, "/upload", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.NotEmpty(t, decode[ErrorResponse](t, rr).Error)
		})
	}
}

func TestUpload_MalformedJSON(t *testing.T) {
	h, _ := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpload_ZeroExpiry(t *testing.T) {
	h, _ := setupHandlerTest(t)

	rr := doJSON(t, h, http.MethodPost, "/upload", map[string]any{"text": "x", "expiry_minutes": 0}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := decode[UploadResponse](t, rr).ID

	rr = doJSON(t, h, http.MethodGet, "/content/"+id, nil, nil)
	assert.Equal(t, http.StatusGone, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "", nil, map[string]string{"text": "x", "expiryMinutes": "0"}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id = decode[UploadResponse](t, rr).ID

	rr = doJSON(t, h, http.MethodGet, "/content/"+id, nil, nil)
	assert.Equal(t, http.StatusGone, rr.Code)

	// an omitted expiry falls back to the default
	rr = doJSON(t, h, http.MethodPost, "/upload", map[string]any{"text": "kept"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	id = decode[UploadResponse](t, rr).ID

	rr = doJSON(t, h, http.MethodGet, "/content/"+id, nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUpload_MultipartFileAndDownload(t *testing.T) {
	h, blobs := setupHandlerTest(t)
	data := []byte("%PDF-1.4 fake document")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "report.pdf", data, map[string]string{"expiryMinutes": "30"}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	resp := decode[UploadResponse](t, rr)
	assert.Equal(t, "blob", resp.Type)
	assert.Equal(t, 1, blobs.Len())

	rr = doJSON(t, h, http.MethodGet, "/content/"+resp.ID, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	meta := decode[ContentResponse](t, rr)
	assert.Equal(t, "report.pdf", meta.FileName)
	assert.Equal(t, int64(len(data)), meta.FileSize)
	assert.Empty(t, meta.Content)
	assert.Equal(t, 1, meta.ViewCount)

	req := httptest.NewRequest(http.MethodGet, "/download/"+resp.ID, nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, data, rr.Body.Bytes())
	assert.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=report.pdf`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "22", rr.Header().Get("Content-Length"))
}

func TestUpload_MultipartText(t *testing.T) {
	h, _ := setupHandlerTest(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "", nil, map[string]string{
		"text":          "from a form",
		"one_time_view": "true",
	}))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "text", decode[UploadResponse](t, rr).Type)
}

func TestUpload_MultipartBothPayloads(t *testing.T) {
	h, blobs := setupHandlerTest(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "a.txt", []byte("file"), map[string]string{"text": "text"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, blobs.Len())
}

func TestUpload_MultipartInvalidField(t *testing.T) {
	h, _ := setupHandlerTest(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "", nil, map[string]string{
		"text":      "x",
		"max_views": "many",
	}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	h, blobs := setupHandlerTest(t, WithMaxUploadSize(16))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "big.bin", bytes.Repeat([]byte("x"), 64), nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, 0, blobs.Len())
}

func TestUpload_TokenAuth(t *testing.T) {
	ja := jwtauth.New("HS256", []byte("test-secret"), nil)
	h, _ := setupHandlerTest(t, WithTokenAuth(ja))

	body := map[string]any{"text": "secret note"}

	rr := doJSON(t, h, http.MethodPost, "/upload", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/upload", body, http.Header{"Authorization": {"Bearer not-a-token"}})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	_, token, err := ja.Encode(map[string]interface{}{"sub": "uploader-1"})
	require.NoError(t, err)

	rr = doJSON(t, h, http.MethodPost, "/upload", body, http.Header{"Authorization": {"Bearer " + token}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := decode[UploadResponse](t, rr).ID

	// Reads stay public.
	rr = doJSON(t, h, http.MethodGet, "/content/"+id, nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGetContent_Gates(t *testing.T) {
	h, _ := setupHandlerTest(t)

	rr := doJSON(t, h, http.MethodPost, "/upload", map[string]any{
		"text":     "guarded",
		"password": "hunter2",
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[UploadResponse](t, rr).ID

	rr = doJSON(t, h, http.MethodGet, "/content/"+id, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.True(t, decode[ErrorResponse](t, rr).RequiresPassword)

	rr = doJSON(t, h, http.MethodGet, "/content/"+id+"?password=wrong", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/content/"+id+"?password=hunter2", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[ContentResponse](t, rr)
	assert.Equal(t, "guarded", resp.Content)
	assert.True(t, resp.RequiresPassword)
	assert.Equal(t, 1, resp.ViewCount)

	rr = doJSON(t, h, http.MethodGet, "/content/does-not-exist", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetContent_OneTimeView(t *testing.T) {
	h, _ := setupHandlerTest(t)

	rr := doJSON(t, h, http.MethodPost, "/upload", map[string]any{
		"text":          "burn after reading",
		"one_time_view": true,
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[UploadResponse](t, rr).ID

	rr = doJSON(t, h, http.MethodGet, "/content/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "burn after reading", decode[ContentResponse](t, rr).Content)

	rr = doJSON(t, h, http.MethodGet, "/content/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDownload_TextIsRejected(t *testing.T) {
	h, _ := setupHandlerTest(t)

	rr := doJSON(t, h, http.MethodPost, "/upload", map[string]any{"text": "not a file"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[UploadResponse](t, rr).ID

	rr = doJSON(t, h, http.MethodGet, "/download/"+id, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// The rejected download did not count as a view.
	rr = doJSON(t, h, http.MethodGet, "/content/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[ContentResponse](t, rr).ViewCount)
}

func TestDownload_OneTimeBlobRemoved(t *testing.T) {
	h, blobs := setupHandlerTest(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "once.bin", []byte{1, 2, 3}, map[string]string{"one_time_view": "1"}))
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[UploadResponse](t, rr).ID

	rr = doJSON(t, h, http.MethodGet, "/download/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []byte{1, 2, 3}, rr.Body.Bytes())
	assert.Equal(t, 0, blobs.Len())

	rr = doJSON(t, h, http.MethodGet, "/download/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteContent(t *testing.T) {
	h, _ := setupHandlerTest(t)

	rr := doJSON(t, h, http.MethodPost, "/upload", map[string]any{"text": "x", "password": "pw"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[UploadResponse](t, rr).ID

	rr = doJSON(t, h, http.MethodDelete, "/content/"+id, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, h, http.MethodDelete, "/content/"+id, DeleteContentRequest{Password: "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, h, http.MethodDelete, "/content/"+id, DeleteContentRequest{Password: "pw"}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[DeleteContentResponse](t, rr).Success)

	rr = doJSON(t, h, http.MethodDelete, "/content/"+id, DeleteContentRequest{Password: "pw"}, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStats(t *testing.T) {
	h, _ := setupHandlerTest(t)

	for _, text := range []string{"a", "b"} {
		rr := doJSON(t, h, http.MethodPost, "/upload", map[string]any{"text": text}, nil)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "f.bin", []byte("f"), nil))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/stats", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	stats := decode[linkvault.Stats](t, rr)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Active)
	assert.Equal(t, 2, stats.Text)
	assert.Equal(t, 1, stats.Blob)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{linkvault.ErrInvalidInput, http.StatusBadRequest},
		{linkvault.ErrKindMismatch, http.StatusBadRequest},
		{linkvault.ErrNotFound, http.StatusNotFound},
		{linkvault.ErrExpired, http.StatusGone},
		{linkvault.ErrViewLimitExceeded, http.StatusGone},
		{linkvault.ErrPasswordRequired, http.StatusUnauthorized},
		{linkvault.ErrPasswordMismatch, http.StatusUnauthorized},
		{linkvault.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{&linkvault.StorageError{Backend: "memory", Op: "put", Err: io.ErrUnexpectedEOF}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, "attachment", contentDisposition(""))
	assert.Equal(t, "attachment; filename=a.txt", contentDisposition("a.txt"))
	assert.Equal(t, `attachment; filename="my file.txt"`, contentDisposition("my file.txt"))
}
