package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/linkvault/pkg/linkvault"
)

// ContentResponse is the response body for a successful view
type ContentResponse struct {
	Type             string    `json:"type"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	ViewCount        int       `json:"view_count"`
	RequiresPassword bool      `json:"requires_password"`

	Content  string `json:"content,omitempty"`
	FileName string `json:"file_name,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// DeleteContentRequest is the request body for deleting content
type DeleteContentRequest struct {
	Password string `json:"password"`
}

// DeleteContentResponse is the response body for a successful delete
type DeleteContentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// GetContent counts one view and returns the text, or the file metadata for
// a blob. The bytes of a blob are served by Download.
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	res, err := h.service.Read(r.Context(), linkvault.ReadRequest{
		Handle:   handle,
		Password: r.URL.Query().Get("password"),
		SkipBlob: true,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer res.Finish(r.Context())

	rec := res.Record
	resp := ContentResponse{
		Type:             string(rec.Kind),
		CreatedAt:        rec.CreatedAt,
		ExpiresAt:        rec.ExpiresAt,
		ViewCount:        rec.ViewCount,
		RequiresPassword: rec.HasPassword(),
	}
	switch rec.Kind {
	case linkvault.KindText:
		resp.Content = res.Text
	case linkvault.KindBlob:
		if rec.Blob != nil {
			resp.FileName = rec.Blob.FileName
			resp.FileSize = rec.Blob.Size
			resp.MimeType = rec.Blob.MimeType
		}
	}

	h.logger.Debug("Content viewed", "id", handle, "view_count", rec.ViewCount, "consumed", res.Consumed)
	render.JSON(w, r, resp)
}

// Download streams the bytes of a blob. It passes the same gates as
// GetContent and counts a view.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	res, err := h.service.Read(r.Context(), linkvault.ReadRequest{
		Handle:   handle,
		Password: r.URL.Query().Get("password"),
		Kind:     linkvault.KindBlob,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer res.Finish(r.Context())

	meta := linkvault.BlobMeta{}
	if res.Record.Blob != nil {
		meta = *res.Record.Blob
	}
	mimeType := meta.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", contentDisposition(meta.FileName))
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, res.Body); err != nil {
		h.logger.Warn("Download interrupted", "id", handle, "error", err)
	}
}

// DeleteContent removes content before it expires. The password, if the
// content has one, is read from the JSON body.
func (h *Handler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	var body DeleteContentRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, r, fmt.Errorf("%w: malformed JSON body: %v", linkvault.ErrInvalidInput, err))
			return
		}
	}

	if err := h.service.Delete(r.Context(), linkvault.DeleteRequest{
		Handle:   handle,
		Password: body.Password,
	}); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("Content deleted", "id", handle)
	render.JSON(w, r, DeleteContentResponse{
		Success: true,
		Message: "Content deleted successfully",
	})
}

func contentDisposition(fileName string) string {
	if fileName == "" {
		return "attachment"
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": fileName}); v != "" {
		return v
	}
	return "attachment"
}
