package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/linkvault/pkg/linkvault"
)

// multipartMemory is how much of a multipart body is buffered before spilling to disk.
const multipartMemory = 32 << 20

// UploadRequest is the JSON request body for a text upload. The camelCase
// fields are accepted for older clients.
type UploadRequest struct {
	Text          string `json:"text"`
	ExpiryMinutes *int   `json:"expiry_minutes,omitempty"`
	Password      string `json:"password,omitempty"`
	MaxViews      *int   `json:"max_views,omitempty"`
	OneTimeView   *bool  `json:"one_time_view,omitempty"`

	ExpiryMinutesCamel *int  `json:"expiryMinutes,omitempty"`
	MaxViewsCamel      *int  `json:"maxViews,omitempty"`
	OneTimeViewCamel   *bool `json:"oneTimeView,omitempty"`
}

func (req UploadRequest) policy() linkvault.Policy {
	p := linkvault.Policy{Password: req.Password}
	p.TTLMinutes = firstNonNil(req.ExpiryMinutes, req.ExpiryMinutesCamel)
	p.MaxViews = firstNonNil(req.MaxViews, req.MaxViewsCamel)
	if v := firstNonNil(req.OneTimeView, req.OneTimeViewCamel); v != nil {
		p.OneTimeView = *v
	}
	return p
}

// UploadResponse is the response body for a successful upload
type UploadResponse struct {
	Success   bool      `json:"success"`
	ID        string    `json:"id"`
	ShareURL  string    `json:"share_url"`
	ExpiresAt time.Time `json:"expires_at"`
	Type      string    `json:"type"`
}

// Upload stores a text snippet or a file. It accepts a JSON body or a
// multipart form with either a "file" part or a "text" field.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		req linkvault.CreateRequest
		err error
	)
	if mediaType == "application/json" {
		req, err = decodeJSONUpload(r)
	} else {
		var cleanup func()
		req, cleanup, err = parseFormUpload(r)
		defer cleanup()
	}
	if err == nil && req.Blob != nil && req.Blob.Size > h.maxUploadSize {
		err = linkvault.ErrPayloadTooLarge
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("Content uploaded",
		"id", result.Handle,
		"type", result.Kind,
		"expires_at", result.ExpiresAt,
		"uploader", uploader(r),
	)

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UploadResponse{
		Success:   true,
		ID:        result.Handle,
		ShareURL:  h.ShareURL(result.Handle),
		ExpiresAt: result.ExpiresAt,
		Type:      string(result.Kind),
	})
}

func decodeJSONUpload(r *http.Request) (linkvault.CreateRequest, error) {
	var body UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return linkvault.CreateRequest{}, err
		}
		return linkvault.CreateRequest{}, fmt.Errorf("%w: malformed JSON body: %v", linkvault.ErrInvalidInput, err)
	}

	req := linkvault.CreateRequest{Policy: body.policy()}
	if body.Text != "" {
		req.Text = &body.Text
	}
	return req, nil
}

// parseFormUpload reads a multipart or urlencoded form. The returned cleanup
// releases the file part and any temporary files; it is never nil.
func parseFormUpload(r *http.Request) (linkvault.CreateRequest, func(), error) {
	cleanup := func() {}

	err := r.ParseMultipartForm(multipartMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return linkvault.CreateRequest{}, cleanup, err
		}
		return linkvault.CreateRequest{}, cleanup, fmt.Errorf("%w: malformed form: %v", linkvault.ErrInvalidInput, err)
	}
	if r.MultipartForm != nil {
		form := r.MultipartForm
		cleanup = func() { _ = form.RemoveAll() }
	}

	policy, err := formPolicy(r)
	if err != nil {
		return linkvault.CreateRequest{}, cleanup, err
	}
	req := linkvault.CreateRequest{Policy: policy}

	if text := r.FormValue("text"); text != "" {
		req.Text = &text
	}

	if r.MultipartForm != nil && len(r.MultipartForm.File["file"]) > 0 {
		header := r.MultipartForm.File["file"][0]
		file, err := header.Open()
		if err != nil {
			return linkvault.CreateRequest{}, cleanup, fmt.Errorf("%w: unreadable file part: %v", linkvault.ErrInvalidInput, err)
		}
		prev := cleanup
		cleanup = func() {
			_ = file.Close()
			prev()
		}

		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		req.Blob = &linkvault.BlobUpload{
			Reader:   file,
			FileName: header.Filename,
			MimeType: mimeType,
			Size:     header.Size,
		}
	}

	return req, cleanup, nil
}

func formPolicy(r *http.Request) (linkvault.Policy, error) {
	p := linkvault.Policy{Password: r.FormValue("password")}

	if v := formValue(r, "expiry_minutes", "expiryMinutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%w: expiry_minutes must be an integer", linkvault.ErrInvalidInput)
		}
		p.TTLMinutes = &n
	}

	if v := formValue(r, "max_views", "maxViews"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%w: max_views must be an integer", linkvault.ErrInvalidInput)
		}
		p.MaxViews = &n
	}

	if v := formValue(r, "one_time_view", "oneTimeView"); v != "" {
		b, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			return p, fmt.Errorf("%w: one_time_view must be a boolean", linkvault.ErrInvalidInput)
		}
		p.OneTimeView = b
	}

	return p, nil
}

func formValue(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(r.FormValue(name)); v != "" {
			return v
		}
	}
	return ""
}

func firstNonNil[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func uploader(r *http.Request) string {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || claims == nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
