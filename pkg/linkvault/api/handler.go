package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/linkvault/pkg/linkvault"
)

// DefaultMaxUploadSize bounds request bodies when no limit is configured.
const DefaultMaxUploadSize int64 = 10 << 20

// multipartOverhead is allowed on top of the file limit for form fields and boundaries.
const multipartOverhead int64 = 1 << 20

// Handler serves the public HTTP surface of the content store.
type Handler struct {
	service       linkvault.Service
	frontendURL   string
	tokenAuth     *jwtauth.JWTAuth
	maxUploadSize int64
	logger        *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithFrontendURL sets the base used to build share links.
func WithFrontendURL(u string) HandlerOption {
	return func(h *Handler) {
		h.frontendURL = strings.TrimRight(u, "/")
	}
}

// WithTokenAuth requires a valid bearer token on uploads. A nil auth leaves
// uploads open.
func WithTokenAuth(ja *jwtauth.JWTAuth) HandlerOption {
	return func(h *Handler) {
		h.tokenAuth = ja
	}
}

// WithMaxUploadSize limits the size of an uploaded file.
func WithMaxUploadSize(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadSize = n
		}
	}
}

// WithHandlerLogger sets the logger used for request failures.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a new HTTP handler for svc
func NewHandler(svc linkvault.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:       svc,
		maxUploadSize: DefaultMaxUploadSize,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "api")
	return h
}

// Routes returns the routes for the content API
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if h.tokenAuth != nil {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)
		}
		r.Post("/upload", h.Upload)
	})

	r.Get("/content/{handle}", h.GetContent)
	r.Delete("/content/{handle}", h.DeleteContent)
	r.Get("/download/{handle}", h.Download)
	r.Get("/stats", h.Stats)

	return r
}

// ShareURL returns the link a recipient opens to view handle.
func (h *Handler) ShareURL(handle string) string {
	return h.frontendURL + "/share/" + handle
}

// Stats returns aggregate counts over all stored content
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}
