package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/linkvault/pkg/linkvault"
	"github.com/tendant/linkvault/pkg/linkvault/api"
	"github.com/tendant/linkvault/pkg/linkvault/config"
)

// HTTPServer wraps the linkvault service for HTTP access
type HTTPServer struct {
	service   linkvault.Service
	config    *config.ServerConfig
	startedAt time.Time
}

// NewHTTPServer creates a new HTTP server wrapper
func NewHTTPServer(service linkvault.Service, serverConfig *config.ServerConfig) *HTTPServer {
	return &HTTPServer{
		service:   service,
		config:    serverConfig,
		startedAt: time.Now(),
	}
}

// Routes sets up the HTTP routes
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.config.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	handler := api.NewHandler(s.service,
		api.WithFrontendURL(s.config.FrontendURL),
		api.WithTokenAuth(s.config.TokenAuth()),
		api.WithMaxUploadSize(s.config.MaxFileSize),
	)
	r.Mount("/api", handler.Routes())

	return r
}

// HealthResponse is the response body for the health check
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Uptime      float64   `json:"uptime_seconds"`
	Environment string    `json:"environment"`
	Storage     string    `json:"storage"`
	Database    string    `json:"database"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(s.startedAt).Seconds(),
		Environment: s.config.Environment,
		Storage:     s.config.Storage.Type,
		Database:    s.config.DatabaseType,
	})
}

func (s *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"service":     "linkvault",
		"description": "Share text and files through links that expire",
		"endpoints": map[string]string{
			"upload":   "POST /api/upload",
			"content":  "GET /api/content/{id}",
			"download": "GET /api/download/{id}",
			"delete":   "DELETE /api/content/{id}",
			"stats":    "GET /api/stats",
			"health":   "GET /health",
			"metrics":  "GET /metrics",
		},
	})
}
