package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/deaddrop/deaddrop"
)

// Service is the application surface the HTTP layer drives.
type Service interface {
	Upload(ctx context.Context, req deaddrop.UploadRequest) (deaddrop.UploadResult, error)
	Download(ctx context.Context, id string) (deaddrop.DownloadResult, error)
	Stat(ctx context.Context, id string) (deaddrop.FileInfo, error)
	Health(ctx context.Context) bool
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	// Version is reported by the health endpoint.
	Version string
	// MaxUploadSize caps the request body in bytes; non-positive uses
	// deaddrop.DefaultMaxFileSize.
	MaxUploadSize int64
	CORS          CORSConfig
}

// Handler provides HTTP handlers for the file-drop operations.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = deaddrop.DefaultMaxFileSize
	}
	return &Handler{
		config:  cfg,
		service: service,
	}
}

// Router returns an http.Handler with the API routes configured.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(RequestLogger)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload", h.handleUpload)
		r.Get("/download/{id}", h.handleDownload)
		r.Get("/files/{id}", h.handleStat)
		r.Get("/health", h.handleHealth)
	})

	return r
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	// A little slack over the content cap so the multipart framing of a
	// maximum-size file still parses and the size check can report 413
	// with the real limit.
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "File exceeds maximum size")
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Missing file field")
		return
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "File exceeds maximum size")
			return
		}
		HandleError(w, err)
		return
	}

	ttl := int(deaddrop.TTLDay)
	if v := r.FormValue("ttl"); v != "" {
		ttl, err = strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", "ttl must be an integer")
			return
		}
	}

	maxDownloads := deaddrop.MinDownloadLimit
	if v := r.FormValue("max_downloads"); v != "" {
		maxDownloads, err = strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", "max_downloads must be an integer")
			return
		}
	}

	// The file part carries the name; an explicit filename field overrides it.
	filename := header.Filename
	if v := r.FormValue("filename"); v != "" {
		filename = v
	}

	res, err := h.service.Upload(r.Context(), deaddrop.UploadRequest{
		Content:      content,
		TTLSeconds:   ttl,
		MaxDownloads: maxDownloads,
		Filename:     filename,
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.service.Download(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename+".enc"))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Content)))
	_, _ = w.Write(res.Content)
}

func (h *Handler) handleStat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info, err := h.service.Stat(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, info)
}

// healthResponse reports overall and per-dependency status.
type healthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Service      string            `json:"service"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:       "healthy",
		Version:      h.config.Version,
		Service:      "deaddrop",
		Dependencies: map[string]string{"metadata": "healthy"},
	}

	if !h.service.Health(r.Context()) {
		resp.Status = "degraded"
		resp.Dependencies["metadata"] = "unhealthy"
	}

	_ = WriteJSON(w, http.StatusOK, resp)
}
