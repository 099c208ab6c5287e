package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/marbleshade/internal/archive"
)

// ArchiveHandler serves frames from a frame archive.
type ArchiveHandler struct {
	reader       *archive.Reader
	logger       *slog.Logger
	cacheControl string
}

// ArchiveConfig configures the archive handler.
type ArchiveConfig struct {
	ArchivePath  string
	CacheControl string
}

// NewArchiveHandler opens the archive read-only.
func NewArchiveHandler(cfg ArchiveConfig, logger *slog.Logger) (*ArchiveHandler, error) {
	reader, err := archive.OpenReader(cfg.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "public, max-age=86400"
	}

	return &ArchiveHandler{
		reader:       reader,
		logger:       logger,
		cacheControl: cfg.CacheControl,
	}, nil
}

// Handler serves /archive/metadata.json and /archive/<index>.png.
func (h *ArchiveHandler) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/archive/metadata.json" {
			h.serveMetadata(w)
			return
		}
		h.serveFrame(w, r)
	}
}

func (h *ArchiveHandler) serveFrame(w http.ResponseWriter, r *http.Request) {
	index, ok := parseFramePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, t, err := h.reader.ReadFrame(index)
	if err != nil {
		if errors.Is(err, archive.ErrFrameNotFound) {
			http.Error(w, "Frame not found", http.StatusNotFound)
			return
		}
		h.log().Error("Failed to read frame", "frame", index, "error", err)
		http.Error(w, "failed to read frame", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", h.cacheControl)
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Frame-Time", strconv.FormatFloat(t, 'f', -1, 64))
	if _, err := w.Write(data); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

func (h *ArchiveHandler) serveMetadata(w http.ResponseWriter) {
	meta, err := h.reader.Metadata()
	if err != nil {
		h.log().Error("Failed to read metadata", "error", err)
		http.Error(w, "failed to read metadata", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(meta); err != nil {
		h.log().Error("Failed to encode metadata", "error", err)
	}
}

// Close closes the archive reader.
func (h *ArchiveHandler) Close() error {
	return h.reader.Close()
}

func (h *ArchiveHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// parseFramePath parses a frame path like /archive/42.png.
func parseFramePath(requestPath string) (int, bool) {
	if !strings.HasPrefix(requestPath, "/archive/") {
		return 0, false
	}
	base := path.Base(requestPath)
	if !strings.HasSuffix(base, ".png") {
		return 0, false
	}
	index, err := strconv.Atoi(strings.TrimSuffix(base, ".png"))
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}
