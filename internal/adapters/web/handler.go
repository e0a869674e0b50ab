// Package web serves the HTTP API: catalog browsing, synchronous table
// downloads, export scheduling and artifact retrieval.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"panelcore/docs/schema"
	"panelcore/docs/schema/openapi"
	"panelcore/internal/catalog"
	"panelcore/internal/core"
	"panelcore/internal/export"
	"panelcore/internal/persistence"
)

// Handler routes the /api/v1 surface onto the service.
type Handler struct {
	Service *core.Service
}

// NewHandler constructs an API handler over svc.
func NewHandler(svc *core.Service) *Handler {
	return &Handler{Service: svc}
}

// Routes assembles the full server mux: the API, health and Prometheus
// metrics.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/v1/", h)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		health := map[string]any{"status": "ok"}
		if version, err := schema.APIVersion(); err == nil {
			health["api_version"] = version
		}
		writeJSON(w, http.StatusOK, health)
	})
	return mux
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/openapi.yaml":
		h.requireGet(w, r, handleSpec)
	case path == "/api/v1/datasets":
		h.requireGet(w, r, h.handleListDatasets)
	case strings.HasPrefix(path, "/api/v1/datasets/"):
		h.handleDataset(w, r, strings.TrimPrefix(path, "/api/v1/datasets/"))
	case path == "/api/v1/exports":
		switch r.Method {
		case http.MethodPost:
			h.handleExportCreate(w, r)
		case http.MethodGet:
			h.handleExportList(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case strings.HasPrefix(path, "/api/v1/exports/"):
		h.handleExport(w, r, strings.TrimPrefix(path, "/api/v1/exports/"))
	case path == "/api/v1/audit":
		h.requireGet(w, r, h.handleAudit)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) requireGet(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request)) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	next(w, r)
}

func handleSpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapi.Spec())
}

func (h *Handler) handleListDatasets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"datasets": h.Service.Datasets()})
}

func (h *Handler) handleDataset(w http.ResponseWriter, r *http.Request, remainder string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	segments := strings.Split(remainder, "/")
	switch len(segments) {
	case 1:
		info, err := h.Service.Dataset(segments[0])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"dataset": info})
	case 2:
		if segments[1] != "table" {
			http.NotFound(w, r)
			return
		}
		h.handleTable(w, r, segments[0])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleTable(w http.ResponseWriter, r *http.Request, key string) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = catalog.ViewRaw
	}
	table, err := h.Service.DatasetTable(r.Context(), key, view)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	format := negotiateFormat(r)
	if format == "" {
		writeError(w, http.StatusNotAcceptable, "requested format not supported")
		return
	}
	payload, err := export.Render(format, key, view, table)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if format == export.FormatCSV {
		filename := fmt.Sprintf("%s-%s-%s.csv", key, view, time.Now().UTC().Format("20060102T150405Z"))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		_, _ = w.Write(payload)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

type exportRequest struct {
	Dataset string   `json:"dataset"`
	View    string   `json:"view"`
	Formats []string `json:"formats"`
	Actor   string   `json:"actor"`
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}
	formats := make([]export.Format, 0, len(req.Formats))
	for _, name := range req.Formats {
		format, err := export.ParseFormat(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		formats = append(formats, format)
	}
	view := req.View
	if view == "" {
		view = catalog.ViewRaw
	}
	record, err := h.Service.CreateExport(r.Context(), export.Request{
		Dataset: req.Dataset,
		View:    view,
		Formats: formats,
		Actor:   req.Actor,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (h *Handler) handleExportList(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.Exports(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": records})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, remainder string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	segments := strings.Split(remainder, "/")
	switch {
	case len(segments) == 1 && segments[0] != "":
		record, err := h.Service.Export(r.Context(), segments[0])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"export": record})
	case len(segments) == 3 && segments[1] == "artifacts":
		h.handleArtifact(w, r, segments[0], segments[2])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleArtifact(w http.ResponseWriter, r *http.Request, exportID, format string) {
	info, rc, err := h.Service.OpenArtifact(r.Context(), exportID, format)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer func() { _ = rc.Close() }()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(info.Key)))
	_, _ = io.Copy(w, rc)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	entries, err := h.Service.Audit(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit": entries})
}

// negotiateFormat picks csv or json from the format query parameter, falling
// back to the Accept header and defaulting to json.
func negotiateFormat(r *http.Request) export.Format {
	wanted := strings.ToLower(r.URL.Query().Get("format"))
	if wanted == "" {
		if strings.Contains(r.Header.Get("Accept"), "text/csv") {
			wanted = string(export.FormatCSV)
		} else {
			wanted = string(export.FormatJSON)
		}
	}
	switch export.Format(wanted) {
	case export.FormatCSV:
		return export.FormatCSV
	case export.FormatJSON:
		return export.FormatJSON
	}
	return ""
}

func writeServiceError(w http.ResponseWriter, err error) {
	var notFound persistence.ErrNotFound
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrUnknownView):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
