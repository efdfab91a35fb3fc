package http

import (
	"bytes"
	stderrors "errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "enrolldash/internal/errors"
	"enrolldash/internal/middleware"
	"enrolldash/pkg/contracts/domain"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
	uploadFormField = "file"
	workbookName    = "enrollment-dashboard.xlsx"
)

// UploadRequest is the JSON upload body. Contents is a data URL as produced
// by a browser file input.
type UploadRequest struct {
	Filename string `json:"filename" validate:"required,filename"`
	Contents string `json:"contents" validate:"required"`
}

// FilterRequest replaces one dimension's selected values. An empty list
// clears the dimension.
type FilterRequest struct {
	Values []string `json:"values" validate:"max=5000,dive,max=512"`
}

// DashboardHandler serves session-scoped dashboard requests
type DashboardHandler struct {
	service      DashboardServiceInterface
	validator    *middleware.Validator
	errorHandler *apierrors.ErrorHandler
	maxUpload    int64
	cookieName   string
	logger       *slog.Logger
}

// DashboardHandlerConfig carries the transport limits
type DashboardHandlerConfig struct {
	MaxUploadBytes int64
	CookieName     string
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, cfg DashboardHandlerConfig, validator *middleware.Validator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		maxUpload:    cfg.MaxUploadBytes,
		cookieName:   cfg.CookieName,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
	}
}

// Routes returns the session routes, mounted under /api/sessions
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateSession)

	r.Route("/{sessionID}", func(r chi.Router) {
		r.Use(h.SessionCtx)

		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)

		r.Post("/dataset", h.UploadDataset)
		r.Delete("/dataset", h.ClearDataset)

		r.Put("/filters/{dimension}", h.SetFilter)
		r.Delete("/filters", h.ClearFilters)

		r.Get("/options", h.GetOptions)
		r.Get("/dashboard", h.GetDashboard)

		r.Get("/export.xlsx", h.ExportWorkbook)
		r.Get("/export/{table}.csv", h.ExportTable)
	})

	return r
}

// SessionCtx rejects requests without a session id
func (h *DashboardHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "sessionID") == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("session_id", "Session id is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

func (h *DashboardHandler) success(w http.ResponseWriter, r *http.Request, data interface{}) {
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   data,
	})
}

// CreateSession handles POST /api/sessions
func (h *DashboardHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	snap := h.service.CreateSession(r.Context())

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    snap.SessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.InfoContext(r.Context(), "session created",
		slog.String("session_id", snap.SessionID),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	render.Status(r, http.StatusCreated)
	h.success(w, r, snap)
}

// GetSession handles GET /api/sessions/{sessionID}
func (h *DashboardHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.success(w, r, snap)
}

// DeleteSession handles DELETE /api/sessions/{sessionID}
func (h *DashboardHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), sessionID(r)); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadDataset handles POST /api/sessions/{sessionID}/dataset. It accepts
// either a multipart form with a "file" field or a JSON data URL body.
func (h *DashboardHandler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		snap domain.SessionSnapshot
		err  error
	)
	if mediaType == "multipart/form-data" {
		snap, err = h.uploadMultipart(r)
	} else {
		var req UploadRequest
		if err = h.validator.DecodeJSON(r, &req); err == nil {
			snap, err = h.service.UploadDataURL(r.Context(), sessionID(r), req.Filename, req.Contents)
		}
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "dataset uploaded",
		slog.String("session_id", snap.SessionID),
		slog.String("filename", snap.Filename),
		slog.String("state", string(snap.State)),
	)
	h.success(w, r, snap)
}

func (h *DashboardHandler) uploadMultipart(r *http.Request) (domain.SessionSnapshot, error) {
	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return domain.SessionSnapshot{}, err
		}
		return domain.SessionSnapshot{}, apierrors.ErrValidation(uploadFormField, "A file is required")
	}
	defer file.Close()

	contents, err := io.ReadAll(file)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	filename := filepath.Base(header.Filename)
	if filename == "." || filename == string(filepath.Separator) {
		return domain.SessionSnapshot{}, apierrors.ErrValidation("filename", "filename must be a plain file name")
	}
	return h.service.Upload(r.Context(), sessionID(r), filename, contents)
}

// ClearDataset handles DELETE /api/sessions/{sessionID}/dataset
func (h *DashboardHandler) ClearDataset(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.ClearDataset(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.success(w, r, snap)
}

// SetFilter handles PUT /api/sessions/{sessionID}/filters/{dimension}
func (h *DashboardHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	dim, err := domain.ParseDimension(chi.URLParam(r, "dimension"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("dimension", err.Error()))
		return
	}

	var req FilterRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	snap, err := h.service.SetFilter(r.Context(), sessionID(r), dim, req.Values)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.success(w, r, snap)
}

// ClearFilters handles DELETE /api/sessions/{sessionID}/filters
func (h *DashboardHandler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.ClearFilters(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.success(w, r, snap)
}

// GetOptions handles GET /api/sessions/{sessionID}/options
func (h *DashboardHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.Options(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.success(w, r, opts)
}

// GetDashboard handles GET /api/sessions/{sessionID}/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.Dashboard(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.success(w, r, dash)
}

// ExportWorkbook handles GET /api/sessions/{sessionID}/export.xlsx
func (h *DashboardHandler) ExportWorkbook(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.ExportWorkbook(r.Context(), sessionID(r), &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.download(w, r, workbookName, contentTypeXLSX, &buf)
}

// ExportTable handles GET /api/sessions/{sessionID}/export/{table}.csv
func (h *DashboardHandler) ExportTable(w http.ResponseWriter, r *http.Request) {
	table := domain.TableID(chi.URLParam(r, "table"))

	var buf bytes.Buffer
	if err := h.service.ExportTable(r.Context(), sessionID(r), table, &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.download(w, r, string(table)+".csv", contentTypeCSV, &buf)
}

// download sends a rendered export as an attachment
func (h *DashboardHandler) download(w http.ResponseWriter, r *http.Request, name, contentType string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(buf.Bytes()))
}
