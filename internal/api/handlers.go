package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/imaging"
	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/perf"
	"github.com/starford/dagaz/internal/photos"
	"github.com/starford/dagaz/internal/settings"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/startup"
)

// Handler holds API route handlers and their collaborators.
type Handler struct {
	entries  *journal.Repository
	settings *settings.Repository
	photos   *photos.Service
	startup  *startup.Service
	monitor  *perf.Monitor
	broker   *sse.Broker
	logger   *slog.Logger

	imageTargetSize int
	imageQuality    float64
}

// NewHandler creates a new Handler. broker may be nil when no event stream is
// wired.
func NewHandler(
	entries *journal.Repository,
	sr *settings.Repository,
	ph *photos.Service,
	st *startup.Service,
	mon *perf.Monitor,
	broker *sse.Broker,
	logger *slog.Logger,
	imageTargetSize int,
	imageQuality float64,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if imageTargetSize <= 0 {
		imageTargetSize = imaging.DefaultTargetSize
	}
	return &Handler{
		entries:         entries,
		settings:        sr,
		photos:          ph,
		startup:         st,
		monitor:         mon,
		broker:          broker,
		logger:          logger,
		imageTargetSize: imageTargetSize,
		imageQuality:    imageQuality,
	}
}

// writeDomainError maps a typed domain error onto an HTTP status with the
// user-facing message in the body.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, op string) {
	msg := apperr.UserMessage(err, "internal error")
	switch {
	case errors.Is(err, apperr.ErrDuplicateEntry):
		writeJSON(w, http.StatusConflict, errorBody(msg))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(msg))
	case errors.Is(err, apperr.ErrNotInitialized):
		writeJSON(w, http.StatusServiceUnavailable, errorBody(msg))
	default:
		h.logger.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(msg))
	}
}

// ListEntries handles GET /entries.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, err := h.entries.FindAll(r.Context(), limit, offset)
	if err != nil {
		h.writeDomainError(w, err, "list entries")
		return
	}
	total, err := h.entries.Count(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "count entries")
		return
	}
	if items == nil {
		items = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: items, Total: total})
}

// EntriesInRange handles GET /entries/range?start=YYYY-MM-DD&end=YYYY-MM-DD.
func (h *Handler) EntriesInRange(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("start and end are required"))
		return
	}
	items, err := h.entries.FindByDateRange(r.Context(), start, end)
	if err != nil {
		h.writeDomainError(w, err, "range entries")
		return
	}
	if items == nil {
		items = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: items, Total: len(items)})
}

// CountEntries handles GET /entries/count.
func (h *Handler) CountEntries(w http.ResponseWriter, r *http.Request) {
	n, err := h.entries.Count(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "count entries")
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// GetEntry handles GET /entries/{id}.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := h.entries.FindByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "get entry")
		return
	}
	if entry == nil {
		writeJSON(w, http.StatusNotFound, errorBody("entry not found"))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// GetEntryByDate handles GET /entries/date/{date}.
func (h *Handler) GetEntryByDate(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	entry, err := h.entries.FindByDate(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, err, "get entry by date")
		return
	}
	if entry == nil {
		writeJSON(w, http.StatusNotFound, errorBody("no entry for this date"))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// CreateEntry handles POST /entries.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var in journal.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := in.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	entry, err := h.entries.Create(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err, "create entry")
		return
	}
	if h.broker != nil {
		h.broker.PublishEntryEvent("created", entry.Date)
	}
	writeJSON(w, http.StatusCreated, entry)
}

// UpdateEntry handles PATCH /entries/{id}.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var in journal.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	in.ID = chi.URLParam(r, "id")
	if err := in.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	entry, err := h.entries.Update(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err, "update entry")
		return
	}
	if h.broker != nil {
		h.broker.PublishEntryEvent("updated", entry.Date)
	}
	writeJSON(w, http.StatusOK, entry)
}

// DeleteEntry handles DELETE /entries/{id}.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := h.entries.FindByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "delete entry")
		return
	}
	if err := h.entries.Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, err, "delete entry")
		return
	}
	if h.broker != nil && entry != nil {
		h.broker.PublishEntryEvent("deleted", entry.Date)
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSettings handles GET /settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Get(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "get settings")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateSettings handles PATCH /settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var u settings.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	cfg, err := h.settings.Apply(r.Context(), u)
	if err != nil {
		h.writeDomainError(w, err, "update settings")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// ResetSettings handles POST /settings/reset.
func (h *Handler) ResetSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.Reset(r.Context()); err != nil {
		h.writeDomainError(w, err, "reset settings")
		return
	}
	cfg, err := h.settings.Get(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "reset settings")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UploadPhoto handles POST /photos: receives a source image, normalizes it to
// a bounded square, and persists it into the managed directory.
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 32<<20)
	file, header, err := r.FormFile("photo")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("photo file is required"))
		return
	}
	defer file.Close()

	src, err := os.CreateTemp("", "dagaz-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		h.logger.Error("upload temp failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("could not receive the photo"))
		return
	}
	defer os.Remove(src.Name())
	if _, err := io.Copy(src, file); err != nil {
		src.Close()
		writeJSON(w, http.StatusInternalServerError, errorBody("could not receive the photo"))
		return
	}
	src.Close()

	opts := imaging.Options{TargetSize: h.imageTargetSize, Quality: h.imageQuality}
	if q := r.URL.Query().Get("quality"); q != "" {
		if parsed, pErr := strconv.ParseFloat(q, 64); pErr == nil {
			opts.Quality = parsed
		}
	} else if dims, dErr := imaging.GetDimensions(src.Name()); dErr == nil {
		opts.Quality = imaging.OptimalQuality(dims.Width, dims.Height, opts.TargetSize)
	}

	result, err := imaging.ProcessToSquare(src.Name(), opts)
	if err != nil {
		h.logger.Error("photo processing failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("could not process the photo"))
		return
	}

	saved, err := h.photos.SaveProcessed(result.Path)
	if err != nil {
		h.writeDomainError(w, err, "save photo")
		return
	}

	writeJSON(w, http.StatusCreated, PhotoUploadResponse{
		Path:               saved,
		ProcessingTimeMS:   result.ProcessingTime.Milliseconds(),
		OriginalDimensions: result.OriginalDimensions,
		FinalDimensions:    result.FinalDimensions,
		Performance:        imaging.ValidatePerformance(result.ProcessingTime, 0),
		EstimatedSizeKB: imaging.EstimateFileSize(
			result.FinalDimensions.Width, result.FinalDimensions.Height,
			opts.Quality, imaging.FormatJPEG),
	})
}

// DeletePhoto handles DELETE /photos?path=.
func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	path := h.photos.NormalizePath(r.URL.Query().Get("path"))
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.photos.Delete(path); err != nil {
		h.writeDomainError(w, err, "delete photo")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PhotoMetadata handles GET /photos/metadata?path=.
func (h *Handler) PhotoMetadata(w http.ResponseWriter, r *http.Request) {
	path := h.photos.NormalizePath(r.URL.Query().Get("path"))
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	meta, err := h.photos.GetMetadata(path)
	if err != nil {
		h.writeDomainError(w, err, "photo metadata")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// PhotoStats handles GET /photos/stats.
func (h *Handler) PhotoStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PhotoStatsResponse{DirectorySizeMB: h.photos.DirSizeMB()})
}

// CleanupPhotos handles POST /photos/cleanup: reconciles the managed
// directory against the photo paths referenced by entries.
func (h *Handler) CleanupPhotos(w http.ResponseWriter, r *http.Request) {
	used, err := h.entries.UsedPhotoPaths(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "photo cleanup")
		return
	}
	h.photos.CleanupUnused(used)
	writeJSON(w, http.StatusOK, PhotoStatsResponse{DirectorySizeMB: h.photos.DirSizeMB()})
}

// Status handles GET /system/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		State:       h.startup.State(),
		Initialized: h.startup.IsInitialized(),
		LastResult:  h.startup.LastResult(),
		Phases:      h.monitor.AllMetrics(),
	})
}

// Health handles GET /system/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	healthy := h.startup.HealthCheck(r.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Healthy: healthy})
}

// Recover handles POST /system/recover: the out-of-band retry path after a
// failed launch.
func (h *Handler) Recover(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RecoverResponse{Recovered: h.startup.Recover(r.Context())})
}
