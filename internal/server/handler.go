package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/username/school-status/internal/calendar"
	"github.com/username/school-status/internal/ics"
	"github.com/username/school-status/internal/status"
	"github.com/username/school-status/pkg/dateutil"
	"go.uber.org/zap"
)

// MaxRangeDays bounds a single range query
const MaxRangeDays = 366

// Handler serves live resolutions over HTTP
type Handler struct {
	aggregator *status.Aggregator
	resolver   *status.Resolver
	exporter   *ics.Exporter
	logger     *zap.Logger
}

// NewHandler creates a new Handler
func NewHandler(aggregator *status.Aggregator, resolver *status.Resolver, exporter *ics.Exporter, logger *zap.Logger) *Handler {
	return &Handler{
		aggregator: aggregator,
		resolver:   resolver,
		exporter:   exporter,
		logger:     logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// ServeHealth handles GET /healthz
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ServeDay handles GET /api/day/{date}?types=traditional,yearround
func (h *Handler) ServeDay(w http.ResponseWriter, r *http.Request) {
	types, err := parseTypes(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	day, err := h.aggregator.ResolveDay(r.Context(), chi.URLParam(r, "date"), types...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, day)
}

// ServeRange handles GET /api/range/{start}/{end}?types=...
func (h *Handler) ServeRange(w http.ResponseWriter, r *http.Request) {
	start, end := chi.URLParam(r, "start"), chi.URLParam(r, "end")

	types, err := parseTypes(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	from, err := dateutil.ParseDay(start, h.resolver.Location())
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: '%s'", calendar.ErrInvalidDate, start))
		return
	}
	to, err := dateutil.ParseDay(end, h.resolver.Location())
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: '%s'", calendar.ErrInvalidDate, end))
		return
	}
	if to.Before(from) {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("range end %s is before start %s", end, start),
		})
		return
	}
	if to.After(from.AddDate(0, 0, MaxRangeDays-1)) {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("range exceeds the limit of %d days", MaxRangeDays),
		})
		return
	}

	days, err := h.aggregator.ResolveRange(r.Context(), start, end, types...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, days)
}

// ServeDelay handles GET /api/delay/{date}
func (h *Handler) ServeDelay(w http.ResponseWriter, r *http.Request) {
	delay, err := h.resolver.ResolveDelay(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, delay)
}

// ServeToday handles GET /api/today
func (h *Handler) ServeToday(w http.ResponseWriter, r *http.Request) {
	day, err := h.aggregator.Today(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, day)
}

// ServeTomorrow handles GET /api/tomorrow
func (h *Handler) ServeTomorrow(w http.ResponseWriter, r *http.Request) {
	day, err := h.aggregator.Tomorrow(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, day)
}

// ServeThisWeek handles GET /api/thisweek
func (h *Handler) ServeThisWeek(w http.ResponseWriter, r *http.Request) {
	days, err := h.aggregator.ThisWeek(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, days)
}

// ServeNextWeek handles GET /api/nextweek
func (h *Handler) ServeNextWeek(w http.ResponseWriter, r *http.Request) {
	days, err := h.aggregator.NextWeek(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, days)
}

// ServeCalendar handles GET /api/calendar/{type}/{year}.ics
func (h *Handler) ServeCalendar(w http.ResponseWriter, r *http.Request) {
	ct, err := calendar.ParseCalendarType(chi.URLParam(r, "type"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "year must be a number"})
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Write(r.Context(), &buf, ct, year); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_%d.ics", ct, year))
	_, _ = w.Write(buf.Bytes())
}

func parseTypes(r *http.Request) ([]calendar.CalendarType, error) {
	raw := r.URL.Query().Get("types")
	if raw == "" {
		return nil, nil
	}

	var types []calendar.CalendarType
	for _, part := range strings.Split(raw, ",") {
		ct, err := calendar.ParseCalendarType(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		types = append(types, ct)
	}
	return types, nil
}

// statusFor maps resolution errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, calendar.ErrInvalidDate), errors.Is(err, calendar.ErrUnknownCalendarType):
		return http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		h.logger.Debug("Request rejected",
			zap.String("path", r.URL.Path),
			zap.Int("status", code),
			zap.Error(err))
	}
	h.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to write response", zap.Error(err))
	}
}
