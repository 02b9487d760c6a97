package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/weichenlin/twchip/internal/market"
	"github.com/weichenlin/twchip/internal/report"
	"github.com/weichenlin/twchip/pkg/logger"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

// RecordStore is the repository surface the handlers read from.
type RecordStore interface {
	GetByDate(ctx context.Context, date market.TradeDate) (*market.ChipRecord, error)
	GetLatest(ctx context.Context) (*market.ChipRecord, error)
}

// Backfiller runs one collect+persist cycle for a date.
type Backfiller interface {
	RunFor(ctx context.Context, date market.TradeDate, push bool) error
}

// ReportHandler serves the chip report endpoints.
type ReportHandler struct {
	store      RecordStore
	backfiller Backfiller
	calendar   *market.Calendar
	log        zerolog.Logger
}

// NewReportHandler creates the report handler. backfiller may be nil in
// read-only deployments; POST /api/collect then returns 503.
func NewReportHandler(store RecordStore, backfiller Backfiller, cal *market.Calendar) *ReportHandler {
	return &ReportHandler{
		store:      store,
		backfiller: backfiller,
		calendar:   cal,
		log:        logger.With("api"),
	}
}

// reportResponse pairs the raw record with its rendered text.
type reportResponse struct {
	Record *market.ChipRecord `json:"record"`
	View   report.View        `json:"view"`
	Text   string             `json:"text"`
}

// GetLatest returns the most recent record.
// GET /api/report/latest?view=
func (h *ReportHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	view, ok := viewParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid view (valid: full, taiex, institutional, futures, retail)")
		return
	}

	rec, err := h.store.GetLatest(r.Context())
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reportResponse{Record: rec, View: view, Text: report.Format(rec, view)})
}

// GetByDate returns the record of one trading date.
// GET /api/report/{date}?view=
func (h *ReportHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	view, ok := viewParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid view (valid: full, taiex, institutional, futures, retail)")
		return
	}

	date, err := market.ParseTradeDate(mux.Vars(r)["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date (expected YYYYMMDD)")
		return
	}

	rec, err := h.store.GetByDate(r.Context(), date)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reportResponse{Record: rec, View: view, Text: report.Format(rec, view)})
}

// CollectRequest triggers a manual collection cycle.
type CollectRequest struct {
	Date string `json:"date"` // YYYYMMDD, empty = latest session
	Push bool   `json:"push"` // also distribute to subscribers
}

// CollectResponse reports a triggered collection.
type CollectResponse struct {
	Status string `json:"status"`
	Date   string `json:"date"`
}

// Collect runs one fetch+persist cycle for the requested date.
// POST /api/collect
func (h *ReportHandler) Collect(w http.ResponseWriter, r *http.Request) {
	if h.backfiller == nil {
		respondError(w, http.StatusServiceUnavailable, "Collection not available")
		return
	}

	var req CollectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var date market.TradeDate
	if req.Date == "" {
		date = h.calendar.LatestTradeDate(timeNow())
	} else {
		var err error
		date, err = market.ParseTradeDate(req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid date (expected YYYYMMDD)")
			return
		}
		if err := h.calendar.Validate(date); err != nil {
			respondError(w, http.StatusBadRequest, "No trading session on requested date")
			return
		}
	}

	h.log.Info().Str("date", date.String()).Bool("push", req.Push).
		Msg("Manual collection triggered")

	if err := h.backfiller.RunFor(r.Context(), date, req.Push); err != nil {
		h.log.Error().Err(err).Str("date", date.String()).Msg("Manual collection failed")
		respondError(w, http.StatusInternalServerError, "Collection failed")
		return
	}
	respondJSON(w, http.StatusOK, CollectResponse{Status: "success", Date: date.String()})
}

func (h *ReportHandler) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, report.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no report for date")
		return
	}
	h.log.Error().Err(err).Msg("Record lookup failed")
	respondError(w, http.StatusInternalServerError, "Failed to retrieve report")
}

func viewParam(r *http.Request) (report.View, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("view"))
	if raw == "" {
		return report.ViewFull, true
	}
	view := report.View(raw)
	return view, report.ValidView(view)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
