package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/nerkh/internal/calculator"
	"github.com/mtlprog/nerkh/internal/catalog"
	"github.com/mtlprog/nerkh/internal/domain"
	"github.com/mtlprog/nerkh/internal/export"
	"github.com/mtlprog/nerkh/internal/market"
	"github.com/mtlprog/nerkh/internal/ohlc"
)

const maxBodyBytes = 1 << 20

// Services are the backends the HTTP handlers call.
type Services struct {
	Catalog *catalog.Service
	Market  *market.Service
	OHLC    *ohlc.Reader
	Export  *export.Service
}

// Handler provides HTTP endpoints for the pricing API.
type Handler struct {
	catalog *catalog.Service
	market  *market.Service
	ohlc    *ohlc.Reader
	export  *export.Service
	now     func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(svcs Services) *Handler {
	return &Handler{
		catalog: svcs.Catalog,
		market:  svcs.Market,
		ohlc:    svcs.OHLC,
		export:  svcs.Export,
		now:     time.Now,
	}
}

// parseDate reads an optional YYYY-MM-DD query parameter, defaulting to today (UTC).
func (h *Handler) parseDate(r *http.Request) (time.Time, bool) {
	s := r.URL.Query().Get("date")
	if s == "" {
		return domain.DateOnly(h.now()), true
	}
	date, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// decodeJSON decodes a request body, keeping numbers as json.Number.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	return dec.Decode(v)
}

type violationsResponse struct {
	Error      string              `json:"error"`
	Violations []catalog.Violation `json:"violations"`
}

// writeServiceError maps service errors to HTTP statuses. Unknown errors are logged and
// reported as 500 without details.
func writeServiceError(w http.ResponseWriter, err error, action string) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, violationsResponse{Error: "validation failed", Violations: verr.Violations})
	case errors.Is(err, domain.ErrInvalidNumericValue), errors.Is(err, market.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, market.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrDuplicateCode), errors.Is(err, market.ErrDuplicateSymbol):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed", "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListItems returns the active managed items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	h.listItems(w, r, false)
}

// AdminListItems returns all managed items, inactive ones included.
func (h *Handler) AdminListItems(w http.ResponseWriter, r *http.Request) {
	h.listItems(w, r, true)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request, includeInactive bool) {
	items, err := h.catalog.List(r.Context(), includeInactive)
	if err != nil {
		writeServiceError(w, err, "list items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GetItem returns a managed item by code.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.Get(r.Context(), r.PathValue("code"))
	if err != nil {
		writeServiceError(w, err, "get item")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// CreateItem validates and stores a new managed item.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var input map[string]any
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	item, err := h.catalog.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, err, "create item")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateItem applies a partial update to a managed item.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var input map[string]any
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	item, err := h.catalog.Update(r.Context(), r.PathValue("code"), input)
	if err != nil {
		writeServiceError(w, err, "update item")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteItem removes a managed item.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), r.PathValue("code")); err != nil {
		writeServiceError(w, err, "delete item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSnapshot returns the market snapshot for the date query parameter (default today).
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDate(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}
	snap, err := h.market.Snapshot(r.Context(), date)
	if err != nil {
		writeServiceError(w, err, "get snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListDigitalCurrencies returns the top digital currencies by market cap.
func (h *Handler) ListDigitalCurrencies(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	records, err := h.market.TopDigitalCurrencies(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err, "list digital currencies")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GetDigitalCurrency returns one digital currency by symbol.
func (h *Handler) GetDigitalCurrency(w http.ResponseWriter, r *http.Request) {
	record, err := h.market.DigitalCurrency(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeServiceError(w, err, "get digital currency")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type createDigitalCurrencyRequest struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	PriceInToman any    `json:"priceInToman"`
}

// CreateDigitalCurrency adds a digital currency by hand.
func (h *Handler) CreateDigitalCurrency(w http.ResponseWriter, r *http.Request) {
	var req createDigitalCurrencyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	price, err := domain.ToDecimal(req.PriceInToman)
	if err != nil {
		writeError(w, http.StatusBadRequest, "priceInToman must be a number")
		return
	}
	record, err := h.market.AddDigitalCurrency(r.Context(), req.Symbol, req.Name, price)
	if err != nil {
		writeServiceError(w, err, "create digital currency")
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// ListStaleDigitalCurrencies returns active digital currencies not refreshed in the last day.
func (h *Handler) ListStaleDigitalCurrencies(w http.ResponseWriter, r *http.Request) {
	records, err := h.market.StaleDigitalCurrencies(r.Context())
	if err != nil {
		writeServiceError(w, err, "list stale digital currencies")
		return
	}
	if records == nil {
		records = []domain.DigitalCurrencyRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Ingest runs one feed ingest on demand.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	result, err := h.market.Ingest(r.Context())
	if err != nil {
		slog.Error("manual ingest failed", "error", err)
		writeError(w, http.StatusBadGateway, "ingest failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type ohlcResponse struct {
	ohlc.Result
	Error string `json:"error,omitempty"`
}

// GetOHLC returns the candle series for an item code. enabled=false only reports
// already cached data; refresh=true bypasses the freshness window.
func (h *Handler) GetOHLC(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	enabled := q.Get("enabled") != "false"

	var result ohlc.Result
	if enabled && q.Get("refresh") == "true" {
		result = h.ohlc.Refetch(r.Context(), r.PathValue("code"))
	} else {
		result = h.ohlc.Query(r.Context(), r.PathValue("code"), enabled)
	}
	if result.Data == nil {
		result.Data = []domain.Candle{}
	}

	resp := ohlcResponse{Result: result}
	if result.Err != nil {
		slog.Warn("ohlc fetch failed", "code", r.PathValue("code"), "error", result.Err)
		resp.Error = ohlc.ErrFetchFailure.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// syncRequest carries the client's stored calculator state. Date is the date the
// stored prices belong to; TargetDate is the date to reprice against and defaults to Date.
type syncRequest struct {
	Active     bool              `json:"active"`
	Date       string            `json:"date"`
	TargetDate string            `json:"targetDate"`
	Items      []calculator.Item `json:"items"`
}

type syncResponse struct {
	State   calculator.State   `json:"state"`
	Effects calculator.Effects `json:"effects"`
	Applied bool               `json:"applied"`
	Total   decimal.Decimal    `json:"total"`
}

// SyncCalculator reprices a calculator against the market snapshot for its target date.
// The client owns the state, so a Session lives for one request; ordering between
// concurrent syncs is the client's concern.
func (h *Handler) SyncCalculator(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, ok := parseSyncDate(req.Date, domain.DateOnly(h.now()))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}
	target, ok := parseSyncDate(req.TargetDate, date)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid targetDate format, expected YYYY-MM-DD")
		return
	}

	session := calculator.NewSession(calculator.State{Active: req.Active, Date: date, Items: req.Items})
	state, eff, applied, err := session.Refresh(r.Context(), h.market, target)
	if err != nil {
		writeServiceError(w, err, "sync calculator")
		return
	}
	if state.Items == nil {
		state.Items = []calculator.Item{}
	}
	writeJSON(w, http.StatusOK, syncResponse{
		State:   state,
		Effects: eff,
		Applied: applied,
		Total:   calculator.Total(state.Items),
	})
}

func parseSyncDate(value string, fallback time.Time) (time.Time, bool) {
	if value == "" {
		return fallback, true
	}
	d, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// ExportWorkbook streams the market workbook for the date query parameter.
func (h *Handler) ExportWorkbook(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDate(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	var buf bytes.Buffer
	if err := h.export.Workbook(r.Context(), date, &buf); err != nil {
		writeServiceError(w, err, "export workbook")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="market-%s.xlsx"`, date.Format(time.DateOnly)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("failed to write workbook", "error", err)
	}
}
