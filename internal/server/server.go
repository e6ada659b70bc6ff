// Package server exposes installment plans, the market dashboard and the
// inventory dashboard as a JSON view API.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/iwvelando/top-planner/internal/cache"
	"github.com/iwvelando/top-planner/internal/dashboard"
	"github.com/iwvelando/top-planner/internal/export"
	"github.com/iwvelando/top-planner/internal/installment"
	"github.com/iwvelando/top-planner/internal/inventory"
	"github.com/iwvelando/top-planner/internal/pricing"
	"github.com/iwvelando/top-planner/pkg/constants"
	"github.com/iwvelando/top-planner/pkg/validation"
	"go.uber.org/zap"
)

var (
	errSessionNotFound  = errors.New("plan session not found")
	errTooManySessions  = errors.New("too many open plan sessions")
	errInvalidSelection = errors.New("invalid chart selection")
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Backend is everything the view API needs from the sales backend.
type Backend interface {
	installment.Submitter
	dashboard.Fetcher
	inventory.Fetcher
}

// Options configure the view API handler.
type Options struct {
	Backend        Backend
	Cache          cache.Cache
	Plan           installment.Options
	Session        installment.SessionOptions
	FilterDebounce time.Duration
	Export         export.Metadata
	MaxBodySize    int64
	MaxSessions    int
	Version        string
	Now            func() time.Time
}

type handler struct {
	logger    *zap.Logger
	opts      Options
	dashboard *dashboard.Dashboard

	mu       sync.Mutex
	sessions map[string]*installment.Session
}

// NewHandler constructs the HTTP handler that serves the view API.
func NewHandler(opts Options, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = constants.DefaultMaxBodySizeBytes
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryCache(constants.DefaultUnitsCacheTTLMinutes * time.Minute)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Version = strings.TrimSpace(opts.Version)
	if opts.Version == "" {
		opts.Version = "dev"
	}

	h := &handler{
		logger:    logger,
		opts:      opts,
		dashboard: dashboard.New(opts.Backend, opts.FilterDebounce, logger),
		sessions:  map[string]*installment.Session{},
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Recoverer(logger))
	r.Use(RequestBodyLimit(opts.MaxBodySize))

	r.Get("/api/version", h.handleVersion)

	r.Route("/api/plans", func(r chi.Router) {
		r.Post("/", h.handleCreatePlan)
		r.Get("/{id}", h.handleGetPlan)
		r.Delete("/{id}", h.handleDeletePlan)
		r.Post("/{id}/edits", h.handleEditPlan)
		r.Post("/{id}/discount", h.handleQueueDiscount)
		r.Post("/{id}/reconcile", h.handleReconcilePlan)
		r.Get("/{id}/export/{format}", h.handleExportPlan)
	})

	r.Get("/api/dashboard", h.handleDashboard)
	r.Post("/api/dashboard/filters", h.handleQueueDashboardFilters)
	r.Post("/api/dashboard/reset", h.handleDashboardReset)
	r.Get("/api/dashboard/export", h.handleDashboardExport)

	r.Get("/api/inventory/{companyID}", h.handleInventory)
	r.Get("/api/inventory/{companyID}/export", h.handleInventoryExport)

	return r
}

type planResponse struct {
	ID    string           `json:"id"`
	View  installment.View `json:"view"`
	Error string           `json:"error,omitempty"`
}

type discountRequest struct {
	Value float64 `json:"value"`
}

type createPlanRequest struct {
	Unit installment.Unit `json:"unit"`
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.opts.Version,
	})
}

func (h *handler) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCreatePlan"

	var req createPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondDecodeError(w, err, op)
		return
	}

	plan, err := installment.NewPlan(req.Unit, h.opts.Plan, h.logger)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	session := installment.NewSession(plan, h.opts.Backend, h.opts.Session, h.logger)

	h.mu.Lock()
	if len(h.sessions) >= h.opts.MaxSessions {
		h.mu.Unlock()
		h.respondErrorWithOp(w, http.StatusConflict, errTooManySessions.Error(), op)
		return
	}
	h.sessions[session.ID()] = session
	h.mu.Unlock()

	h.logger.Info("plan session created",
		zap.String("op", op),
		zap.String("session", session.ID()),
		zap.String("unit", req.Unit.Code),
	)

	if plan.State() != installment.StateEmpty {
		if err := session.Stabilize(r.Context()); err != nil {
			h.respondPlanError(w, session, err, op)
			return
		}
	}
	h.writeJSON(w, http.StatusCreated, planResponse{ID: session.ID(), View: plan.View()})
}

func (h *handler) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r, "server.handleGetPlan")
	if !ok {
		return
	}
	// A queued discount is applied before the plan is read.
	session.FlushDiscount()
	h.writeJSON(w, http.StatusOK, planResponse{ID: session.ID(), View: session.Plan().View()})
}

func (h *handler) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	_, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if !ok {
		h.respondErrorWithOp(w, http.StatusNotFound, errSessionNotFound.Error(), "server.handleDeletePlan")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleEditPlan(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleEditPlan"

	session, ok := h.session(w, r, op)
	if !ok {
		return
	}

	var edit installment.Edit
	if err := decodeJSON(r, &edit); err != nil {
		h.respondDecodeError(w, err, op)
		return
	}

	view, err := session.Apply(r.Context(), edit)
	if err != nil {
		h.respondPlanError(w, session, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, planResponse{ID: session.ID(), View: view})
}

func (h *handler) handleQueueDiscount(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleQueueDiscount"

	session, ok := h.session(w, r, op)
	if !ok {
		return
	}

	var req discountRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondDecodeError(w, err, op)
		return
	}

	session.QueueDiscount(context.WithoutCancel(r.Context()), req.Value, nil)
	h.writeJSON(w, http.StatusAccepted, planResponse{ID: session.ID(), View: session.Plan().View()})
}

func (h *handler) handleReconcilePlan(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleReconcilePlan"

	session, ok := h.session(w, r, op)
	if !ok {
		return
	}
	if err := session.Reconcile(r.Context()); err != nil {
		h.respondPlanError(w, session, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, planResponse{ID: session.ID(), View: session.Plan().View()})
}

func (h *handler) handleExportPlan(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleExportPlan"

	session, ok := h.session(w, r, op)
	if !ok {
		return
	}

	format := chi.URLParam(r, "format")
	if err := validation.ValidateExportFormat(format); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	meta := h.opts.Export
	meta.Time = h.opts.Now()
	report := export.NewReport(session.Plan().View(), meta)

	var buf bytes.Buffer
	var contentType string
	var err error
	switch format {
	case constants.ExportFormatCSV:
		contentType = "text/csv"
		err = export.ReportCSV(&buf, report)
	case constants.ExportFormatPDF:
		contentType = "application/pdf"
		err = export.ReportPDF(&buf, report)
	case constants.ExportFormatXLSX:
		contentType = xlsxContentType
		err = export.ReportXLSX(&buf, report)
	}
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to export report: %v", err), op)
		return
	}

	h.writeFile(w, contentType, report.FileName(format), buf.Bytes())
}

// handleDashboard applies the filters in the query. Without a query it
// renders the current filters, applying queued ones first.
func (h *handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDashboard"

	query := r.URL.Query()
	var view *dashboard.View
	var err error
	switch {
	case len(query) > 0:
		h.dashboard.CancelFilters()
		view, err = h.dashboard.Apply(r.Context(), dashboard.ParseFilters(query))
	case h.dashboard.FlushFilters():
		view, err = h.dashboard.Current()
	default:
		view, err = h.dashboard.Load(r.Context())
	}
	h.respondDashboard(w, view, err, op)
}

func (h *handler) handleQueueDashboardFilters(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleQueueDashboardFilters"

	var filters dashboard.Filters
	if err := decodeJSON(r, &filters); err != nil {
		h.respondDecodeError(w, err, op)
		return
	}

	h.dashboard.QueueApply(context.WithoutCancel(r.Context()), filters, nil)
	h.writeJSON(w, http.StatusAccepted, map[string]dashboard.Filters{
		"filters": filters,
	})
}

func (h *handler) handleDashboardReset(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDashboardReset"

	view, err := h.dashboard.Reset(r.Context())
	h.respondDashboard(w, view, err, op)
}

func (h *handler) respondDashboard(w http.ResponseWriter, view *dashboard.View, err error, op string) {
	switch {
	case errors.Is(err, dashboard.ErrLoadInFlight):
		h.respondErrorWithOp(w, http.StatusConflict, err.Error(), op)
	case err != nil, view == nil:
		h.respondErrorWithOp(w, http.StatusBadGateway, dashboard.LoadFailedNotice, op)
	default:
		h.writeJSON(w, http.StatusOK, view)
	}
}

func (h *handler) handleDashboardExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDashboardExport"

	d := dashboard.New(h.opts.Backend, 0, h.logger)
	d.SetFilters(dashboard.ParseFilters(r.URL.Query()))

	var buf bytes.Buffer
	n, err := d.Export(r.Context(), &buf)
	if err != nil {
		if errors.Is(err, dashboard.ErrNoExportData) {
			h.respondErrorWithOp(w, http.StatusNotFound, err.Error(), op)
			return
		}
		h.respondErrorWithOp(w, http.StatusBadGateway, err.Error(), op)
		return
	}

	h.logger.Debug("dashboard exported",
		zap.String("op", op),
		zap.Int("records", n),
	)
	h.writeFile(w, "text/csv", "dashboard_export.csv", buf.Bytes())
}

func (h *handler) handleInventory(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleInventory"

	inv, ok := h.loadInventory(w, r, op)
	if !ok {
		return
	}

	query := r.URL.Query()
	view := inv.View()
	var err error
	if click := query.Get("click"); click != "" {
		chart, label, found := strings.Cut(click, ":")
		if !found {
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("%v: %s", errInvalidSelection, click), op)
			return
		}
		view, err = inv.Click(chart, label)
	} else if legend := query.Get("legend"); legend != "" {
		chart, rawIndex, found := strings.Cut(legend, ":")
		index, convErr := strconv.Atoi(rawIndex)
		if !found || convErr != nil {
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("%v: %s", errInvalidSelection, legend), op)
			return
		}
		view, err = inv.ClickLegend(chart, index)
	}
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *handler) handleInventoryExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleInventoryExport"

	inv, ok := h.loadInventory(w, r, op)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if _, err := inv.Export(&buf); err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
		return
	}
	h.writeFile(w, xlsxContentType, export.UnitsFileName(h.opts.Now()), buf.Bytes())
}

// loadInventory loads the company in the URL and applies the facet
// selection carried by the query.
func (h *handler) loadInventory(w http.ResponseWriter, r *http.Request, op string) (*inventory.Inventory, bool) {
	companyID := chi.URLParam(r, "companyID")
	query := r.URL.Query()

	inv := inventory.New(h.opts.Backend, h.opts.Cache, h.logger)
	if _, err := inv.Load(r.Context(), companyID, query.Get("refresh") == "1"); err != nil {
		h.respondErrorWithOp(w, http.StatusBadGateway, err.Error(), op)
		return nil, false
	}

	var selection inventory.Selection
	for _, f := range inventory.AllFacets {
		values := append([]string(nil), query[string(f)+"[]"]...)
		values = append(values, query[string(f)]...)
		if len(values) > 0 {
			selection = selection.With(f, values)
		}
	}
	inv.SetSelection(selection)
	return inv, true
}

func (h *handler) session(w http.ResponseWriter, r *http.Request, op string) (*installment.Session, bool) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	session, ok := h.sessions[id]
	h.mu.Unlock()

	if !ok {
		h.respondErrorWithOp(w, http.StatusNotFound, errSessionNotFound.Error(), op)
		return nil, false
	}
	return session, true
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (h *handler) respondDecodeError(w http.ResponseWriter, err error, op string) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds limit of %d bytes", maxBytesErr.Limit), op)
		return
	}
	h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
}

// respondPlanError reports a failed edit or reconciliation together with the
// plan view, which stays valid after the failure.
func (h *handler) respondPlanError(w http.ResponseWriter, session *installment.Session, err error, op string) {
	status := planErrorStatus(err)
	h.logger.Error("plan request failed",
		zap.String("op", op),
		zap.String("session", session.ID()),
		zap.Int("status", status),
		zap.Error(err),
	)
	h.writeJSON(w, status, planResponse{ID: session.ID(), View: session.Plan().View(), Error: err.Error()})
}

func planErrorStatus(err error) int {
	switch {
	case errors.Is(err, installment.ErrTotalExceeds),
		errors.Is(err, installment.ErrInvalidIndex),
		errors.Is(err, installment.ErrInvalidTenor),
		errors.Is(err, installment.ErrUnknownFrequency),
		errors.Is(err, installment.ErrUnknownOffer),
		errors.Is(err, installment.ErrUnknownEdit),
		errors.Is(err, installment.ErrEmptySchedule),
		errors.Is(err, installment.ErrTenorRejected),
		errors.Is(err, installment.ErrInvalidPercentage),
		errors.Is(err, installment.ErrInvalidDate),
		errors.Is(err, pricing.ErrInvalidDiscount),
		errors.Is(err, pricing.ErrDiscountExceedsMax):
		return http.StatusBadRequest
	case errors.Is(err, installment.ErrInputLocked),
		errors.Is(err, installment.ErrReadOnly):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("view request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	writeJSON(h.logger, w, status, payload)
}

func (h *handler) writeFile(w http.ResponseWriter, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write file response",
			zap.String("op", "server.writeFile"),
			zap.Error(err),
		)
	}
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to write JSON response",
			zap.String("op", "server.writeJSON"),
			zap.Error(err),
		)
	}
}
