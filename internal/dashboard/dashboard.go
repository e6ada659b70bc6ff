// Package dashboard renders the market dashboard: KPI cards and chart
// configurations loaded from the backend for a filter set.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iwvelando/top-planner/internal/debounce"
	"github.com/iwvelando/top-planner/internal/export"
	"github.com/iwvelando/top-planner/internal/topapi"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LoadFailedNotice is the message shown when a load fails.
const LoadFailedNotice = "Failed to load dashboard data"

var (
	// ErrLoadInFlight is returned when a load is requested while another runs.
	ErrLoadInFlight = errors.New("dashboard load already in progress")

	// ErrLoadFailed wraps any failure to fetch dashboard data.
	ErrLoadFailed = errors.New("failed to load dashboard data")

	// ErrNoExportData is returned when an export matches no records.
	ErrNoExportData = errors.New("no records to export")
)

// Fetcher loads dashboard data from the backend.
type Fetcher interface {
	FetchKPIs(ctx context.Context, query url.Values) (*topapi.KPIs, error)
	FetchCharts(ctx context.Context, query url.Values) (*topapi.Charts, error)
	FetchExport(ctx context.Context, query url.Values) ([]topapi.ExportRecord, error)
}

// Dashboard holds the filter state and the last rendered view. It is safe for
// concurrent use; at most one load runs at a time.
type Dashboard struct {
	client  Fetcher
	logger  *zap.Logger
	loading atomic.Bool
	filters *debounce.Debouncer

	mu      sync.Mutex
	current Filters
	view    *View
	loadErr error
}

// New creates a dashboard. filterDebounce is the quiet period before queued
// filter changes are applied.
func New(client Fetcher, filterDebounce time.Duration, logger *zap.Logger) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{
		client:  client,
		logger:  logger,
		filters: debounce.New(filterDebounce),
	}
}

// Filters returns the current filter state.
func (d *Dashboard) Filters() Filters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// View returns the last rendered view, nil before the first load.
func (d *Dashboard) View() *View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

// SetFilters replaces the filters without loading.
func (d *Dashboard) SetFilters(filters Filters) {
	d.mu.Lock()
	d.current = filters
	d.mu.Unlock()
}

// Apply replaces the filters and loads the dashboard.
func (d *Dashboard) Apply(ctx context.Context, filters Filters) (*View, error) {
	d.SetFilters(filters)
	return d.Load(ctx)
}

// Current returns the last rendered view and the error of the last load,
// nil when it succeeded.
func (d *Dashboard) Current() (*View, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view, d.loadErr
}

// QueueApply applies filters once filter changes have been quiet for the
// debounce delay. done receives the outcome; it may be nil.
func (d *Dashboard) QueueApply(ctx context.Context, filters Filters, done func(*View, error)) {
	d.filters.Trigger(func() {
		view, err := d.Apply(ctx, filters)
		if err != nil && !errors.Is(err, ErrLoadInFlight) {
			d.logger.Warn("queued filter apply failed",
				zap.String("op", "dashboard.QueueApply"),
				zap.Error(err),
			)
		}
		if done != nil {
			done(view, err)
		}
	})
}

// FlushFilters applies queued filters now. It reports whether any were queued.
func (d *Dashboard) FlushFilters() bool {
	return d.filters.Flush()
}

// CancelFilters drops queued filters.
func (d *Dashboard) CancelFilters() {
	d.filters.Cancel()
}

// Reset clears every filter and reloads.
func (d *Dashboard) Reset(ctx context.Context) (*View, error) {
	d.filters.Cancel()
	return d.Apply(ctx, Filters{})
}

// Load fetches KPIs and charts in parallel for the current filters and
// renders them. A load requested while another runs returns ErrLoadInFlight.
func (d *Dashboard) Load(ctx context.Context) (*View, error) {
	if !d.loading.CompareAndSwap(false, true) {
		d.logger.Debug("skipping load while another is in flight",
			zap.String("op", "dashboard.Load"),
		)
		return nil, ErrLoadInFlight
	}
	defer d.loading.Store(false)

	filters := d.Filters()
	query := filters.Values()

	var kpis *topapi.KPIs
	var charts *topapi.Charts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		kpis, err = d.client.FetchKPIs(gctx, query)
		return err
	})
	g.Go(func() error {
		var err error
		charts, err = d.client.FetchCharts(gctx, query)
		return err
	})
	if err := g.Wait(); err != nil {
		d.logger.Error("error loading dashboard data",
			zap.String("op", "dashboard.Load"),
			zap.String("query", query.Encode()),
			zap.Error(err),
		)
		err = fmt.Errorf("%w: %w", ErrLoadFailed, err)
		d.mu.Lock()
		d.loadErr = err
		d.mu.Unlock()
		return nil, err
	}

	view := Render(filters, kpis, charts)
	d.mu.Lock()
	d.view = view
	d.loadErr = nil
	d.mu.Unlock()

	d.logger.Debug("dashboard loaded",
		zap.String("op", "dashboard.Load"),
		zap.Int("charts", len(view.Charts)),
	)
	return view, nil
}

// Export writes the records matching the current filters as CSV and returns
// how many were written.
func (d *Dashboard) Export(ctx context.Context, w io.Writer) (int, error) {
	query := d.Filters().Values()
	records, err := d.client.FetchExport(ctx, query)
	if err != nil {
		d.logger.Error("export failed",
			zap.String("op", "dashboard.Export"),
			zap.Error(err),
		)
		return 0, fmt.Errorf("export failed: %w", err)
	}
	if len(records) == 0 {
		return 0, ErrNoExportData
	}
	if err := export.RecordsCSV(w, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
