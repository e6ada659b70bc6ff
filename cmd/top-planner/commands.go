package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/top-planner/internal/cache"
	"github.com/iwvelando/top-planner/internal/config"
	"github.com/iwvelando/top-planner/internal/dashboard"
	"github.com/iwvelando/top-planner/internal/export"
	"github.com/iwvelando/top-planner/internal/installment"
	"github.com/iwvelando/top-planner/internal/inventory"
	"github.com/iwvelando/top-planner/internal/server"
	"github.com/iwvelando/top-planner/internal/topapi"
	"github.com/iwvelando/top-planner/pkg/constants"
	"github.com/iwvelando/top-planner/pkg/output"
	"github.com/iwvelando/top-planner/pkg/validation"
	"go.uber.org/zap"
)

var errUnknownCommand = errors.New("unknown command")

type app struct {
	conf         *config.Configuration
	logger       *zap.Logger
	logLevel     string
	outputFormat string
	stdout       io.Writer
	now          func() time.Time
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(value string) error {
	*l = append(*l, value)
	return nil
}

// installmentFlag collects repeatable -set index=percentage flags.
type installmentFlag []installment.Edit

func (f *installmentFlag) String() string {
	parts := make([]string, len(*f))
	for i, e := range *f {
		parts[i] = fmt.Sprintf("%d=%g", e.Index, *e.Value)
	}
	return strings.Join(parts, ",")
}

func (f *installmentFlag) Set(value string) error {
	edit, err := parseInstallment(value)
	if err != nil {
		return err
	}
	*f = append(*f, edit)
	return nil
}

func parseInstallment(value string) (installment.Edit, error) {
	rawIndex, rawPct, ok := strings.Cut(value, "=")
	if !ok {
		return installment.Edit{}, fmt.Errorf("expected index=percentage, got %q", value)
	}
	index, err := strconv.Atoi(strings.TrimSpace(rawIndex))
	if err != nil {
		return installment.Edit{}, fmt.Errorf("invalid installment index %q: %w", rawIndex, err)
	}
	pct, err := strconv.ParseFloat(strings.TrimSpace(rawPct), 64)
	if err != nil {
		return installment.Edit{}, fmt.Errorf("invalid installment percentage %q: %w", rawPct, err)
	}
	if err := validation.ValidatePercentage(fmt.Sprintf("installment %d", index), pct); err != nil {
		return installment.Edit{}, err
	}
	return installment.Edit{Kind: installment.EditInstallment, Index: index, Value: &pct}, nil
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: expected one of plan, dashboard, inventory, serve", errUnknownCommand)
	}
	if a.now == nil {
		a.now = time.Now
	}

	switch args[0] {
	case "plan":
		return a.runPlan(ctx, args[1:])
	case "dashboard":
		return a.runDashboard(ctx, args[1:])
	case "inventory":
		return a.runInventory(ctx, args[1:])
	case "serve":
		return a.runServe(ctx, args[1:])
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, args[0])
	}
}

func (a *app) client() (*topapi.Client, error) {
	return topapi.NewClient(topapi.Options{
		BaseURL:       a.conf.Backend.BaseURL,
		SubmitPath:    a.conf.Backend.SubmitPath,
		CSRFToken:     a.conf.Backend.CSRFToken,
		SessionCookie: a.conf.Backend.SessionCookie,
		Timeout:       a.conf.Backend.Timeout,
	}, a.logger)
}

func (a *app) planOptions() installment.Options {
	return installment.Options{
		Rate:     a.conf.Currency.Rate,
		Currency: a.conf.Currency.Code,
		CanEdit:  a.conf.Plan.UserCanEdit(),
		Periods: installment.Periods{
			BetweenDPs:              a.conf.Plan.PeriodBetweenDPs,
			BetweenDPAndInstallment: a.conf.Plan.PeriodBetweenDPAndInstallment,
		},
		Now: a.now,
	}
}

func (a *app) sessionOptions() installment.SessionOptions {
	return installment.SessionOptions{
		MaxStabilizationAttempts: a.conf.Plan.MaxStabilizationAttempts,
		StabilizationDelay:       a.conf.Plan.StabilizationDelay,
		DiscountDebounce:         a.conf.Dashboard.DiscountDebounce,
	}
}

func (a *app) exportMetadata() export.Metadata {
	return export.Metadata{
		ExportedBy:  a.conf.Export.ExportedBy,
		CompanyName: a.conf.Export.CompanyName,
	}
}

// exportPath places bare file names in the configured export directory.
func (a *app) exportPath(name string) string {
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(a.conf.Export.Directory, name)
}

func writeExport(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory %s: %w", dir, err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return write(file)
}

// planEdits orders the requested edits the way a user would enter them:
// schedule shape first, then down payments, installments and the discount.
func planEdits(set map[string]bool, tenor float64, frequency, scheme string, dp, dp2, discount float64, rows []installment.Edit) []installment.Edit {
	var edits []installment.Edit
	if set["tenor"] {
		edits = append(edits, installment.Edit{Kind: installment.EditTenor, Value: &tenor})
	}
	if set["frequency"] {
		edits = append(edits, installment.Edit{Kind: installment.EditFrequency, Text: frequency})
	}
	if set["scheme"] {
		edits = append(edits, installment.Edit{Kind: installment.EditScheme, Text: scheme})
	}
	if set["dp"] {
		edits = append(edits, installment.Edit{Kind: installment.EditDownPayment, Index: 1, Value: &dp})
	}
	if set["dp2"] {
		edits = append(edits, installment.Edit{Kind: installment.EditDownPayment, Index: 2, Value: &dp2})
	}
	edits = append(edits, rows...)
	if set["discount"] {
		edits = append(edits, installment.Edit{Kind: installment.EditDiscount, Value: &discount})
	}
	return edits
}

func (a *app) runPlan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	unitPath := fs.String("unit", "", "path to the unit definition (YAML)")
	tenor := fs.Float64("tenor", 0, "tenor in years; 0 buys in cash")
	frequency := fs.String("frequency", "", "payment frequency: monthly, quarterly, semi-annually, annually")
	scheme := fs.String("scheme", "", "payment scheme")
	dp := fs.Float64("dp", 0, "first down payment percentage")
	dp2 := fs.Float64("dp2", 0, "second down payment percentage")
	discount := fs.Float64("discount", 0, "manual discount percentage")
	exportFormat := fs.String("export", "", "also export the plan: csv, pdf, xlsx")
	var rows installmentFlag
	fs.Var(&rows, "set", "installment percentage as index=pct; repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *unitPath == "" {
		return errors.New("plan: -unit is required")
	}
	if *exportFormat != "" {
		if err := validation.ValidateExportFormat(*exportFormat); err != nil {
			return err
		}
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	unit, err := installment.LoadUnit(*unitPath)
	if err != nil {
		return err
	}
	client, err := a.client()
	if err != nil {
		return err
	}
	plan, err := installment.NewPlan(unit, a.planOptions(), a.logger)
	if err != nil {
		return err
	}
	session := installment.NewSession(plan, client, a.sessionOptions(), a.logger)

	if plan.State() != installment.StateEmpty {
		if err := session.Stabilize(ctx); err != nil {
			return fmt.Errorf("initial reconciliation failed: %w", err)
		}
	}
	for _, edit := range planEdits(set, *tenor, *frequency, *scheme, *dp, *dp2, *discount, rows) {
		if _, err := session.Apply(ctx, edit); err != nil {
			if errors.Is(err, installment.ErrTotalExceeds) {
				a.logger.Warn("plan not submitted",
					zap.String("op", "main.runPlan"),
					zap.String("edit", string(edit.Kind)),
					zap.Error(err),
				)
				continue
			}
			return fmt.Errorf("failed to apply %s edit: %w", edit.Kind, err)
		}
	}

	view := plan.View()
	switch a.outputFormat {
	case constants.OutputFormatCSV:
		err = output.CsvPlan(a.stdout, view)
	default:
		err = output.PrettyPlan(a.stdout, view)
	}
	if err != nil {
		return err
	}

	if *exportFormat == "" {
		return nil
	}
	meta := a.exportMetadata()
	meta.Time = a.now()
	report := export.NewReport(view, meta)
	path := a.exportPath(report.FileName(*exportFormat))
	err = writeExport(path, func(w io.Writer) error {
		switch *exportFormat {
		case constants.ExportFormatPDF:
			return export.ReportPDF(w, report)
		case constants.ExportFormatXLSX:
			return export.ReportXLSX(w, report)
		default:
			return export.ReportCSV(w, report)
		}
	})
	if err != nil {
		return err
	}
	a.logger.Info("plan exported",
		zap.String("op", "main.runPlan"),
		zap.String("path", path),
	)
	return nil
}

func (a *app) runDashboard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	var developers, locations, assetTypes, unitTypes listFlag
	fs.Var(&developers, "developer", "developer filter; repeatable")
	fs.Var(&locations, "location", "location filter; repeatable")
	fs.Var(&assetTypes, "asset-type", "asset type filter; repeatable")
	fs.Var(&unitTypes, "unit-type", "unit type filter; repeatable")
	defaults := dashboard.DefaultFilters()
	minPrice := fs.Float64("min-price", *defaults.MinPrice, "minimum unit price")
	maxPrice := fs.Float64("max-price", *defaults.MaxPrice, "maximum unit price")
	minBUA := fs.Float64("min-bua", *defaults.MinBUA, "minimum built-up area")
	maxBUA := fs.Float64("max-bua", *defaults.MaxBUA, "maximum built-up area")
	exportFile := fs.String("export", "", "also export matching records as CSV to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	d := dashboard.New(client, a.conf.Dashboard.FilterDebounce, a.logger)
	view, err := d.Apply(ctx, dashboard.Filters{
		Developers: developers,
		Locations:  locations,
		AssetTypes: assetTypes,
		UnitTypes:  unitTypes,
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
		MinBUA:     minBUA,
		MaxBUA:     maxBUA,
	})
	if err != nil {
		return err
	}

	switch a.outputFormat {
	case constants.OutputFormatCSV:
		err = output.CsvDashboard(a.stdout, view)
	default:
		err = output.PrettyDashboard(a.stdout, view)
	}
	if err != nil {
		return err
	}

	if *exportFile == "" {
		return nil
	}
	path := a.exportPath(*exportFile)
	var records int
	err = writeExport(path, func(w io.Writer) error {
		var exportErr error
		records, exportErr = d.Export(ctx, w)
		return exportErr
	})
	if err != nil {
		return err
	}
	a.logger.Info("dashboard exported",
		zap.String("op", "main.runDashboard"),
		zap.String("path", path),
		zap.Int("records", records),
	)
	return nil
}

func (a *app) runInventory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("inventory", flag.ContinueOnError)
	company := fs.String("company", "", "company id")
	refresh := fs.Bool("refresh", false, "bypass the cached unit list")
	var projects, unitTypes, statuses listFlag
	fs.Var(&projects, "project", "project filter; repeatable")
	fs.Var(&unitTypes, "unit-type", "unit type filter; repeatable")
	fs.Var(&statuses, "status", "status filter; repeatable")
	exportFile := fs.String("export", "", "also export the filtered units to this Excel file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *company == "" {
		return errors.New("inventory: -company is required")
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	c, err := cache.New(ctx, a.conf.Cache.RedisAddr, a.conf.Cache.TTL, a.logger)
	if err != nil {
		return err
	}
	if closer, ok := c.(io.Closer); ok {
		defer func() {
			_ = closer.Close()
		}()
	}

	inv := inventory.New(client, c, a.logger)
	view, err := inv.Load(ctx, *company, *refresh)
	if err != nil {
		return err
	}
	facets := []struct {
		facet  inventory.Facet
		values []string
	}{
		{inventory.FacetProject, projects},
		{inventory.FacetUnitType, unitTypes},
		{inventory.FacetStatus, statuses},
	}
	for _, f := range facets {
		if len(f.values) > 0 {
			view = inv.Select(f.facet, f.values)
		}
	}

	switch a.outputFormat {
	case constants.OutputFormatCSV:
		err = output.CsvInventory(a.stdout, view)
	default:
		err = output.PrettyInventory(a.stdout, view)
	}
	if err != nil {
		return err
	}

	if *exportFile == "" {
		return nil
	}
	path := a.exportPath(*exportFile)
	var units int
	err = writeExport(path, func(w io.Writer) error {
		var exportErr error
		units, exportErr = inv.Export(w)
		return exportErr
	})
	if err != nil {
		return err
	}
	a.logger.Info("inventory exported",
		zap.String("op", "main.runInventory"),
		zap.String("path", path),
		zap.Int("units", units),
	)
	return nil
}

func (a *app) runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	serverConfig := fs.String("server-config", constants.DefaultServerConfigFile, "path to the server configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := server.LoadConfig(*serverConfig)
	if err != nil {
		return err
	}

	logger := a.logger
	if cfg.Logging != (config.LoggingConfig{}) {
		logger, err = initializeLogger(cfg.Logging, a.logLevel)
		if err != nil {
			return err
		}
		defer func() {
			_ = logger.Sync()
		}()
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	c, err := cache.New(ctx, a.conf.Cache.RedisAddr, a.conf.Cache.TTL, logger)
	if err != nil {
		return err
	}
	if closer, ok := c.(io.Closer); ok {
		defer func() {
			_ = closer.Close()
		}()
	}

	handler := server.NewHandler(server.Options{
		Backend:        client,
		Cache:          c,
		Plan:           a.planOptions(),
		Session:        a.sessionOptions(),
		FilterDebounce: a.conf.Dashboard.FilterDebounce,
		Export:         a.exportMetadata(),
		MaxBodySize:    cfg.BodySizeBytes(),
		MaxSessions:    cfg.MaxSessions,
		Version:        version,
		Now:            a.now,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("view API listening",
			zap.String("op", "main.runServe"),
			zap.String("address", cfg.Address),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}
	logger.Info("view API stopped",
		zap.String("op", "main.runServe"),
	)
	return nil
}
