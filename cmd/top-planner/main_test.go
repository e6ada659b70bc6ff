package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/top-planner/internal/config"
	"github.com/iwvelando/top-planner/internal/installment"
	"github.com/iwvelando/top-planner/pkg/constants"
	"github.com/iwvelando/top-planner/pkg/testutil"
	"go.uber.org/zap"
)

const unitYAML = `code: A-101
basePrice: 1000000
maintenancePercent: 8
contractDate: "2029-01-01"
deliveryDate: "2032-01-01"
project:
  id: p-1
  staticNPV: 0.9
  interestRate: 0.2
  baseDP: 10
  baseTenor: 1
  maxTenor: 10
  paymentFrequency: Quarterly
  defaultScheme: flat
  maxDiscount: 0.15
  hasMaintenance: true
`

func newTestApp(t *testing.T, format string) (*app, *testutil.Backend, *bytes.Buffer) {
	t.Helper()

	backend := testutil.NewBackend(t)
	conf, err := config.LoadConfigurationFromReader(strings.NewReader("backend:\n  baseURL: " + backend.URL() + "\n"))
	if err != nil {
		t.Fatalf("failed to load configuration: %v", err)
	}
	conf.Plan.MaxStabilizationAttempts = 0
	conf.Plan.StabilizationDelay = 0
	conf.Export.Directory = t.TempDir()

	var out bytes.Buffer
	return &app{
		conf:         conf,
		logger:       zap.NewNop(),
		outputFormat: format,
		stdout:       &out,
		now: func() time.Time {
			return time.Date(2029, 1, 1, 12, 0, 0, 0, time.UTC)
		},
	}, backend, &out
}

func writeUnit(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unit.yaml")
	if err := os.WriteFile(path, []byte(unitYAML), 0600); err != nil {
		t.Fatalf("failed to write unit: %v", err)
	}
	return path
}

func TestInitializeLogger(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LoggingConfig
		override string
		wantErr  bool
	}{
		{name: "defaults", cfg: config.LoggingConfig{}},
		{name: "console debug", cfg: config.LoggingConfig{Level: "debug", Format: "console"}},
		{name: "override wins", cfg: config.LoggingConfig{Level: "bogus"}, override: "warn"},
		{name: "invalid level", cfg: config.LoggingConfig{Level: "loud"}, wantErr: true},
		{name: "invalid format", cfg: config.LoggingConfig{Format: "xml"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := initializeLogger(tc.cfg, tc.override)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("initializeLogger() error = %v", err)
			}
			_ = logger.Sync()
		})
	}
}

func TestInitializeLoggerOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "top-planner.log")
	logger, err := initializeLogger(config.LoggingConfig{OutputFile: path}, "")
	if err != nil {
		t.Fatalf("initializeLogger() error = %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
}

func TestParseInstallment(t *testing.T) {
	edit, err := parseInstallment("2=12.5")
	if err != nil {
		t.Fatalf("parseInstallment() error = %v", err)
	}
	if edit.Kind != installment.EditInstallment || edit.Index != 2 || *edit.Value != 12.5 {
		t.Fatalf("unexpected edit %+v", edit)
	}

	for _, bad := range []string{"2", "x=5", "1=abc", "1=150"} {
		if _, err := parseInstallment(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestPlanEditsOrder(t *testing.T) {
	row, _ := parseInstallment("1=20")
	set := map[string]bool{"discount": true, "tenor": true, "dp": true, "frequency": true}

	edits := planEdits(set, 2, "Monthly", "", 10, 0, 5, []installment.Edit{row})

	want := []installment.EditKind{
		installment.EditTenor,
		installment.EditFrequency,
		installment.EditDownPayment,
		installment.EditInstallment,
		installment.EditDiscount,
	}
	if len(edits) != len(want) {
		t.Fatalf("expected %d edits, got %d", len(want), len(edits))
	}
	for i, kind := range want {
		if edits[i].Kind != kind {
			t.Errorf("edit %d: expected %s, got %s", i, kind, edits[i].Kind)
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	a, _, _ := newTestApp(t, constants.OutputFormatPretty)

	for _, args := range [][]string{nil, {"forecast"}} {
		if err := a.run(context.Background(), args); !errors.Is(err, errUnknownCommand) {
			t.Errorf("run(%v): expected unknown command, got %v", args, err)
		}
	}
}

func TestRunPlan(t *testing.T) {
	a, backend, out := newTestApp(t, constants.OutputFormatPretty)

	err := a.run(context.Background(), []string{"plan", "-unit", writeUnit(t), "-set", "1=20", "-export", "xlsx"})
	if err != nil {
		t.Fatalf("run plan error = %v", err)
	}

	if !strings.Contains(out.String(), "Installment plan for unit A-101") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if got := len(backend.Submissions()); got != 2 {
		t.Fatalf("expected initial and edit submissions, got %d", got)
	}
	if last := backend.LastSubmission(); last.Fields["installment_data"] != "[0.2]" {
		t.Fatalf("unexpected installment data %q", last.Fields["installment_data"])
	}
	if _, err := os.Stat(filepath.Join(a.conf.Export.Directory, "Installment_Report_A-101.xlsx")); err != nil {
		t.Fatalf("expected exported report: %v", err)
	}
}

func TestRunPlanCSV(t *testing.T) {
	a, _, out := newTestApp(t, constants.OutputFormatCSV)

	if err := a.run(context.Background(), []string{"plan", "-unit", writeUnit(t)}); err != nil {
		t.Fatalf("run plan error = %v", err)
	}
	if !strings.HasPrefix(out.String(), `"label","date","installment","amount","cumulative"`) {
		t.Fatalf("unexpected csv output %q", out.String())
	}
}

func TestRunPlanRequiresUnit(t *testing.T) {
	a, _, _ := newTestApp(t, constants.OutputFormatPretty)

	if err := a.run(context.Background(), []string{"plan"}); err == nil {
		t.Fatal("expected an error without -unit")
	}
	if err := a.run(context.Background(), []string{"plan", "-unit", writeUnit(t), "-export", "doc"}); err == nil {
		t.Fatal("expected an error for an unknown export format")
	}
}

func TestRunDashboard(t *testing.T) {
	a, backend, out := newTestApp(t, constants.OutputFormatPretty)

	err := a.run(context.Background(), []string{"dashboard", "-developer", "Acme", "-max-bua", "250", "-export", "market.csv"})
	if err != nil {
		t.Fatalf("run dashboard error = %v", err)
	}
	query := backend.LastQuery(constants.KPIsPath)
	if query.Get("max_price") != "10000000" || query.Get("min_bua") != "0" || query.Get("max_bua") != "250" {
		t.Fatalf("expected slider bounds in the query, got %v", query)
	}
	if !strings.Contains(out.String(), "Market dashboard") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if backend.Calls(constants.ExportPath) != 1 {
		t.Fatal("expected one export request")
	}

	data, err := os.ReadFile(filepath.Join(a.conf.Export.Directory, "market.csv"))
	if err != nil {
		t.Fatalf("expected exported csv: %v", err)
	}
	if !strings.HasPrefix(string(data), "unit_code,developer,price") {
		t.Fatalf("unexpected export %q", string(data))
	}
}

func TestRunInventory(t *testing.T) {
	a, backend, out := newTestApp(t, constants.OutputFormatCSV)
	backend.SetUnits("7", testutil.SampleUnits)

	err := a.run(context.Background(), []string{"inventory", "-company", "7", "-project", "Palm", "-export", "units.xlsx"})
	if err != nil {
		t.Fatalf("run inventory error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 Palm rows, got %d lines", len(lines))
	}
	if _, err := os.Stat(filepath.Join(a.conf.Export.Directory, "units.xlsx")); err != nil {
		t.Fatalf("expected exported workbook: %v", err)
	}

	if err := a.run(context.Background(), []string{"inventory"}); err == nil {
		t.Fatal("expected an error without -company")
	}
}

func TestRunServeStopsOnCancel(t *testing.T) {
	a, _, _ := newTestApp(t, constants.OutputFormatPretty)

	path := filepath.Join(t.TempDir(), "server-config.yaml")
	if err := os.WriteFile(path, []byte("address: 127.0.0.1:0\nshutdownTimeout: 1s\n"), 0600); err != nil {
		t.Fatalf("failed to write server config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.run(ctx, []string{"serve", "-server-config", path})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}
