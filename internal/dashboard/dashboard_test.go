package dashboard

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/iwvelando/top-planner/internal/topapi"
	"github.com/iwvelando/top-planner/pkg/constants"
	"github.com/iwvelando/top-planner/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchKPIs(ctx context.Context, query url.Values) (*topapi.KPIs, error) {
	args := m.Called(ctx, query)
	kpis, _ := args.Get(0).(*topapi.KPIs)
	return kpis, args.Error(1)
}

func (m *mockFetcher) FetchCharts(ctx context.Context, query url.Values) (*topapi.Charts, error) {
	args := m.Called(ctx, query)
	charts, _ := args.Get(0).(*topapi.Charts)
	return charts, args.Error(1)
}

func (m *mockFetcher) FetchExport(ctx context.Context, query url.Values) ([]topapi.ExportRecord, error) {
	args := m.Called(ctx, query)
	records, _ := args.Get(0).([]topapi.ExportRecord)
	return records, args.Error(1)
}

func newBackendDashboard(t *testing.T) (*Dashboard, *testutil.Backend) {
	t.Helper()
	backend := testutil.NewBackend(t)
	client, err := topapi.NewClient(topapi.Options{BaseURL: backend.URL()}, nil)
	require.NoError(t, err)
	return New(client, 10*time.Millisecond, nil), backend
}

func TestDashboardLoad(t *testing.T) {
	d, backend := newBackendDashboard(t)
	assert.Nil(t, d.View())

	view, err := d.Apply(context.Background(), Filters{Developers: []string{"Acme"}})
	require.NoError(t, err)

	assert.Equal(t, 1, backend.Calls(constants.KPIsPath))
	assert.Equal(t, 1, backend.Calls(constants.ChartsPath))
	require.Len(t, view.KPIs, 8)
	assert.Equal(t, "1K", view.KPIs[0].Value)
	assert.Equal(t, "14", view.KPIs[1].Value)
	assert.Equal(t, "3.5M EGP", view.KPIs[2].Value)
	assert.Equal(t, "22K EGP", view.KPIs[3].Value)
	assert.Equal(t, "160.5 m²", view.KPIs[4].Value)
	assert.Equal(t, "10%", view.KPIs[5].Value)
	assert.Len(t, view.Charts, 6)
	assert.Equal(t, []string{"Acme"}, d.Filters().Developers)
	assert.Same(t, view, d.View())
}

func TestDashboardLoadFailureWrapsError(t *testing.T) {
	fetcher := &mockFetcher{}
	d := New(fetcher, time.Millisecond, nil)

	boom := errors.New("boom")
	fetcher.On("FetchKPIs", mock.Anything, mock.Anything).Return(nil, boom)
	fetcher.On("FetchCharts", mock.Anything, mock.Anything).Return(&topapi.Charts{}, nil).Maybe()

	_, err := d.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, d.View())
}

func TestDashboardRejectsConcurrentLoad(t *testing.T) {
	fetcher := &mockFetcher{}
	d := New(fetcher, time.Millisecond, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	fetcher.On("FetchKPIs", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&topapi.KPIs{}, nil).
		Once()
	fetcher.On("FetchCharts", mock.Anything, mock.Anything).Return(&topapi.Charts{}, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := d.Load(context.Background())
		done <- err
	}()

	<-started
	_, err := d.Load(context.Background())
	assert.ErrorIs(t, err, ErrLoadInFlight)

	close(release)
	require.NoError(t, <-done)
	fetcher.AssertNumberOfCalls(t, "FetchKPIs", 1)
}

func TestDashboardMissingKPIsRenderZero(t *testing.T) {
	fetcher := &mockFetcher{}
	d := New(fetcher, time.Millisecond, nil)
	fetcher.On("FetchKPIs", mock.Anything, mock.Anything).Return(&topapi.KPIs{}, nil)
	fetcher.On("FetchCharts", mock.Anything, mock.Anything).Return(&topapi.Charts{}, nil)

	view, err := d.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0", view.KPIs[0].Value)
	assert.Equal(t, "0 EGP", view.KPIs[2].Value)
	assert.Equal(t, "0 m²", view.KPIs[4].Value)
}

func TestDashboardQueueApplyDebounces(t *testing.T) {
	d, backend := newBackendDashboard(t)

	done := make(chan *View, 1)
	for _, dev := range []string{"Acme", "Nile", "Palm"} {
		d.QueueApply(context.Background(), Filters{Developers: []string{dev}}, func(v *View, err error) {
			assert.NoError(t, err)
			done <- v
		})
	}

	select {
	case view := <-done:
		assert.Equal(t, []string{"Palm"}, view.Filters.Developers)
	case <-time.After(2 * time.Second):
		t.Fatal("queued filters were not applied")
	}
	assert.Equal(t, 1, backend.Calls(constants.KPIsPath))
}

func TestDashboardReset(t *testing.T) {
	fetcher := &mockFetcher{}
	d := New(fetcher, time.Hour, nil)
	fetcher.On("FetchKPIs", mock.Anything, url.Values{}).Return(&topapi.KPIs{}, nil).Once()
	fetcher.On("FetchCharts", mock.Anything, url.Values{}).Return(&topapi.Charts{}, nil).Once()

	d.QueueApply(context.Background(), Filters{Locations: []string{"New Cairo"}}, nil)
	view, err := d.Reset(context.Background())
	require.NoError(t, err)

	assert.True(t, view.Filters.IsZero())
	assert.True(t, d.Filters().IsZero())
	fetcher.AssertExpectations(t)
}

func TestDashboardExport(t *testing.T) {
	d, _ := newBackendDashboard(t)

	var buf bytes.Buffer
	n, err := d.Export(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), "unit_code,developer,price\n")

	fetcher := &mockFetcher{}
	empty := New(fetcher, time.Millisecond, nil)
	fetcher.On("FetchExport", mock.Anything, mock.Anything).Return([]topapi.ExportRecord{}, nil)
	_, err = empty.Export(context.Background(), &buf)
	assert.ErrorIs(t, err, ErrNoExportData)
}

func TestFiltersValuesRoundTrip(t *testing.T) {
	minPrice := 500000.0
	filters := Filters{
		Developers: []string{"Acme", "Nile"},
		UnitTypes:  []string{"Villa"},
		MinPrice:   &minPrice,
	}

	values := filters.Values()
	assert.Equal(t, []string{"Acme", "Nile"}, values["developers[]"])
	assert.Equal(t, "500000", values.Get("min_price"))
	assert.NotContains(t, values, "max_price")
	assert.NotContains(t, values, "locations[]")

	parsed := ParseFilters(values)
	assert.Equal(t, filters.Developers, parsed.Developers)
	assert.Equal(t, filters.UnitTypes, parsed.UnitTypes)
	require.NotNil(t, parsed.MinPrice)
	assert.Equal(t, minPrice, *parsed.MinPrice)
	assert.Nil(t, parsed.MaxBUA)

	assert.Empty(t, Filters{}.Values())
	assert.True(t, ParseFilters(url.Values{"min_bua": {"abc"}}).IsZero())
}

func TestDefaultFilters(t *testing.T) {
	values := DefaultFilters().Values()
	assert.Equal(t, "0", values.Get("min_price"))
	assert.Equal(t, "10000000", values.Get("max_price"))
	assert.Equal(t, "1000", values.Get("max_bua"))
	assert.False(t, DefaultFilters().IsZero())
}
