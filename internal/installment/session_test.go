package installment

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/iwvelando/top-planner/internal/topapi"
	"github.com/iwvelando/top-planner/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) SubmitInstallments(ctx context.Context, fields *orderedmap.OrderedMap[string, string]) (*topapi.CalculationResponse, error) {
	args := m.Called(ctx, fields)
	resp, _ := args.Get(0).(*topapi.CalculationResponse)
	return resp, args.Error(1)
}

func testSessionOptions() SessionOptions {
	return SessionOptions{
		MaxStabilizationAttempts: 3,
		StabilizationDelay:       time.Millisecond,
		DiscountDebounce:         10 * time.Millisecond,
	}
}

func newBackendSession(t *testing.T) (*Session, *testutil.Backend) {
	t.Helper()
	backend := testutil.NewBackend(t)
	client, err := topapi.NewClient(topapi.Options{BaseURL: backend.URL(), CSRFToken: "token"}, nil)
	require.NoError(t, err)
	plan := newTestPlan(t, sampleUnit(), sampleOptions())
	return NewSession(plan, client, testSessionOptions(), nil), backend
}

func TestSessionInstallmentEditReconciles(t *testing.T) {
	session, backend := newBackendSession(t)
	assert.NotEmpty(t, session.ID())

	view, err := session.Apply(context.Background(), Edit{Kind: EditInstallment, Index: 1, Value: testutil.Float64Ptr(20)})
	require.NoError(t, err)

	assert.Len(t, backend.Submissions(), 1)
	assert.Equal(t, StateReconciled.String(), view.State)
	assert.Equal(t, "25.0%", view.Rows[0].CalculatedDisplay)

	last := backend.LastSubmission()
	require.NotNil(t, last)
	assert.Equal(t, "[0.2]", last.Fields["installment_data"])
	assert.Equal(t, "[1]", last.Fields["indixes"])
	assert.Equal(t, "token", last.Headers.Get("X-CSRFToken"))
}

func TestSessionStabilizationSubmissionCount(t *testing.T) {
	session, backend := newBackendSession(t)

	view, err := session.Apply(context.Background(), Edit{Kind: EditScheme, Text: "step-up"})
	require.NoError(t, err)

	assert.Len(t, backend.Submissions(), 1+3)
	assert.Equal(t, StateReconciled.String(), view.State)
	for _, sub := range backend.Submissions() {
		assert.Equal(t, "step-up", sub.Fields["project_config_default_scheme"])
	}
}

func TestSessionNeverSubmitsOverHundred(t *testing.T) {
	session, backend := newBackendSession(t)
	ctx := context.Background()

	_, err := session.Apply(ctx, Edit{Kind: EditDownPayment, Index: 1, Value: testutil.Float64Ptr(10)})
	require.NoError(t, err)
	_, err = session.Apply(ctx, Edit{Kind: EditInstallment, Index: 1, Value: testutil.Float64Ptr(50)})
	require.NoError(t, err)
	require.Len(t, backend.Submissions(), 2)

	view, err := session.Apply(ctx, Edit{Kind: EditInstallment, Index: 2, Value: testutil.Float64Ptr(50)})
	assert.ErrorIs(t, err, ErrTotalExceeds)
	assert.True(t, view.TotalExceeded)
	assert.Len(t, backend.Submissions(), 2)
}

func TestSessionBackendFailure(t *testing.T) {
	session, backend := newBackendSession(t)
	backend.SetCalculation(func(map[string]string) (int, string) {
		return http.StatusInternalServerError, `{"detail": "boom"}`
	})

	_, err := session.Apply(context.Background(), Edit{Kind: EditScheme, Text: "flat"})
	require.Error(t, err)

	var statusErr *topapi.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	// A failing stabilization run stops at the first failure.
	assert.Len(t, backend.Submissions(), 1)
	assert.Equal(t, StateGenerated, session.Plan().State())
}

func TestSessionDropsResponseSupersededInFlight(t *testing.T) {
	plan := newTestPlan(t, sampleUnit(), sampleOptions())
	submitter := &mockSubmitter{}
	session := NewSession(plan, submitter, testSessionOptions(), nil)

	submitter.On("SubmitInstallments", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			// A newer submission is issued while this one is in flight.
			_, err := plan.Submission()
			require.NoError(t, err)
		}).
		Return(sampleResponse(t), nil).
		Once()

	err := session.Reconcile(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, StateGenerated, plan.State())
	submitter.AssertExpectations(t)
}

func TestSessionOverlappingEditsSucceed(t *testing.T) {
	plan := newTestPlan(t, sampleUnit(), sampleOptions())
	submitter := &mockSubmitter{}
	session := NewSession(plan, submitter, testSessionOptions(), nil)

	var secondView View
	var secondErr error
	submitter.On("SubmitInstallments", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			// The second edit completes while the first is still in flight.
			secondView, secondErr = session.Apply(context.Background(),
				Edit{Kind: EditInstallment, Index: 2, Value: testutil.Float64Ptr(10)})
		}).
		Return(sampleResponse(t), nil).
		Once()
	submitter.On("SubmitInstallments", mock.Anything, mock.Anything).
		Return(sampleResponse(t), nil).
		Once()

	view, err := session.Apply(context.Background(),
		Edit{Kind: EditInstallment, Index: 1, Value: testutil.Float64Ptr(20)})
	require.NoError(t, err)
	require.NoError(t, secondErr)

	assert.Equal(t, StateReconciled.String(), secondView.State)
	assert.Equal(t, StateReconciled.String(), view.State)
	submitter.AssertNumberOfCalls(t, "SubmitInstallments", 2)
}

func TestSessionStabilizeToleratesStaleResponses(t *testing.T) {
	plan := newTestPlan(t, sampleUnit(), sampleOptions())
	submitter := &mockSubmitter{}
	session := NewSession(plan, submitter, testSessionOptions(), nil)

	submitter.On("SubmitInstallments", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			_, err := plan.Submission()
			require.NoError(t, err)
		}).
		Return(sampleResponse(t), nil).
		Once()
	submitter.On("SubmitInstallments", mock.Anything, mock.Anything).
		Return(sampleResponse(t), nil).
		Times(3)

	require.NoError(t, session.Stabilize(context.Background()))
	assert.Equal(t, StateReconciled, plan.State())
	submitter.AssertNumberOfCalls(t, "SubmitInstallments", 4)
}

func TestSessionStabilizeHonorsCancellation(t *testing.T) {
	plan := newTestPlan(t, sampleUnit(), sampleOptions())
	submitter := &mockSubmitter{}
	opts := testSessionOptions()
	opts.StabilizationDelay = time.Hour
	session := NewSession(plan, submitter, opts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	submitter.On("SubmitInstallments", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(sampleResponse(t), nil).
		Once()

	err := session.Stabilize(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	submitter.AssertNumberOfCalls(t, "SubmitInstallments", 1)
	assert.Equal(t, StateReconciled, plan.State())
}

func TestSessionQueueDiscountDebounces(t *testing.T) {
	session, backend := newBackendSession(t)

	done := make(chan View, 1)
	for _, pct := range []float64{5, 8, 10} {
		session.QueueDiscount(context.Background(), pct, func(v View, err error) {
			assert.NoError(t, err)
			done <- v
		})
	}

	select {
	case view := <-done:
		assert.Equal(t, 10.0, view.Discount)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced discount was not applied")
	}

	require.Len(t, backend.Submissions(), 1)
	assert.Equal(t, "900000", backend.LastSubmission().Fields["unit_base_price"])
}

func TestStabilizer(t *testing.T) {
	tests := []struct {
		maxAttempts int
		want        int
	}{
		{3, 4},
		{0, 1},
		{-2, 1},
	}

	for _, tt := range tests {
		st := NewStabilizer(tt.maxAttempts)
		assert.Equal(t, StabilizerIdle, st.State())

		count := 0
		for st.Next() {
			count++
			require.LessOrEqual(t, count, 10, "stabilizer did not terminate")
		}
		assert.Equal(t, tt.want, count)
		assert.Equal(t, tt.want, st.Submissions())
		assert.Equal(t, tt.want-1, st.Recalibrations())
		assert.Equal(t, StabilizerDone, st.State())
		assert.False(t, st.Next())
	}

	st := NewStabilizer(3)
	require.True(t, st.Next())
	st.Stop()
	assert.False(t, st.Next())
	assert.Equal(t, "done", st.State().String())
}

func TestSequencer(t *testing.T) {
	var seq Sequencer
	assert.False(t, seq.IsLatest(0))

	first := seq.Next()
	second := seq.Next()
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)
	assert.False(t, seq.IsLatest(first))
	assert.True(t, seq.IsLatest(second))
	assert.Equal(t, second, seq.Latest())
}
