package installment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/top-planner/internal/debounce"
	"github.com/iwvelando/top-planner/internal/topapi"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

// Submitter sends a recalculation request to the backend.
type Submitter interface {
	SubmitInstallments(ctx context.Context, fields *orderedmap.OrderedMap[string, string]) (*topapi.CalculationResponse, error)
}

// SessionOptions configure how a session talks to the backend.
type SessionOptions struct {
	MaxStabilizationAttempts int
	StabilizationDelay       time.Duration
	DiscountDebounce         time.Duration
}

// Session drives one plan against the backend. The plan lock is never held
// while a request is in flight, so edits are accepted during a run.
type Session struct {
	id       string
	plan     *Plan
	client   Submitter
	opts     SessionOptions
	logger   *zap.Logger
	discount *debounce.Debouncer
}

// NewSession creates a session for plan.
func NewSession(plan *Plan, client Submitter, opts SessionOptions, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxStabilizationAttempts < 0 {
		opts.MaxStabilizationAttempts = 0
	}
	return &Session{
		id:       uuid.NewString(),
		plan:     plan,
		client:   client,
		opts:     opts,
		logger:   logger,
		discount: debounce.New(opts.DiscountDebounce),
	}
}

// ID identifies the session.
func (s *Session) ID() string {
	return s.id
}

// Plan returns the session's plan.
func (s *Session) Plan() *Plan {
	return s.plan
}

// Apply applies one edit and runs the backend follow-up it needs. The view is
// returned even when the follow-up fails.
func (s *Session) Apply(ctx context.Context, edit Edit) (View, error) {
	trigger, err := s.plan.Apply(edit)
	if err != nil {
		return s.plan.View(), err
	}

	s.logger.Debug("edit applied",
		zap.String("op", "installment.Session.Apply"),
		zap.String("session", s.id),
		zap.String("kind", string(edit.Kind)),
		zap.Stringer("trigger", trigger),
	)

	switch trigger {
	case TriggerSubmit:
		err = s.Reconcile(ctx)
	case TriggerStabilize:
		err = s.Stabilize(ctx)
	}
	return s.plan.View(), err
}

// QueueDiscount applies a manual discount once discount input has been quiet
// for the debounce delay. done receives the outcome; it may be nil.
func (s *Session) QueueDiscount(ctx context.Context, percentage float64, done func(View, error)) {
	pct := percentage
	s.discount.Trigger(func() {
		view, err := s.Apply(ctx, Edit{Kind: EditDiscount, Value: &pct})
		if err != nil {
			s.logger.Warn("debounced discount failed",
				zap.String("op", "installment.Session.QueueDiscount"),
				zap.String("session", s.id),
				zap.Error(err),
			)
		}
		if done != nil {
			done(view, err)
		}
	})
}

// FlushDiscount applies a queued discount immediately.
func (s *Session) FlushDiscount() bool {
	return s.discount.Flush()
}

// Reconcile submits the plan once and applies the response. A response
// superseded by a newer submission is dropped and is not an error.
func (s *Session) Reconcile(ctx context.Context) error {
	sub, err := s.plan.Submission()
	if err != nil {
		return err
	}

	resp, err := s.client.SubmitInstallments(ctx, sub.Fields)
	if err != nil {
		s.logger.Error("recalculation request failed",
			zap.String("op", "installment.Session.Reconcile"),
			zap.String("session", s.id),
			zap.Uint64("seq", sub.Seq),
			zap.Error(err),
		)
		return fmt.Errorf("recalculation failed: %w", err)
	}

	if err := s.plan.ApplyResult(sub.Seq, resp); err != nil {
		if errors.Is(err, ErrStaleResponse) {
			s.logger.Debug("dropping superseded recalculation response",
				zap.String("op", "installment.Session.Reconcile"),
				zap.String("session", s.id),
				zap.Uint64("seq", sub.Seq),
			)
			return nil
		}
		s.logger.Warn("recalculation response rejected",
			zap.String("op", "installment.Session.Reconcile"),
			zap.String("session", s.id),
			zap.Uint64("seq", sub.Seq),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Stabilize runs one submission followed by up to MaxStabilizationAttempts
// recalibrations, letting backend floors settle after a scheme, frequency or
// tenor change. Any failure ends the run.
func (s *Session) Stabilize(ctx context.Context) error {
	st := NewStabilizer(s.opts.MaxStabilizationAttempts)
	s.plan.beginStabilizing()
	defer s.plan.endStabilizing()

	for st.Next() {
		if st.Recalibrations() > 0 {
			if err := s.wait(ctx); err != nil {
				st.Stop()
				return err
			}
		}
		if err := s.Reconcile(ctx); err != nil {
			st.Stop()
			return err
		}
	}

	s.logger.Debug("stabilization finished",
		zap.String("op", "installment.Session.Stabilize"),
		zap.String("session", s.id),
		zap.Int("submissions", st.Submissions()),
	)
	return nil
}

func (s *Session) wait(ctx context.Context) error {
	if s.opts.StabilizationDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.opts.StabilizationDelay):
		return nil
	}
}
