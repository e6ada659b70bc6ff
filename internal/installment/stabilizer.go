package installment

// StabilizerState is the phase of a stabilization run.
type StabilizerState int

// Stabilizer phases.
const (
	StabilizerIdle StabilizerState = iota
	StabilizerRunning
	StabilizerDone
)

func (s StabilizerState) String() string {
	switch s {
	case StabilizerIdle:
		return "idle"
	case StabilizerRunning:
		return "running"
	case StabilizerDone:
		return "done"
	default:
		return "unknown"
	}
}

// Stabilizer bounds the submissions made after a scheme, frequency or tenor
// change: one initial submission followed by at most maxAttempts
// recalibrations. It always reaches StabilizerDone.
type Stabilizer struct {
	maxAttempts int
	submissions int
	state       StabilizerState
}

// NewStabilizer creates a stabilizer allowing maxAttempts recalibrations.
func NewStabilizer(maxAttempts int) *Stabilizer {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &Stabilizer{maxAttempts: maxAttempts}
}

// Next reports whether another submission should be made and counts it.
func (s *Stabilizer) Next() bool {
	switch s.state {
	case StabilizerIdle:
		s.state = StabilizerRunning
		s.submissions = 1
		return true
	case StabilizerRunning:
		if s.submissions-1 < s.maxAttempts {
			s.submissions++
			return true
		}
		s.state = StabilizerDone
		return false
	default:
		return false
	}
}

// Stop ends the run early.
func (s *Stabilizer) Stop() {
	s.state = StabilizerDone
}

// State returns the current phase.
func (s *Stabilizer) State() StabilizerState {
	return s.state
}

// Submissions is the number of submissions counted so far.
func (s *Stabilizer) Submissions() int {
	return s.submissions
}

// Recalibrations is the number of submissions after the initial one.
func (s *Stabilizer) Recalibrations() int {
	if s.submissions == 0 {
		return 0
	}
	return s.submissions - 1
}
