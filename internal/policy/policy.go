// Package policy implements the pure excuse/fine decision rules for the
// tardiness ledger. It performs no I/O; every function maps an input state to
// a fully recomputed output state so the ledger invariants hold by
// construction rather than by scattered field updates.
package policy

// Classification describes how a late event was treated.
type Classification string

const (
	// ClassificationExcused means the event consumed an excuse day.
	ClassificationExcused Classification = "excused"
	// ClassificationFined means the event incurred a monetary fine.
	ClassificationFined Classification = "fined"
)

// Status buckets a student by their accumulated late days.
type Status string

const (
	StatusNormal  Status = "normal"
	StatusExcused Status = "excused"
	StatusFined   Status = "fined"
)

// Config carries the institution policy constants.
type Config struct {
	ExcuseDays     int
	FinePerDay     int
	AlertThreshold int
}

// State is the derived portion of a student ledger record.
type State struct {
	LateDays            int
	ExcuseDaysUsed      int
	Fines               int
	ConsecutiveLateDays int
	Status              Status
	AlertFaculty        bool
}

// Engine evaluates late events against the configured policy.
type Engine struct {
	cfg Config
}

// NewEngine constructs a policy engine from the given constants.
func NewEngine(cfg Config) *Engine {
	if cfg.ExcuseDays < 0 {
		cfg.ExcuseDays = 0
	}
	if cfg.FinePerDay < 0 {
		cfg.FinePerDay = 0
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = 5
	}
	return &Engine{cfg: cfg}
}

// Config returns the constants the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Apply accepts one late event and returns the next state, the event's
// classification and the fine charged for it (zero during the excuse period).
func (e *Engine) Apply(s State) (State, Classification, int) {
	lateDays := s.LateDays + 1

	if lateDays <= e.cfg.ExcuseDays {
		return e.Derive(lateDays, s.Fines), ClassificationExcused, 0
	}

	fineDelta := e.cfg.FinePerDay
	return e.Derive(lateDays, s.Fines+fineDelta), ClassificationFined, fineDelta
}

// Revert removes one late event. The resulting state is re-derived in full:
// crossing back to or below the excuse allowance clears every fine-state
// field instead of merely decrementing counters.
func (e *Engine) Revert(s State, removedWasFined bool) State {
	lateDays := s.LateDays - 1
	if lateDays < 0 {
		lateDays = 0
	}

	fines := s.Fines
	if removedWasFined {
		fines -= e.cfg.FinePerDay
		if fines < 0 {
			fines = 0
		}
	}

	return e.Derive(lateDays, fines)
}

// Derive is the single derivation point for every computed ledger field.
// Callers never patch ExcuseDaysUsed, Status, ConsecutiveLateDays or
// AlertFaculty individually.
func (e *Engine) Derive(lateDays, fines int) State {
	if lateDays < 0 {
		lateDays = 0
	}
	if fines < 0 {
		fines = 0
	}

	s := State{
		LateDays: lateDays,
		Fines:    fines,
	}

	switch {
	case lateDays == 0:
		s.Status = StatusNormal
	case lateDays <= e.cfg.ExcuseDays:
		s.Status = StatusExcused
		s.ExcuseDaysUsed = lateDays
	default:
		s.Status = StatusFined
		s.ExcuseDaysUsed = e.cfg.ExcuseDays
		s.ConsecutiveLateDays = lateDays - e.cfg.ExcuseDays
	}

	s.AlertFaculty = lateDays > e.cfg.AlertThreshold

	return s
}

// ExcuseDaysRemaining reports how many excuse days the student still has.
func (e *Engine) ExcuseDaysRemaining(s State) int {
	remaining := e.cfg.ExcuseDays - s.ExcuseDaysUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
