package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/latemark-go-api/internal/dto"
	"github.com/noah-isme/latemark-go-api/internal/models"
	"github.com/noah-isme/latemark-go-api/internal/observability"
	"github.com/noah-isme/latemark-go-api/internal/policy"
	"github.com/noah-isme/latemark-go-api/internal/repository"
)

var (
	// ErrValidation wraps request validation failures.
	ErrValidation = errors.New("invalid request")
	// ErrStudentNotFound indicates the roll number has no ledger record.
	ErrStudentNotFound = errors.New("student not found")
	// ErrDuplicateEvent indicates the student is already marked late today.
	ErrDuplicateEvent = errors.New("student already marked late today")
	// ErrNothingToUndo indicates no late entry was recorded today.
	ErrNothingToUndo = errors.New("no late entry recorded today")
	// ErrUndoWindowExpired indicates the entry is too old to undo.
	ErrUndoWindowExpired = errors.New("undo window has expired")
	// ErrRegistrationRequired indicates an unknown roll number arrived
	// without the registration fields needed to provision it.
	ErrRegistrationRequired = errors.New("registration details required")
	// ErrNoPendingFines indicates a payment against a zero balance.
	ErrNoPendingFines = errors.New("student has no pending fines")
	// ErrPaymentExceedsFines indicates an overpayment attempt.
	ErrPaymentExceedsFines = errors.New("payment exceeds outstanding fines")

	// errAlreadyRegistered aborts a register-only update without writing.
	errAlreadyRegistered = errors.New("student already registered")
)

// DuplicateEventError carries the context of the already-recorded entry so
// the caller can decide whether to undo it.
type DuplicateEventError struct {
	Info dto.DuplicateEventInfo
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("%s already marked late today by %s", e.Info.RollNo, e.Info.MarkedByName)
}

func (e *DuplicateEventError) Unwrap() error { return ErrDuplicateEvent }

// WindowExpiredError reports an undo attempt outside the edit window.
type WindowExpiredError struct {
	Info dto.WindowExpiredInfo
}

func (e *WindowExpiredError) Error() string {
	return fmt.Sprintf("undo window expired for %s after %.1f minutes", e.Info.RollNo, e.Info.ElapsedMinutes)
}

func (e *WindowExpiredError) Unwrap() error { return ErrUndoWindowExpired }

// RegistrationError lists the registration fields missing or invalid on a
// first sighting of a roll number.
type RegistrationError struct {
	RollNo  string
	Missing []string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration required for %s: %s", e.RollNo, strings.Join(e.Missing, ", "))
}

func (e *RegistrationError) Unwrap() error { return ErrRegistrationRequired }

// FeedPublisher pushes committed ledger events to connected dashboards.
// Publishing is best-effort and never blocks a ledger mutation.
type FeedPublisher interface {
	Publish(event dto.LedgerEvent)
}

// LedgerService implements the mark-late, undo and fine payment operations.
type LedgerService interface {
	MarkLate(ctx context.Context, req dto.MarkLateRequest, actor Actor, meta RequestMeta) (dto.MarkLateResponse, error)
	UndoLate(ctx context.Context, rollNo string, actor Actor, meta RequestMeta) (dto.UndoLateResponse, error)
	PayFine(ctx context.Context, req dto.PayFineRequest, actor Actor, meta RequestMeta) (dto.PayFineResponse, error)
	GetStudent(ctx context.Context, rollNo string) (dto.StudentResponse, error)
}

// LedgerOptions tunes the timing behaviour of the ledger service.
type LedgerOptions struct {
	UndoWindow      time.Duration
	StoreTimeout    time.Duration
	ConflictRetries int
	Location        *time.Location
	Now             func() time.Time
}

type ledgerService struct {
	repo       repository.LedgerRepository
	audit      AuditService
	feed       FeedPublisher
	engine     *policy.Engine
	validate   *validator.Validate
	logger     zerolog.Logger
	tracer     trace.Tracer
	undoWindow time.Duration
	timeout    time.Duration
	retries    int
	loc        *time.Location
	now        func() time.Time
}

// NewLedgerService constructs the ledger service. The feed publisher may be
// nil when the realtime feed is disabled.
func NewLedgerService(
	repo repository.LedgerRepository,
	audit AuditService,
	feed FeedPublisher,
	engine *policy.Engine,
	validate *validator.Validate,
	logger zerolog.Logger,
	opts LedgerOptions,
) LedgerService {
	if opts.UndoWindow <= 0 {
		opts.UndoWindow = 10 * time.Minute
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.ConflictRetries <= 0 {
		opts.ConflictRetries = 3
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	observability.RegisterMetrics()

	return &ledgerService{
		repo:       repo,
		audit:      audit,
		feed:       feed,
		engine:     engine,
		validate:   validate,
		logger:     logger.With().Str("component", "ledger_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/latemark-go-api/internal/service"),
		undoWindow: opts.UndoWindow,
		timeout:    opts.StoreTimeout,
		retries:    opts.ConflictRetries,
		loc:        opts.Location,
		now:        opts.Now,
	}
}

type markOutcome struct {
	registered     bool
	classification policy.Classification
	fineDelta      int
	markedAt       time.Time
}

// MarkLate records one late event for the roll number, provisioning the
// ledger record on first sighting. The audit append is part of the operation
// contract; an audit failure fails the call.
func (s *ledgerService) MarkLate(ctx context.Context, req dto.MarkLateRequest, actor Actor, meta RequestMeta) (dto.MarkLateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.mark_late", trace.WithAttributes(
		attribute.String("roll_no", req.RollNo),
		attribute.Bool("register_only", req.RegisterOnly),
	))
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		return dto.MarkLateResponse{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	rollNo := normalizeRollNo(req.RollNo)
	var outcome markOutcome

	student, err := s.withRetries(ctx, rollNo, func(st *models.Student, exists bool) error {
		outcome = markOutcome{}
		now := s.now().In(s.loc)
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
		dayEnd := dayStart.Add(24 * time.Hour)

		if !exists {
			if missing := registrationMissing(req); len(missing) > 0 {
				return &RegistrationError{RollNo: rollNo, Missing: missing}
			}
			provisionStudent(st, req)
			outcome.registered = true
		}

		if req.RegisterOnly {
			if exists {
				return errAlreadyRegistered
			}
			return nil
		}

		if entry := st.LogOn(dayStart, dayEnd); entry != nil {
			return &DuplicateEventError{Info: dto.DuplicateEventInfo{
				RollNo:        rollNo,
				Name:          st.Name,
				MarkedByName:  entry.MarkedByName,
				MarkedByEmail: entry.MarkedByEmail,
				MarkedAt:      entry.Date,
				StillUndoable: now.Sub(entry.Date) <= s.undoWindow,
			}}
		}

		next, classification, fineDelta := s.engine.Apply(stateOf(st))
		applyState(st, next)

		st.LateLogs = append(st.LateLogs, models.LateLog{
			ID:            uuid.NewString(),
			Date:          now,
			MarkedBy:      actor.ID,
			MarkedByName:  actor.Name,
			MarkedByEmail: actor.Email,
			PhotoURL:      req.PhotoURL,
			Notes:         req.Notes,
		})

		if fineDelta > 0 {
			st.FineHistory = append(st.FineHistory, models.FineEntry{
				Amount: fineDelta,
				Date:   now,
				Reason: fmt.Sprintf("Late day %d, beyond the %d excused days", next.LateDays, s.engine.Config().ExcuseDays),
			})
		}

		outcome.classification = classification
		outcome.fineDelta = fineDelta
		outcome.markedAt = now
		return nil
	})

	switch {
	case errors.Is(err, errAlreadyRegistered):
		existing, getErr := s.repo.Get(ctx, rollNo)
		if getErr != nil {
			return dto.MarkLateResponse{}, fmt.Errorf("load registered student: %w", getErr)
		}
		return dto.MarkLateResponse{
			Student:             dto.NewStudentResponse(existing),
			Message:             fmt.Sprintf("%s is already registered", existing.Name),
			TotalFines:          existing.Fines,
			ExcuseDaysRemaining: s.engine.ExcuseDaysRemaining(stateOfValue(existing)),
		}, nil
	case errors.Is(err, ErrDuplicateEvent):
		observability.DuplicateRejections().Inc()
		span.RecordError(err)
		return dto.MarkLateResponse{}, err
	case err != nil:
		span.RecordError(err)
		return dto.MarkLateResponse{}, err
	}

	if req.RegisterOnly {
		if err := s.audit.Record(ctx, AuditEntry{
			Action:       models.AuditActionStudentCreated,
			Actor:        actor,
			Meta:         meta,
			TargetRollNo: student.RollNo,
			TargetName:   student.Name,
			TargetBranch: student.Branch,
			Details: map[string]interface{}{
				"year":    student.Year,
				"section": student.Section,
			},
		}); err != nil {
			s.logger.Error().Err(err).Str("roll_no", rollNo).Msg("audit append failed after registration")
			return dto.MarkLateResponse{}, err
		}

		return dto.MarkLateResponse{
			Student:             dto.NewStudentResponse(student),
			Message:             fmt.Sprintf("%s registered", student.Name),
			ExcuseDaysRemaining: s.engine.Config().ExcuseDays,
			Registered:          true,
		}, nil
	}

	observability.Marks().WithLabelValues(string(outcome.classification)).Inc()
	if outcome.fineDelta > 0 {
		observability.FinesApplied().Add(float64(outcome.fineDelta))
	}

	details := map[string]interface{}{
		"late_days":      student.LateDays,
		"classification": string(outcome.classification),
		"fine_amount":    outcome.fineDelta,
		"total_fines":    student.Fines,
		"registered":     outcome.registered,
	}
	if req.Notes != "" {
		details["notes"] = req.Notes
	}

	if err := s.audit.Record(ctx, AuditEntry{
		Action:       models.AuditActionStudentMarkedLate,
		Actor:        actor,
		Meta:         meta,
		TargetRollNo: student.RollNo,
		TargetName:   student.Name,
		TargetBranch: student.Branch,
		Details:      details,
	}); err != nil {
		s.logger.Error().Err(err).Str("roll_no", rollNo).Msg("audit append failed after mark")
		return dto.MarkLateResponse{}, err
	}

	if outcome.fineDelta > 0 {
		if err := s.audit.Record(ctx, AuditEntry{
			Action:       models.AuditActionFineApplied,
			Actor:        actor,
			Meta:         meta,
			TargetRollNo: student.RollNo,
			TargetName:   student.Name,
			TargetBranch: student.Branch,
			Details: map[string]interface{}{
				"fine_amount": outcome.fineDelta,
				"total_fines": student.Fines,
				"late_days":   student.LateDays,
			},
		}); err != nil {
			s.logger.Error().Err(err).Str("roll_no", rollNo).Msg("audit append failed after fine")
			return dto.MarkLateResponse{}, err
		}
	}

	s.publish(dto.LedgerEvent{
		Type:         dto.FeedEventMarkedLate,
		RollNo:       student.RollNo,
		Name:         student.Name,
		LateDays:     student.LateDays,
		Fines:        student.Fines,
		Status:       student.Status,
		AlertFaculty: student.AlertFaculty,
		ActorName:    actor.Display(),
		At:           outcome.markedAt,
	})

	s.logger.Info().
		Str("roll_no", student.RollNo).
		Int("late_days", student.LateDays).
		Str("classification", string(outcome.classification)).
		Int("fine_amount", outcome.fineDelta).
		Msg("student marked late")

	state := stateOfValue(student)
	return dto.MarkLateResponse{
		Student:             dto.NewStudentResponse(student),
		Message:             s.markMessage(student, outcome),
		Classification:      string(outcome.classification),
		FineAmount:          outcome.fineDelta,
		TotalFines:          student.Fines,
		ExcuseDaysRemaining: s.engine.ExcuseDaysRemaining(state),
		Registered:          outcome.registered,
	}, nil
}

// UndoLate reverses today's late entry for the roll number if the undo
// window has not elapsed. The audit append is best-effort here; the reversal
// itself stands even if the trail write fails.
func (s *ledgerService) UndoLate(ctx context.Context, rollNo string, actor Actor, meta RequestMeta) (dto.UndoLateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.undo_late", trace.WithAttributes(
		attribute.String("roll_no", rollNo),
	))
	defer span.End()

	rollNo = normalizeRollNo(rollNo)
	if rollNo == "" {
		return dto.UndoLateResponse{}, fmt.Errorf("%w: roll number is required", ErrValidation)
	}

	var (
		elapsed         time.Duration
		removedWasFined bool
	)

	student, err := s.withRetries(ctx, rollNo, func(st *models.Student, exists bool) error {
		if !exists {
			return ErrStudentNotFound
		}

		now := s.now().In(s.loc)
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
		dayEnd := dayStart.Add(24 * time.Hour)

		entry := st.LogOn(dayStart, dayEnd)
		if entry == nil {
			return ErrNothingToUndo
		}

		elapsed = now.Sub(entry.Date)
		if elapsed > s.undoWindow {
			return &WindowExpiredError{Info: dto.WindowExpiredInfo{
				RollNo:         rollNo,
				MarkedByName:   entry.MarkedByName,
				MarkedAt:       entry.Date,
				ElapsedMinutes: elapsed.Minutes(),
				WindowMinutes:  s.undoWindow.Minutes(),
			}}
		}

		// Today's entry is by construction the most recent one, so the
		// current counters tell us whether it fell past the excuse period.
		removedWasFined = st.LateDays > s.engine.Config().ExcuseDays

		next := s.engine.Revert(stateOf(st), removedWasFined)
		st.RemoveLog(entry.ID)
		if removedWasFined {
			dropFineForDay(st, dayStart, dayEnd)
		}
		applyState(st, next)
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrStudentNotFound):
			observability.Undo().WithLabelValues("not_found").Inc()
		case errors.Is(err, ErrNothingToUndo):
			observability.Undo().WithLabelValues("nothing_to_undo").Inc()
		case errors.Is(err, ErrUndoWindowExpired):
			observability.Undo().WithLabelValues("window_expired").Inc()
		}
		span.RecordError(err)
		return dto.UndoLateResponse{}, err
	}

	observability.Undo().WithLabelValues("success").Inc()

	entry := AuditEntry{
		Action:       models.AuditActionLateRecordRemoved,
		Actor:        actor,
		Meta:         meta,
		TargetRollNo: student.RollNo,
		TargetName:   student.Name,
		TargetBranch: student.Branch,
		Details: map[string]interface{}{
			"late_days":       student.LateDays,
			"fines":           student.Fines,
			"removed_fined":   removedWasFined,
			"elapsed_minutes": elapsed.Minutes(),
		},
	}
	go func() {
		auditCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if recordErr := s.audit.Record(auditCtx, entry); recordErr != nil {
			s.logger.Error().Err(recordErr).Str("roll_no", entry.TargetRollNo).Msg("audit append failed after undo")
		}
	}()

	s.publish(dto.LedgerEvent{
		Type:         dto.FeedEventLateUndone,
		RollNo:       student.RollNo,
		Name:         student.Name,
		LateDays:     student.LateDays,
		Fines:        student.Fines,
		Status:       student.Status,
		AlertFaculty: student.AlertFaculty,
		ActorName:    actor.Display(),
		At:           s.now().In(s.loc),
	})

	s.logger.Info().
		Str("roll_no", student.RollNo).
		Int("late_days", student.LateDays).
		Float64("elapsed_minutes", elapsed.Minutes()).
		Msg("late entry undone")

	return dto.UndoLateResponse{
		RollNo:         student.RollNo,
		Name:           student.Name,
		LateDays:       student.LateDays,
		Fines:          student.Fines,
		Status:         student.Status,
		UndoneBy:       actor.Display(),
		ElapsedMinutes: elapsed.Minutes(),
	}, nil
}

// PayFine records a payment against the student's outstanding fines.
func (s *ledgerService) PayFine(ctx context.Context, req dto.PayFineRequest, actor Actor, meta RequestMeta) (dto.PayFineResponse, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.pay_fine", trace.WithAttributes(
		attribute.String("roll_no", req.RollNo),
	))
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		return dto.PayFineResponse{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	rollNo := normalizeRollNo(req.RollNo)
	var previousFines int

	student, err := s.withRetries(ctx, rollNo, func(st *models.Student, exists bool) error {
		if !exists {
			return ErrStudentNotFound
		}
		if st.Fines == 0 {
			return ErrNoPendingFines
		}
		if req.Amount > st.Fines {
			return ErrPaymentExceedsFines
		}

		now := s.now().In(s.loc)
		previousFines = st.Fines

		cover := req.Amount
		for i := range st.FineHistory {
			entry := &st.FineHistory[i]
			if entry.Amount > 0 && !entry.Paid && cover >= entry.Amount {
				entry.Paid = true
				paidAt := now
				entry.PaidDate = &paidAt
				cover -= entry.Amount
			}
		}

		paidAt := now
		st.FineHistory = append(st.FineHistory, models.FineEntry{
			Amount:   -req.Amount,
			Date:     now,
			Reason:   "Fine payment",
			Paid:     true,
			PaidDate: &paidAt,
		})

		next := s.engine.Derive(st.LateDays, st.Fines-req.Amount)
		applyState(st, next)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return dto.PayFineResponse{}, err
	}

	if err := s.audit.Record(ctx, AuditEntry{
		Action:       models.AuditActionFinePaid,
		Actor:        actor,
		Meta:         meta,
		TargetRollNo: student.RollNo,
		TargetName:   student.Name,
		TargetBranch: student.Branch,
		Details: map[string]interface{}{
			"paid_amount":     req.Amount,
			"previous_fines":  previousFines,
			"remaining_fines": student.Fines,
		},
	}); err != nil {
		s.logger.Error().Err(err).Str("roll_no", rollNo).Msg("audit append failed after payment")
		return dto.PayFineResponse{}, err
	}

	s.publish(dto.LedgerEvent{
		Type:         dto.FeedEventFinePaid,
		RollNo:       student.RollNo,
		Name:         student.Name,
		LateDays:     student.LateDays,
		Fines:        student.Fines,
		Status:       student.Status,
		AlertFaculty: student.AlertFaculty,
		ActorName:    actor.Display(),
		At:           s.now().In(s.loc),
	})

	s.logger.Info().
		Str("roll_no", student.RollNo).
		Int("paid_amount", req.Amount).
		Int("remaining_fines", student.Fines).
		Msg("fine payment recorded")

	return dto.PayFineResponse{
		RollNo:         student.RollNo,
		Name:           student.Name,
		PreviousFines:  previousFines,
		PaidAmount:     req.Amount,
		RemainingFines: student.Fines,
		Status:         student.Status,
	}, nil
}

// GetStudent returns the full ledger record for a roll number.
func (s *ledgerService) GetStudent(ctx context.Context, rollNo string) (dto.StudentResponse, error) {
	rollNo = normalizeRollNo(rollNo)
	if rollNo == "" {
		return dto.StudentResponse{}, fmt.Errorf("%w: roll number is required", ErrValidation)
	}

	student, err := s.repo.Get(ctx, rollNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}
		return dto.StudentResponse{}, fmt.Errorf("load ledger record: %w", err)
	}

	return dto.NewStudentResponse(student), nil
}

// withRetries runs one read-modify-write cycle against the repository,
// retrying on optimistic concurrency conflicts with fresh state each time.
func (s *ledgerService) withRetries(ctx context.Context, rollNo string, fn func(st *models.Student, exists bool) error) (models.Student, error) {
	var (
		student models.Student
		err     error
	)

	for attempt := 0; attempt <= s.retries; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		student, err = s.repo.AtomicUpdate(opCtx, rollNo, fn)
		cancel()

		if errors.Is(err, repository.ErrConflict) {
			observability.ConflictRetries().Inc()
			s.logger.Warn().Str("roll_no", rollNo).Int("attempt", attempt+1).Msg("ledger write conflict, retrying")
			continue
		}
		break
	}

	return student, err
}

func (s *ledgerService) publish(event dto.LedgerEvent) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(event)
}

func (s *ledgerService) markMessage(student models.Student, outcome markOutcome) string {
	cfg := s.engine.Config()
	if outcome.classification == policy.ClassificationExcused {
		return fmt.Sprintf("%s marked late, excuse day %d of %d used", student.Name, student.ExcuseDaysUsed, cfg.ExcuseDays)
	}
	return fmt.Sprintf("%s marked late, fine of %d applied (late day %d)", student.Name, outcome.fineDelta, student.LateDays)
}

func normalizeRollNo(rollNo string) string {
	return strings.ToUpper(strings.TrimSpace(rollNo))
}

func registrationMissing(req dto.MarkLateRequest) []string {
	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if req.Year < 1 || req.Year > 4 {
		missing = append(missing, "year")
	}
	if !models.IsValidBranch(req.Branch) {
		missing = append(missing, "branch")
	}
	if strings.TrimSpace(req.Section) == "" {
		missing = append(missing, "section")
	}
	return missing
}

func provisionStudent(st *models.Student, req dto.MarkLateRequest) {
	st.Name = strings.TrimSpace(req.Name)
	st.Year = req.Year
	st.Semester = req.Semester
	if st.Semester == 0 {
		st.Semester = models.DefaultSemester(req.Year)
	}
	st.Branch = strings.ToUpper(strings.TrimSpace(req.Branch))
	st.Section = strings.ToUpper(strings.TrimSpace(req.Section))
	st.Status = models.StudentStatusNormal
}

// dropFineForDay removes the unpaid fine entry recorded within the day, if
// any. Used when undoing a fined late event.
func dropFineForDay(st *models.Student, dayStart, dayEnd time.Time) {
	for i := len(st.FineHistory) - 1; i >= 0; i-- {
		entry := st.FineHistory[i]
		if entry.Amount > 0 && !entry.Paid &&
			!entry.Date.Before(dayStart) && entry.Date.Before(dayEnd) {
			st.FineHistory = append(st.FineHistory[:i], st.FineHistory[i+1:]...)
			return
		}
	}
}

func stateOf(st *models.Student) policy.State {
	return policy.State{
		LateDays:            st.LateDays,
		ExcuseDaysUsed:      st.ExcuseDaysUsed,
		Fines:               st.Fines,
		ConsecutiveLateDays: st.ConsecutiveLateDays,
		Status:              policy.Status(st.Status),
		AlertFaculty:        st.AlertFaculty,
	}
}

func stateOfValue(st models.Student) policy.State {
	return stateOf(&st)
}

func applyState(st *models.Student, next policy.State) {
	st.LateDays = next.LateDays
	st.ExcuseDaysUsed = next.ExcuseDaysUsed
	st.Fines = next.Fines
	st.ConsecutiveLateDays = next.ConsecutiveLateDays
	st.Status = string(next.Status)
	st.AlertFaculty = next.AlertFaculty
}
