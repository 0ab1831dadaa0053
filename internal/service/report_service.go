package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/latemark-go-api/internal/dto"
	"github.com/noah-isme/latemark-go-api/internal/models"
	"github.com/noah-isme/latemark-go-api/internal/repository"
)

// ErrUnknownPeriod indicates an unsupported report period.
var ErrUnknownPeriod = errors.New("unknown report period")

// Report periods accepted by RecordsForPeriod.
const (
	PeriodWeek     = "week"
	PeriodMonth    = "month"
	PeriodSemester = "semester"
)

// ReportService produces derived, read-only views over the ledger. Results
// are served from a short-lived cache; reports tolerate slight staleness.
type ReportService interface {
	LateToday(ctx context.Context) (dto.LateTodayResponse, error)
	RecordsForPeriod(ctx context.Context, period string) (dto.PeriodRecordsResponse, error)
	Leaderboard(ctx context.Context) (dto.LeaderboardResponse, error)
	FinancialSummary(ctx context.Context) (dto.FinancialSummaryResponse, error)
}

// ReportOptions tunes caching and time handling for reports.
type ReportOptions struct {
	CacheTTL time.Duration
	Location *time.Location
	Now      func() time.Time
}

type reportService struct {
	repo   repository.LedgerRepository
	cache  *redis.Client
	ttl    time.Duration
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// NewReportService constructs the report service. The cache client may be
// nil; reports then compute on every call.
func NewReportService(repo repository.LedgerRepository, cache *redis.Client, logger zerolog.Logger, opts ReportOptions) ReportService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 2 * time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &reportService{
		repo:   repo,
		cache:  cache,
		ttl:    opts.CacheTTL,
		loc:    opts.Location,
		now:    opts.Now,
		logger: logger.With().Str("component", "report_service").Logger(),
	}
}

func (s *reportService) LateToday(ctx context.Context) (dto.LateTodayResponse, error) {
	now := s.now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.Add(24 * time.Hour)
	key := fmt.Sprintf("ledger:report:late_today:%s", dayStart.Format("2006-01-02"))

	var cached dto.LateTodayResponse
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	students, err := s.repo.ListActive(ctx)
	if err != nil {
		return dto.LateTodayResponse{}, fmt.Errorf("list active students: %w", err)
	}

	summaries := make([]dto.StudentSummary, 0)
	for i := range students {
		if students[i].LogOn(dayStart, dayEnd) != nil {
			summaries = append(summaries, summarize(students[i]))
		}
	}

	resp := dto.LateTodayResponse{
		Date:     dayStart.Format("2006-01-02"),
		Count:    len(summaries),
		Students: summaries,
	}
	s.toCache(ctx, key, resp)
	return resp, nil
}

func (s *reportService) RecordsForPeriod(ctx context.Context, period string) (dto.PeriodRecordsResponse, error) {
	var span time.Duration
	switch period {
	case PeriodWeek:
		span = 7 * 24 * time.Hour
	case PeriodMonth:
		span = 30 * 24 * time.Hour
	case PeriodSemester:
		span = 120 * 24 * time.Hour
	default:
		return dto.PeriodRecordsResponse{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}

	now := s.now().In(s.loc)
	start := now.Add(-span)
	key := fmt.Sprintf("ledger:report:period:%s:%s", period, now.Format("2006-01-02"))

	var cached dto.PeriodRecordsResponse
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	students, err := s.repo.ListActive(ctx)
	if err != nil {
		return dto.PeriodRecordsResponse{}, fmt.Errorf("list active students: %w", err)
	}

	periodStudents := make([]dto.PeriodStudent, 0)
	for i := range students {
		count := 0
		for _, log := range students[i].LateLogs {
			if !log.Date.Before(start) && log.Date.Before(now.Add(time.Second)) {
				count++
			}
		}
		if count > 0 {
			periodStudents = append(periodStudents, dto.PeriodStudent{
				StudentSummary:    summarize(students[i]),
				LateCountInPeriod: count,
			})
		}
	}

	sort.Slice(periodStudents, func(i, j int) bool {
		if periodStudents[i].LateCountInPeriod != periodStudents[j].LateCountInPeriod {
			return periodStudents[i].LateCountInPeriod > periodStudents[j].LateCountInPeriod
		}
		return periodStudents[i].RollNo < periodStudents[j].RollNo
	})

	resp := dto.PeriodRecordsResponse{
		Period:    period,
		StartDate: start,
		EndDate:   now,
		Students:  periodStudents,
	}
	s.toCache(ctx, key, resp)
	return resp, nil
}

func (s *reportService) Leaderboard(ctx context.Context) (dto.LeaderboardResponse, error) {
	const key = "ledger:report:leaderboard"

	var cached dto.LeaderboardResponse
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	mostLate, err := s.repo.TopLate(ctx, 10)
	if err != nil {
		return dto.LeaderboardResponse{}, fmt.Errorf("top late students: %w", err)
	}

	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return dto.LeaderboardResponse{}, fmt.Errorf("list students: %w", err)
	}

	most := make([]dto.StudentSummary, 0, len(mostLate))
	for i := range mostLate {
		most = append(most, summarize(mostLate[i]))
	}

	sorted := make([]models.Student, len(all))
	copy(sorted, all)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].LateDays != sorted[j].LateDays {
			return sorted[i].LateDays < sorted[j].LateDays
		}
		return sorted[i].RollNo < sorted[j].RollNo
	})
	least := make([]dto.StudentSummary, 0, 10)
	for i := range sorted {
		if len(least) == 10 {
			break
		}
		least = append(least, summarize(sorted[i]))
	}

	// A student counts as improved when they have prior late days but no
	// event in the last two weeks.
	now := s.now().In(s.loc)
	cutoff := now.Add(-14 * 24 * time.Hour)
	improved := make([]dto.ImprovedEntry, 0)
	for i := range all {
		student := all[i]
		if student.LateDays == 0 || len(student.LateLogs) == 0 {
			continue
		}
		last := student.LateLogs[0].Date
		for _, log := range student.LateLogs {
			if log.Date.After(last) {
				last = log.Date
			}
		}
		if last.Before(cutoff) {
			improved = append(improved, dto.ImprovedEntry{
				StudentSummary: summarize(student),
				Improvement:    int(now.Sub(last).Hours() / 24),
			})
		}
	}
	sort.Slice(improved, func(i, j int) bool {
		if improved[i].Improvement != improved[j].Improvement {
			return improved[i].Improvement > improved[j].Improvement
		}
		return improved[i].RollNo < improved[j].RollNo
	})
	if len(improved) > 10 {
		improved = improved[:10]
	}

	resp := dto.LeaderboardResponse{
		MostLate:     most,
		LeastLate:    least,
		MostImproved: improved,
	}
	s.toCache(ctx, key, resp)
	return resp, nil
}

func (s *reportService) FinancialSummary(ctx context.Context) (dto.FinancialSummaryResponse, error) {
	const key = "ledger:report:financial"

	var cached dto.FinancialSummaryResponse
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return dto.FinancialSummaryResponse{}, fmt.Errorf("list students: %w", err)
	}

	var collected, pending, finedStudents int
	for i := range all {
		student := all[i]
		pending += student.Fines
		hadFine := false
		for _, entry := range student.FineHistory {
			if entry.Amount > 0 {
				hadFine = true
				if entry.Paid {
					collected += entry.Amount
				}
			}
		}
		if hadFine {
			finedStudents++
		}
	}

	projected := collected + pending
	rate := 0
	if projected > 0 {
		rate = collected * 100 / projected
	}
	avg := 0
	if finedStudents > 0 {
		avg = projected / finedStudents
	}

	resp := dto.FinancialSummaryResponse{
		TotalCollected:    collected,
		PendingFines:      pending,
		ProjectedRevenue:  projected,
		PaymentRate:       rate,
		AvgFinePerStudent: avg,
	}
	s.toCache(ctx, key, resp)
	return resp, nil
}

func (s *reportService) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}

	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("report cache read failed")
		}
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("report cache entry corrupt")
		return false
	}

	return true
}

func (s *reportService) toCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}
}

func summarize(student models.Student) dto.StudentSummary {
	return dto.StudentSummary{
		RollNo:       student.RollNo,
		Name:         student.Name,
		Year:         student.Year,
		Branch:       student.Branch,
		Section:      student.Section,
		LateDays:     student.LateDays,
		Fines:        student.Fines,
		Status:       student.Status,
		AlertFaculty: student.AlertFaculty,
	}
}
