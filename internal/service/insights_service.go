package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/latemark-go-api/internal/dto"
	"github.com/noah-isme/latemark-go-api/internal/models"
	"github.com/noah-isme/latemark-go-api/internal/repository"
	"github.com/noah-isme/latemark-go-api/pkg/ai"
)

// Risk categories assigned by the scoring heuristic.
const (
	RiskHigh   = "HIGH"
	RiskMedium = "MEDIUM"
	RiskLow    = "LOW"
)

// InsightsService scores tardiness risk across the ledger. Scores are
// derived on demand and never persisted.
type InsightsService interface {
	Insights(ctx context.Context, withNarrative bool) (dto.InsightsResponse, error)
}

// InsightsOptions tunes time handling and the optional narrative model.
type InsightsOptions struct {
	Summarizer ai.Summarizer
	Location   *time.Location
	Now        func() time.Time
}

type insightsService struct {
	repo       repository.LedgerRepository
	summarizer ai.Summarizer
	loc        *time.Location
	now        func() time.Time
	logger     zerolog.Logger
}

// NewInsightsService constructs the insights service. The summarizer may be
// nil; insights then omit the narrative.
func NewInsightsService(repo repository.LedgerRepository, logger zerolog.Logger, opts InsightsOptions) InsightsService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &insightsService{
		repo:       repo,
		summarizer: opts.Summarizer,
		loc:        opts.Location,
		now:        opts.Now,
		logger:     logger.With().Str("component", "insights_service").Logger(),
	}
}

func (s *insightsService) Insights(ctx context.Context, withNarrative bool) (dto.InsightsResponse, error) {
	students, err := s.repo.ListActive(ctx)
	if err != nil {
		return dto.InsightsResponse{}, fmt.Errorf("list active students: %w", err)
	}

	now := s.now().In(s.loc)
	breakdown := dto.DayBreakdown{}

	var high, medium []dto.StudentRisk
	lowCount := 0
	totalFines := 0
	lateTodayCount := 0
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	for i := range students {
		student := students[i]
		totalFines += student.Fines
		if student.LogOn(dayStart, dayEnd) != nil {
			lateTodayCount++
		}

		for _, log := range student.LateLogs {
			day := log.Date.In(s.loc).Weekday().String()
			breakdown[day]++
		}

		score := s.scoreStudent(student, now)
		risk := dto.StudentRisk{
			RollNo:          student.RollNo,
			Name:            student.Name,
			Branch:          student.Branch,
			Year:            student.Year,
			LateDays:        student.LateDays,
			RiskScore:       score,
			RiskCategory:    categorize(score),
			RiskProbability: float64(score) / 100,
		}

		switch risk.RiskCategory {
		case RiskHigh:
			high = append(high, risk)
		case RiskMedium:
			medium = append(medium, risk)
		default:
			lowCount++
		}
	}

	byScore := func(list []dto.StudentRisk) {
		sort.Slice(list, func(i, j int) bool {
			if list[i].RiskScore != list[j].RiskScore {
				return list[i].RiskScore > list[j].RiskScore
			}
			return list[i].RollNo < list[j].RollNo
		})
	}
	byScore(high)
	byScore(medium)

	peakDay := ""
	peakCount := 0
	for day, count := range breakdown {
		if count > peakCount || (count == peakCount && day < peakDay) {
			peakDay = day
			peakCount = count
		}
	}

	resp := dto.InsightsResponse{
		GeneratedAt:  now.Format(time.RFC3339),
		TotalScored:  len(students),
		HighRisk:     high,
		MediumRisk:   medium,
		LowRiskCount: lowCount,
		PeakDay:      peakDay,
		DayBreakdown: breakdown,
	}

	if withNarrative && s.summarizer != nil {
		topStudents := make([]string, 0, 3)
		for i := 0; i < len(high) && i < 3; i++ {
			topStudents = append(topStudents, high[i].Name)
		}

		result, err := s.summarizer.Summarize(ctx, ai.NarrativeInput{
			ClassSize:       len(students),
			LateToday:       lateTodayCount,
			TotalFines:      totalFines,
			HighRiskCount:   len(high),
			MediumRiskCount: len(medium),
			WorstDay:        peakDay,
			TopStudents:     topStudents,
		})
		if err != nil {
			// The narrative is advisory; insights remain useful without it.
			s.logger.Warn().Err(err).Msg("narrative generation failed")
		} else {
			resp.Narrative = result.Narrative
		}
	}

	return resp, nil
}

// scoreStudent blends overall volume, a recent-trend comparison and the
// per-semester rate into a 0-100 risk score.
func (s *insightsService) scoreStudent(student models.Student, now time.Time) int {
	score := student.LateDays * 4
	if score > 40 {
		score = 40
	}

	twoWeeksAgo := now.Add(-14 * 24 * time.Hour)
	fourWeeksAgo := now.Add(-28 * 24 * time.Hour)
	recent, prior := 0, 0
	for _, log := range student.LateLogs {
		switch {
		case !log.Date.Before(twoWeeksAgo):
			recent++
		case !log.Date.Before(fourWeeksAgo):
			prior++
		}
	}

	trend := float64(recent - prior)
	if prior > 0 {
		trend = float64(recent-prior) / float64(prior)
	}
	switch {
	case trend > 0.5:
		score += 20
	case trend > 0.2:
		score += 10
	case trend > 0:
		score += 5
	}

	semester := student.Semester
	if semester <= 0 {
		semester = 1
	}
	perSemester := float64(student.LateDays) / float64(semester)
	switch {
	case perSemester > 5:
		score += 15
	case perSemester > 3:
		score += 10
	case perSemester > 2:
		score += 5
	}

	switch student.Status {
	case models.StudentStatusFined:
		score += 15
	case models.StudentStatusExcused:
		score += 5
	}

	if score > 100 {
		score = 100
	}
	return score
}

func categorize(score int) string {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}
