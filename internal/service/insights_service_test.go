package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/latemark-go-api/internal/models"
	"github.com/noah-isme/latemark-go-api/pkg/ai"
)

type stubSummarizer struct {
	input ai.NarrativeInput
	err   error
}

func (s *stubSummarizer) Summarize(_ context.Context, input ai.NarrativeInput) (ai.NarrativeResult, error) {
	s.input = input
	if s.err != nil {
		return ai.NarrativeResult{}, s.err
	}
	return ai.NarrativeResult{Narrative: "Tardiness is concentrated on Mondays.", Severity: "medium"}, nil
}

func insightsFixture(clock *testClock) *fakeLedgerRepo {
	now := clock.Now()
	repo := newFakeLedgerRepo()

	// A chronic offender with a rising recent trend.
	dates := make([]time.Time, 0, 10)
	for i := 0; i < 10; i++ {
		dates = append(dates, now.Add(-time.Duration(i)*24*time.Hour))
	}
	seedStudent(repo, "22A81A0501", "Ananya Rao", dates, 40)

	// One stale event well in the past.
	seedStudent(repo, "22A81A0502", "Bharat Kumar", []time.Time{now.Add(-60 * 24 * time.Hour)}, 0)

	return repo
}

func TestInsightsScoresAndBucketsStudents(t *testing.T) {
	clock := newClock()
	repo := insightsFixture(clock)
	svc := NewInsightsService(repo, zerolog.Nop(), InsightsOptions{Location: time.UTC, Now: clock.Now})

	resp, err := svc.Insights(context.Background(), false)
	require.NoError(t, err)

	require.Equal(t, 2, resp.TotalScored)
	require.Len(t, resp.HighRisk, 1)
	require.Equal(t, "22A81A0501", resp.HighRisk[0].RollNo)
	require.Equal(t, RiskHigh, resp.HighRisk[0].RiskCategory)
	require.GreaterOrEqual(t, resp.HighRisk[0].RiskScore, 70)
	require.LessOrEqual(t, resp.HighRisk[0].RiskScore, 100)
	require.InDelta(t, float64(resp.HighRisk[0].RiskScore)/100, resp.HighRisk[0].RiskProbability, 0.001)

	require.Equal(t, 1, resp.LowRiskCount)
	require.NotEmpty(t, resp.PeakDay)
	require.NotEmpty(t, resp.DayBreakdown)
	require.Empty(t, resp.Narrative)
}

func TestInsightsIncludesNarrativeWhenRequested(t *testing.T) {
	clock := newClock()
	repo := insightsFixture(clock)
	summarizer := &stubSummarizer{}
	svc := NewInsightsService(repo, zerolog.Nop(), InsightsOptions{
		Summarizer: summarizer,
		Location:   time.UTC,
		Now:        clock.Now,
	})

	resp, err := svc.Insights(context.Background(), true)
	require.NoError(t, err)

	require.Equal(t, "Tardiness is concentrated on Mondays.", resp.Narrative)
	require.Equal(t, 2, summarizer.input.ClassSize)
	require.Equal(t, 1, summarizer.input.HighRiskCount)
	require.Contains(t, summarizer.input.TopStudents, "Ananya Rao")
}

func TestInsightsSurviveNarrativeFailure(t *testing.T) {
	clock := newClock()
	repo := insightsFixture(clock)
	svc := NewInsightsService(repo, zerolog.Nop(), InsightsOptions{
		Summarizer: &stubSummarizer{err: errors.New("model offline")},
		Location:   time.UTC,
		Now:        clock.Now,
	})

	resp, err := svc.Insights(context.Background(), true)
	require.NoError(t, err)
	require.Empty(t, resp.Narrative)
	require.Equal(t, 2, resp.TotalScored)
}

func TestScoreStudentMaxesEveryFactor(t *testing.T) {
	clock := newClock()
	svc := &insightsService{loc: time.UTC, now: clock.Now, logger: zerolog.Nop()}

	now := clock.Now()
	logs := make([]models.LateLog, 0, 30)
	for i := 0; i < 30; i++ {
		logs = append(logs, models.LateLog{Date: now.Add(-time.Duration(i) * 12 * time.Hour)})
	}

	student := models.Student{
		LateDays: 30,
		Semester: 1,
		Status:   models.StudentStatusFined,
		LateLogs: logs,
	}

	// Volume 40, trend 20, per-semester 15, fined status 15.
	score := svc.scoreStudent(student, now)
	require.Equal(t, 90, score)
}
