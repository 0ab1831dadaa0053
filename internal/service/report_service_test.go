package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/latemark-go-api/internal/models"
)

func seedStudent(repo *fakeLedgerRepo, rollNo, name string, lateDates []time.Time, fines int) {
	logs := make([]models.LateLog, 0, len(lateDates))
	for _, date := range lateDates {
		logs = append(logs, models.LateLog{ID: rollNo + date.Format("0102"), Date: date, MarkedByName: "Prof. Iyer"})
	}

	history := []models.FineEntry{}
	if fines > 0 {
		history = append(history, models.FineEntry{Amount: fines, Date: lateDates[len(lateDates)-1]})
	}

	status := models.StudentStatusNormal
	switch {
	case len(lateDates) > 2:
		status = models.StudentStatusFined
	case len(lateDates) > 0:
		status = models.StudentStatusExcused
	}

	repo.students[rollNo] = models.Student{
		RollNo:      rollNo,
		Name:        name,
		Year:        2,
		Semester:    3,
		Branch:      "CSE",
		Section:     "A",
		LateDays:    len(lateDates),
		Fines:       fines,
		Status:      status,
		LateLogs:    logs,
		FineHistory: history,
	}
}

func reportFixture(t *testing.T) (*fakeLedgerRepo, *redis.Client, *testClock) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := newClock()
	now := clock.Now()

	repo := newFakeLedgerRepo()
	seedStudent(repo, "22A81A0501", "Ananya Rao", []time.Time{now.Add(-48 * time.Hour), now.Add(-24 * time.Hour), now}, 5)
	seedStudent(repo, "22A81A0502", "Bharat Kumar", []time.Time{now.Add(-20 * 24 * time.Hour)}, 0)
	seedStudent(repo, "22A81A0503", "Chitra Devi", nil, 0)

	return repo, client, clock
}

func TestLateTodayListsOnlyTodaysMarks(t *testing.T) {
	repo, client, clock := reportFixture(t)
	svc := NewReportService(repo, client, zerolog.Nop(), ReportOptions{Location: time.UTC, Now: clock.Now})

	resp, err := svc.LateToday(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, resp.Count)
	require.Equal(t, "22A81A0501", resp.Students[0].RollNo)
	require.Equal(t, clock.Now().Format("2006-01-02"), resp.Date)
}

func TestLateTodayServesFromCache(t *testing.T) {
	repo, client, clock := reportFixture(t)
	svc := NewReportService(repo, client, zerolog.Nop(), ReportOptions{Location: time.UTC, Now: clock.Now})

	first, err := svc.LateToday(context.Background())
	require.NoError(t, err)

	// A ledger change after caching is invisible until the TTL lapses.
	delete(repo.students, "22A81A0501")
	second, err := svc.LateToday(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRecordsForPeriodCountsInWindowEvents(t *testing.T) {
	repo, client, clock := reportFixture(t)
	svc := NewReportService(repo, client, zerolog.Nop(), ReportOptions{Location: time.UTC, Now: clock.Now})

	week, err := svc.RecordsForPeriod(context.Background(), PeriodWeek)
	require.NoError(t, err)
	require.Len(t, week.Students, 1)
	require.Equal(t, "22A81A0501", week.Students[0].RollNo)
	require.Equal(t, 3, week.Students[0].LateCountInPeriod)

	month, err := svc.RecordsForPeriod(context.Background(), PeriodMonth)
	require.NoError(t, err)
	require.Len(t, month.Students, 2)

	_, err = svc.RecordsForPeriod(context.Background(), "fortnight")
	require.ErrorIs(t, err, ErrUnknownPeriod)
}

func TestLeaderboardRanksStudents(t *testing.T) {
	repo, client, clock := reportFixture(t)
	svc := NewReportService(repo, client, zerolog.Nop(), ReportOptions{Location: time.UTC, Now: clock.Now})

	resp, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, resp.MostLate)
	require.Equal(t, "22A81A0501", resp.MostLate[0].RollNo)

	require.NotEmpty(t, resp.LeastLate)
	require.Equal(t, "22A81A0503", resp.LeastLate[0].RollNo)

	// Only the student quiet for two weeks counts as improved.
	require.Len(t, resp.MostImproved, 1)
	require.Equal(t, "22A81A0502", resp.MostImproved[0].RollNo)
	require.Equal(t, 20, resp.MostImproved[0].Improvement)
}

func TestFinancialSummaryAggregatesFines(t *testing.T) {
	repo, client, clock := reportFixture(t)

	// Mark one fine paid so collection figures are non-zero.
	student := repo.students["22A81A0501"]
	paidAt := clock.Now()
	student.FineHistory = append(student.FineHistory, models.FineEntry{Amount: 5, Date: paidAt, Paid: true, PaidDate: &paidAt})
	repo.students["22A81A0501"] = student

	svc := NewReportService(repo, client, zerolog.Nop(), ReportOptions{Location: time.UTC, Now: clock.Now})

	resp, err := svc.FinancialSummary(context.Background())
	require.NoError(t, err)

	require.Equal(t, 5, resp.TotalCollected)
	require.Equal(t, 5, resp.PendingFines)
	require.Equal(t, 10, resp.ProjectedRevenue)
	require.Equal(t, 50, resp.PaymentRate)
	require.Equal(t, 10, resp.AvgFinePerStudent)
}

func TestReportsWorkWithoutCache(t *testing.T) {
	repo, _, clock := reportFixture(t)
	svc := NewReportService(repo, nil, zerolog.Nop(), ReportOptions{Location: time.UTC, Now: clock.Now})

	resp, err := svc.LateToday(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
}
