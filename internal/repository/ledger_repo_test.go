package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/latemark-go-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.AuditLog{}))
	return db
}

func TestAtomicUpdateCreatesRecordOnFirstSighting(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db)

	student, err := repo.AtomicUpdate(context.Background(), "CSE001", func(s *models.Student, exists bool) error {
		require.False(t, exists)
		s.Name = "Asha"
		s.Year = 2
		s.Semester = 3
		s.Branch = "CSE"
		s.Section = "A"
		s.Status = models.StudentStatusNormal
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "CSE001", student.RollNo)
	require.Equal(t, uint64(1), student.Version)

	loaded, err := repo.Get(context.Background(), "CSE001")
	require.NoError(t, err)
	require.Equal(t, "Asha", loaded.Name)
}

func TestAtomicUpdateCommitsFullRecord(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db)

	seed(t, repo, "CSE002")

	updated, err := repo.AtomicUpdate(context.Background(), "CSE002", func(s *models.Student, exists bool) error {
		require.True(t, exists)
		s.LateDays = 1
		s.ExcuseDaysUsed = 1
		s.Status = models.StudentStatusExcused
		s.LateLogs = append(s.LateLogs, models.LateLog{
			ID:           "log-1",
			Date:         time.Now(),
			MarkedByName: "Prof. Rao",
		})
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2), updated.Version)

	loaded, err := repo.Get(context.Background(), "CSE002")
	require.NoError(t, err)
	require.Equal(t, 1, loaded.LateDays)
	require.Len(t, loaded.LateLogs, 1)
	require.Equal(t, "Prof. Rao", loaded.LateLogs[0].MarkedByName)
}

func TestAtomicUpdateDetectsConcurrentWriter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db)

	seed(t, repo, "CSE003")

	_, err := repo.AtomicUpdate(context.Background(), "CSE003", func(s *models.Student, exists bool) error {
		// A concurrent writer lands between our read and our commit.
		return db.Model(&models.Student{}).
			Where("roll_no = ?", "CSE003").
			Update("version", gorm.Expr("version + 1")).Error
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestAtomicUpdatePropagatesCallbackError(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db)

	seed(t, repo, "CSE004")
	before, err := repo.Get(context.Background(), "CSE004")
	require.NoError(t, err)

	wantErr := context.DeadlineExceeded
	_, err = repo.AtomicUpdate(context.Background(), "CSE004", func(s *models.Student, exists bool) error {
		s.LateDays = 99
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	after, err := repo.Get(context.Background(), "CSE004")
	require.NoError(t, err)
	require.Equal(t, before.LateDays, after.LateDays, "aborted update must not commit")
}

func TestListHelpersFilterAndOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db)

	create := func(rollNo string, lateDays, fines int) {
		_, err := repo.AtomicUpdate(context.Background(), rollNo, func(s *models.Student, exists bool) error {
			s.Name = rollNo
			s.Year = 1
			s.Semester = 1
			s.Branch = "CSE"
			s.Section = "A"
			s.LateDays = lateDays
			s.Fines = fines
			s.Status = models.StudentStatusNormal
			return nil
		})
		require.NoError(t, err)
	}

	create("CSE010", 0, 0)
	create("CSE011", 4, 10)
	create("CSE012", 2, 0)

	active, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "CSE011", active[0].RollNo, "most late first")

	fined, err := repo.ListWithFines(context.Background())
	require.NoError(t, err)
	require.Len(t, fined, 1)

	top, err := repo.TopLate(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, "CSE011", top[0].RollNo)

	all, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func seed(t *testing.T, repo LedgerRepository, rollNo string) {
	t.Helper()
	_, err := repo.AtomicUpdate(context.Background(), rollNo, func(s *models.Student, exists bool) error {
		s.Name = "Seed Student"
		s.Year = 1
		s.Semester = 1
		s.Branch = "CSE"
		s.Section = "A"
		s.Status = models.StudentStatusNormal
		return nil
	})
	require.NoError(t, err)
}
