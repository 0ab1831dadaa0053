package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/latemark-go-api/internal/models"
)

// ErrConflict indicates a concurrent writer committed between the read and
// the conditional write. Callers retry the whole read-modify-write.
var ErrConflict = errors.New("ledger record modified concurrently")

// LedgerRepository is the durable keyed store for student ledger records.
// AtomicUpdate is the only mutation path; it guarantees one conditional row
// write per logical mutation.
type LedgerRepository interface {
	Get(ctx context.Context, rollNo string) (models.Student, error)
	AtomicUpdate(ctx context.Context, rollNo string, fn func(student *models.Student, exists bool) error) (models.Student, error)
	ListActive(ctx context.Context) ([]models.Student, error)
	ListWithFines(ctx context.Context) ([]models.Student, error)
	TopLate(ctx context.Context, limit int) ([]models.Student, error)
	ListAll(ctx context.Context) ([]models.Student, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository constructs a ledger repository backed by gorm.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Get(ctx context.Context, rollNo string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, "roll_no = ?", rollNo).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

// AtomicUpdate loads the record for rollNo (a zero record when absent),
// applies fn and commits with an optimistic version check. A version
// mismatch, or a duplicate insert racing the create path, surfaces as
// ErrConflict so the service can retry against fresh state.
func (r *ledgerRepository) AtomicUpdate(ctx context.Context, rollNo string, fn func(student *models.Student, exists bool) error) (models.Student, error) {
	var student models.Student
	exists := true

	err := r.db.WithContext(ctx).First(&student, "roll_no = ?", rollNo).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		exists = false
		student = models.Student{RollNo: rollNo}
	case err != nil:
		return models.Student{}, fmt.Errorf("load ledger record: %w", err)
	}

	readVersion := student.Version

	if err := fn(&student, exists); err != nil {
		return models.Student{}, err
	}

	student.RollNo = rollNo
	student.Version = readVersion + 1

	if !exists {
		if err := r.db.WithContext(ctx).Create(&student).Error; err != nil {
			if isUniqueViolation(err) {
				return models.Student{}, ErrConflict
			}
			return models.Student{}, fmt.Errorf("create ledger record: %w", err)
		}
		return student, nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.Student{}).
		Where("roll_no = ? AND version = ?", rollNo, readVersion).
		Select("*").
		Omit("roll_no", "created_at").
		Updates(&student)
	if result.Error != nil {
		return models.Student{}, fmt.Errorf("commit ledger record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.Student{}, ErrConflict
	}

	return student, nil
}

func (r *ledgerRepository) ListActive(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	err := r.db.WithContext(ctx).
		Where("late_days > 0").
		Order("late_days DESC, roll_no ASC").
		Find(&students).Error
	return students, err
}

func (r *ledgerRepository) ListWithFines(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	err := r.db.WithContext(ctx).
		Where("fines > 0").
		Order("fines DESC, roll_no ASC").
		Find(&students).Error
	return students, err
}

func (r *ledgerRepository) TopLate(ctx context.Context, limit int) ([]models.Student, error) {
	if limit <= 0 {
		limit = 10
	}

	var students []models.Student
	err := r.db.WithContext(ctx).
		Where("late_days > 0").
		Order("late_days DESC, roll_no ASC").
		Limit(limit).
		Find(&students).Error
	return students, err
}

func (r *ledgerRepository) ListAll(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	err := r.db.WithContext(ctx).Order("roll_no ASC").Find(&students).Error
	return students, err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Driver-specific duplicate key errors that gorm does not translate.
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
