package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/latemark-go-api/internal/models"
)

func TestAuditLogRepositoryCreateAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditLogRepository(db)

	entries := []models.AuditLog{
		{Action: models.AuditActionStudentMarkedLate, TargetRollNo: "CSE001", ActorName: "Prof. Rao", Details: datatypes.JSONMap{"late_days": 1}},
		{Action: models.AuditActionFineApplied, TargetRollNo: "CSE001", ActorName: "Prof. Rao"},
		{Action: models.AuditActionStudentMarkedLate, TargetRollNo: "ECE042", ActorName: "Prof. Iyer"},
	}
	for i := range entries {
		require.NoError(t, repo.Create(context.Background(), &entries[i]))
	}

	all, total, err := repo.List(context.Background(), AuditLogFilter{PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, all, 3)

	marked, total, err := repo.List(context.Background(), AuditLogFilter{Action: models.AuditActionStudentMarkedLate, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, marked, 2)

	byStudent, total, err := repo.List(context.Background(), AuditLogFilter{RollNo: "ECE042", PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Prof. Iyer", byStudent[0].ActorName)
}
