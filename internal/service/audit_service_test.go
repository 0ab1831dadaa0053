package service

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/latemark-go-api/internal/dto"
	"github.com/noah-isme/latemark-go-api/internal/models"
	"github.com/noah-isme/latemark-go-api/internal/repository"
)

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (f *fakeAuditRepo) Create(_ context.Context, entry *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry.ID = uint(len(f.entries) + 1)
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) List(_ context.Context, filter repository.AuditLogFilter) ([]models.AuditLog, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []models.AuditLog
	for _, entry := range f.entries {
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.RollNo != "" && entry.TargetRollNo != filter.RollNo {
			continue
		}
		matched = append(matched, entry)
	}

	total := int64(len(matched))
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		if offset > len(matched) {
			offset = len(matched)
		}
		end := offset + filter.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[offset:end]
	}

	return matched, total, nil
}

func TestAuditRecordSanitizesFreeText(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, zerolog.Nop())

	err := svc.Record(context.Background(), AuditEntry{
		Action:       models.AuditActionStudentMarkedLate,
		Actor:        Actor{ID: "fac-1", Name: "<script>alert(1)</script>Prof. Iyer", Role: "faculty"},
		Meta:         RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test-agent"},
		TargetRollNo: "22A81A0501",
		TargetName:   "Ananya <b>Rao</b>",
		TargetBranch: "CSE",
		Details: map[string]interface{}{
			"late_days": 1,
			"notes":     "<img src=x onerror=alert(1)>came in at 9:20",
		},
		Reason: "gate <i>photo</i> attached",
	})
	require.NoError(t, err)
	require.Len(t, repo.entries, 1)

	entry := repo.entries[0]
	require.Equal(t, "Prof. Iyer", entry.ActorName)
	require.Equal(t, "Ananya Rao", entry.TargetName)
	require.Equal(t, "gate photo attached", entry.Reason)
	require.Equal(t, "came in at 9:20", entry.Details["notes"])
	require.Equal(t, 1, entry.Details["late_days"])
	require.Equal(t, "10.0.0.1", entry.IPAddress)
}

func TestAuditListPaginatesAndFilters(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, zerolog.Nop())

	for i := 0; i < 25; i++ {
		action := models.AuditActionStudentMarkedLate
		if i%5 == 0 {
			action = models.AuditActionLateRecordRemoved
		}
		require.NoError(t, svc.Record(context.Background(), AuditEntry{
			Action:       action,
			Actor:        Actor{ID: "fac-1"},
			TargetRollNo: "22A81A0501",
		}))
	}

	resp, err := svc.List(context.Background(), dto.AuditListRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, resp.Items, 10)
	require.Equal(t, int64(25), resp.Pagination.TotalItems)
	require.Equal(t, 3, resp.Pagination.TotalPages)

	resp, err = svc.List(context.Background(), dto.AuditListRequest{Action: models.AuditActionLateRecordRemoved})
	require.NoError(t, err)
	require.Len(t, resp.Items, 5)

	resp, err = svc.List(context.Background(), dto.AuditListRequest{RollNo: "22A81A0999"})
	require.NoError(t, err)
	require.Empty(t, resp.Items)
	require.Equal(t, int64(0), resp.Pagination.TotalItems)
}

func TestAuditListDefaultsPageSize(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, zerolog.Nop())

	resp, err := svc.List(context.Background(), dto.AuditListRequest{Page: -3, PageSize: 1000})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Pagination.Page)
	require.Equal(t, 100, resp.Pagination.PageSize)
}
