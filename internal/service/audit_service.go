package service

import (
	"context"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/latemark-go-api/internal/dto"
	"github.com/noah-isme/latemark-go-api/internal/models"
	"github.com/noah-isme/latemark-go-api/internal/repository"
)

// AuditEntry is one ledger mutation to be appended to the audit trail.
type AuditEntry struct {
	Action       string
	Actor        Actor
	Meta         RequestMeta
	TargetRollNo string
	TargetName   string
	TargetBranch string
	Details      map[string]interface{}
	Reason       string
}

// AuditService appends to and reads the immutable audit trail.
type AuditService interface {
	Record(ctx context.Context, entry AuditEntry) error
	List(ctx context.Context, req dto.AuditListRequest) (dto.AuditListResponse, error)
}

type auditService struct {
	repo      repository.AuditLogRepository
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewAuditService constructs the audit service.
func NewAuditService(repo repository.AuditLogRepository, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:      repo,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "audit_service").Logger(),
	}
}

// Record appends a single audit entry. Free-text fields are sanitized before
// persistence since they end up rendered in admin dashboards.
func (s *auditService) Record(ctx context.Context, entry AuditEntry) error {
	details := datatypes.JSONMap{}
	for key, value := range entry.Details {
		if str, ok := value.(string); ok {
			details[key] = s.sanitizer.Sanitize(str)
			continue
		}
		details[key] = value
	}

	record := models.AuditLog{
		Action:       entry.Action,
		ActorID:      entry.Actor.ID,
		ActorName:    s.sanitizer.Sanitize(entry.Actor.Name),
		ActorEmail:   entry.Actor.Email,
		ActorRole:    entry.Actor.Role,
		TargetRollNo: entry.TargetRollNo,
		TargetName:   s.sanitizer.Sanitize(entry.TargetName),
		TargetBranch: entry.TargetBranch,
		Details:      details,
		Reason:       s.sanitizer.Sanitize(entry.Reason),
		IPAddress:    entry.Meta.IPAddress,
		UserAgent:    entry.Meta.UserAgent,
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	s.logger.Debug().
		Str("action", entry.Action).
		Str("roll_no", entry.TargetRollNo).
		Msg("audit entry recorded")

	return nil
}

func (s *auditService) List(ctx context.Context, req dto.AuditListRequest) (dto.AuditListResponse, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	entries, total, err := s.repo.List(ctx, repository.AuditLogFilter{
		Page:     page,
		PageSize: pageSize,
		Action:   req.Action,
		RollNo:   req.RollNo,
	})
	if err != nil {
		return dto.AuditListResponse{}, fmt.Errorf("list audit entries: %w", err)
	}

	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewAuditEntryResponse(entry))
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize != 0 {
		totalPages++
	}

	return dto.AuditListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
		},
	}, nil
}
