package dto

import (
	"time"

	"github.com/noah-isme/latemark-go-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// AuditListRequest defines filters for listing audit entries.
type AuditListRequest struct {
	Page     int
	PageSize int
	Action   string
	RollNo   string
}

// AuditEntryResponse serializes a single audit trail entry.
type AuditEntryResponse struct {
	ID           uint                   `json:"id"`
	Action       string                 `json:"action"`
	ActorID      string                 `json:"actor_id"`
	ActorName    string                 `json:"actor_name"`
	ActorEmail   string                 `json:"actor_email"`
	ActorRole    string                 `json:"actor_role"`
	TargetRollNo string                 `json:"target_roll_no"`
	TargetName   string                 `json:"target_name"`
	TargetBranch string                 `json:"target_branch"`
	Details      map[string]interface{} `json:"details"`
	Reason       string                 `json:"reason,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// AuditListResponse wraps a paginated audit trail page.
type AuditListResponse struct {
	Items      []AuditEntryResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// NewAuditEntryResponse converts an audit model into its DTO.
func NewAuditEntryResponse(entry models.AuditLog) AuditEntryResponse {
	details := map[string]interface{}{}
	for key, value := range entry.Details {
		details[key] = value
	}

	return AuditEntryResponse{
		ID:           entry.ID,
		Action:       entry.Action,
		ActorID:      entry.ActorID,
		ActorName:    entry.ActorName,
		ActorEmail:   entry.ActorEmail,
		ActorRole:    entry.ActorRole,
		TargetRollNo: entry.TargetRollNo,
		TargetName:   entry.TargetName,
		TargetBranch: entry.TargetBranch,
		Details:      details,
		Reason:       entry.Reason,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		CreatedAt:    entry.CreatedAt,
	}
}
