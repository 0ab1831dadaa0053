package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions recorded by the ledger. The set is closed; reporting relies
// on exact matches.
const (
	AuditActionStudentMarkedLate = "STUDENT_MARKED_LATE"
	AuditActionLateRecordRemoved = "LATE_RECORD_REMOVED"
	AuditActionStudentCreated    = "STUDENT_CREATED"
	AuditActionFineApplied       = "FINE_APPLIED"
	AuditActionFinePaid          = "FINE_PAID"
)

// AuditLog is an immutable record of a ledger mutation. Entries are created
// once and never updated or deleted by ledger operations.
type AuditLog struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	Action       string            `gorm:"size:64;not null;index" json:"action"`
	ActorID      string            `gorm:"size:64" json:"actor_id"`
	ActorName    string            `gorm:"size:255" json:"actor_name"`
	ActorEmail   string            `gorm:"size:255" json:"actor_email"`
	ActorRole    string            `gorm:"size:32" json:"actor_role"`
	TargetRollNo string            `gorm:"size:32;index" json:"target_roll_no"`
	TargetName   string            `gorm:"size:255" json:"target_name"`
	TargetBranch string            `gorm:"size:8" json:"target_branch"`
	Details      datatypes.JSONMap `gorm:"type:json" json:"details"`
	Reason       string            `gorm:"size:1024" json:"reason"`
	IPAddress    string            `gorm:"size:64" json:"ip_address"`
	UserAgent    string            `gorm:"size:512" json:"user_agent"`
	CreatedAt    time.Time         `gorm:"index" json:"created_at"`
}
