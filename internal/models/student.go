package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Student statuses derived from accumulated late days. Graduated is set by
// administrative promotion, never by the ledger itself.
const (
	StudentStatusNormal    = "normal"
	StudentStatusExcused   = "excused"
	StudentStatusFined     = "fined"
	StudentStatusGraduated = "graduated"
)

// Branches recognised by the institution.
var validBranches = map[string]struct{}{
	"CSE": {}, "CSM": {}, "CSD": {}, "CSC": {},
	"ECE": {}, "EEE": {}, "MECH": {}, "CIVIL": {}, "IT": {},
}

// IsValidBranch reports whether the branch code is one of the fixed set.
func IsValidBranch(branch string) bool {
	_, ok := validBranches[strings.ToUpper(strings.TrimSpace(branch))]
	return ok
}

// BranchCodes returns the accepted branch codes for error messages.
func BranchCodes() []string {
	return []string{"CSE", "CSM", "CSD", "CSC", "ECE", "EEE", "MECH", "CIVIL", "IT"}
}

// LateLog is one accepted late event. Entries are append-only; undo removes
// at most one entry, located by its ID rather than by position.
type LateLog struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	MarkedBy      string    `json:"marked_by"`
	MarkedByName  string    `json:"marked_by_name"`
	MarkedByEmail string    `json:"marked_by_email"`
	PhotoURL      string    `json:"photo_url,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// FineEntry is one row of a student's fine history. Negative amounts record
// payments.
type FineEntry struct {
	Amount   int        `json:"amount"`
	Date     time.Time  `json:"date"`
	Reason   string     `json:"reason"`
	Paid     bool       `json:"paid"`
	PaidDate *time.Time `json:"paid_date,omitempty"`
}

// Student is the per-roll-number ledger record. Late logs and fine history
// live in JSON columns on the same row so every logical mutation commits as a
// single conditional row update guarded by Version.
type Student struct {
	RollNo              string                           `gorm:"primaryKey;size:32" json:"roll_no"`
	Name                string                           `gorm:"size:255;not null" json:"name"`
	Year                int                              `gorm:"not null" json:"year"`
	Semester            int                              `gorm:"not null" json:"semester"`
	Branch              string                           `gorm:"size:8;not null;index" json:"branch"`
	Section             string                           `gorm:"size:16;not null" json:"section"`
	LateDays            int                              `gorm:"not null;default:0;index" json:"late_days"`
	ExcuseDaysUsed      int                              `gorm:"not null;default:0" json:"excuse_days_used"`
	Fines               int                              `gorm:"not null;default:0;index" json:"fines"`
	ConsecutiveLateDays int                              `gorm:"not null;default:0" json:"consecutive_late_days"`
	Status              string                           `gorm:"size:16;not null;default:normal;index" json:"status"`
	AlertFaculty        bool                             `gorm:"not null;default:false" json:"alert_faculty"`
	LateLogs            datatypes.JSONSlice[LateLog]     `gorm:"type:json" json:"late_logs"`
	FineHistory         datatypes.JSONSlice[FineEntry]   `gorm:"type:json" json:"fine_history"`
	Version             uint64                           `gorm:"not null;default:0" json:"-"`
	CreatedAt           time.Time                        `json:"created_at"`
	UpdatedAt           time.Time                        `json:"updated_at"`
}

// LogOn returns the late log recorded within [dayStart, dayEnd), if any.
func (s *Student) LogOn(dayStart, dayEnd time.Time) *LateLog {
	for i := range s.LateLogs {
		if !s.LateLogs[i].Date.Before(dayStart) && s.LateLogs[i].Date.Before(dayEnd) {
			return &s.LateLogs[i]
		}
	}
	return nil
}

// RemoveLog deletes the late log with the given ID and reports whether an
// entry was removed.
func (s *Student) RemoveLog(id string) bool {
	for i := range s.LateLogs {
		if s.LateLogs[i].ID == id {
			s.LateLogs = append(s.LateLogs[:i], s.LateLogs[i+1:]...)
			return true
		}
	}
	return false
}

// DefaultSemester maps a year to its first semester.
func DefaultSemester(year int) int {
	return year*2 - 1
}
