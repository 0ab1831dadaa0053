package dto

import (
	"time"

	"github.com/noah-isme/latemark-go-api/internal/models"
)

// MarkLateRequest is the payload for marking a student late. Registration
// fields are mandatory only on a roll number's first sighting.
type MarkLateRequest struct {
	RollNo       string `json:"roll_no" validate:"required,min=1,max=32"`
	Name         string `json:"name" validate:"omitempty,min=1,max=255"`
	Year         int    `json:"year" validate:"omitempty,min=1,max=4"`
	Semester     int    `json:"semester" validate:"omitempty,min=1,max=8"`
	Branch       string `json:"branch" validate:"omitempty,min=2,max=8"`
	Section      string `json:"section" validate:"omitempty,min=1,max=16"`
	RegisterOnly bool   `json:"register_only"`
	PhotoURL     string `json:"photo_url" validate:"omitempty,url"`
	Notes        string `json:"notes" validate:"omitempty,max=1024"`
}

// PayFineRequest records a fine payment against a student.
type PayFineRequest struct {
	RollNo string `json:"roll_no" validate:"required,min=1,max=32"`
	Amount int    `json:"amount" validate:"required,gt=0"`
}

// LateLogEntry serializes one accepted late event.
type LateLogEntry struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	MarkedBy      string    `json:"marked_by"`
	MarkedByName  string    `json:"marked_by_name"`
	MarkedByEmail string    `json:"marked_by_email"`
	PhotoURL      string    `json:"photo_url,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// FineHistoryEntry serializes one fine or payment row.
type FineHistoryEntry struct {
	Amount   int        `json:"amount"`
	Date     time.Time  `json:"date"`
	Reason   string     `json:"reason"`
	Paid     bool       `json:"paid"`
	PaidDate *time.Time `json:"paid_date,omitempty"`
}

// StudentResponse is the full ledger record for a student.
type StudentResponse struct {
	RollNo              string             `json:"roll_no"`
	Name                string             `json:"name"`
	Year                int                `json:"year"`
	Semester            int                `json:"semester"`
	Branch              string             `json:"branch"`
	Section             string             `json:"section"`
	LateDays            int                `json:"late_days"`
	ExcuseDaysUsed      int                `json:"excuse_days_used"`
	Fines               int                `json:"fines"`
	ConsecutiveLateDays int                `json:"consecutive_late_days"`
	Status              string             `json:"status"`
	AlertFaculty        bool               `json:"alert_faculty"`
	LateLogs            []LateLogEntry     `json:"late_logs"`
	FineHistory         []FineHistoryEntry `json:"fine_history"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// MarkLateResponse is returned after a late event is accepted (or after a
// register-only provisioning call).
type MarkLateResponse struct {
	Student             StudentResponse `json:"student"`
	Message             string          `json:"message"`
	Classification      string          `json:"classification,omitempty"`
	FineAmount          int             `json:"fine_amount"`
	TotalFines          int             `json:"total_fines"`
	ExcuseDaysRemaining int             `json:"excuse_days_remaining"`
	Registered          bool            `json:"registered"`
}

// DuplicateEventInfo explains why a mark was rejected and whether the
// original entry can still be undone.
type DuplicateEventInfo struct {
	RollNo        string    `json:"roll_no"`
	Name          string    `json:"name"`
	MarkedByName  string    `json:"marked_by_name"`
	MarkedByEmail string    `json:"marked_by_email"`
	MarkedAt      time.Time `json:"marked_at"`
	StillUndoable bool      `json:"still_undoable"`
}

// UndoLateResponse summarises a reversed late event.
type UndoLateResponse struct {
	RollNo         string  `json:"roll_no"`
	Name           string  `json:"name"`
	LateDays       int     `json:"late_days"`
	Fines          int     `json:"fines"`
	Status         string  `json:"status"`
	UndoneBy       string  `json:"undone_by"`
	ElapsedMinutes float64 `json:"elapsed_minutes"`
}

// WindowExpiredInfo reports an undo attempt outside the edit window.
type WindowExpiredInfo struct {
	RollNo         string    `json:"roll_no"`
	MarkedByName   string    `json:"marked_by_name"`
	MarkedAt       time.Time `json:"marked_at"`
	ElapsedMinutes float64   `json:"elapsed_minutes"`
	WindowMinutes  float64   `json:"window_minutes"`
}

// PayFineResponse summarises a processed fine payment.
type PayFineResponse struct {
	RollNo         string `json:"roll_no"`
	Name           string `json:"name"`
	PreviousFines  int    `json:"previous_fines"`
	PaidAmount     int    `json:"paid_amount"`
	RemainingFines int    `json:"remaining_fines"`
	Status         string `json:"status"`
}

// NewStudentResponse converts a student model into its DTO.
func NewStudentResponse(student models.Student) StudentResponse {
	logs := make([]LateLogEntry, 0, len(student.LateLogs))
	for _, log := range student.LateLogs {
		logs = append(logs, LateLogEntry{
			ID:            log.ID,
			Date:          log.Date,
			MarkedBy:      log.MarkedBy,
			MarkedByName:  log.MarkedByName,
			MarkedByEmail: log.MarkedByEmail,
			PhotoURL:      log.PhotoURL,
			Notes:         log.Notes,
		})
	}

	history := make([]FineHistoryEntry, 0, len(student.FineHistory))
	for _, entry := range student.FineHistory {
		history = append(history, FineHistoryEntry{
			Amount:   entry.Amount,
			Date:     entry.Date,
			Reason:   entry.Reason,
			Paid:     entry.Paid,
			PaidDate: entry.PaidDate,
		})
	}

	return StudentResponse{
		RollNo:              student.RollNo,
		Name:                student.Name,
		Year:                student.Year,
		Semester:            student.Semester,
		Branch:              student.Branch,
		Section:             student.Section,
		LateDays:            student.LateDays,
		ExcuseDaysUsed:      student.ExcuseDaysUsed,
		Fines:               student.Fines,
		ConsecutiveLateDays: student.ConsecutiveLateDays,
		Status:              student.Status,
		AlertFaculty:        student.AlertFaculty,
		LateLogs:            logs,
		FineHistory:         history,
		CreatedAt:           student.CreatedAt,
		UpdatedAt:           student.UpdatedAt,
	}
}
