package dto

import "time"

// Feed event types pushed to connected faculty dashboards.
const (
	FeedEventMarkedLate = "marked_late"
	FeedEventLateUndone = "late_undone"
	FeedEventFinePaid   = "fine_paid"
)

// LedgerEvent is broadcast on every committed ledger mutation.
type LedgerEvent struct {
	Type         string    `json:"type"`
	RollNo       string    `json:"roll_no"`
	Name         string    `json:"name"`
	LateDays     int       `json:"late_days"`
	Fines        int       `json:"fines"`
	Status       string    `json:"status"`
	AlertFaculty bool      `json:"alert_faculty"`
	ActorName    string    `json:"actor_name"`
	At           time.Time `json:"at"`
}
