package dto

import "time"

// StudentSummary is the condensed ledger view used by reports.
type StudentSummary struct {
	RollNo       string `json:"roll_no"`
	Name         string `json:"name"`
	Year         int    `json:"year"`
	Branch       string `json:"branch"`
	Section      string `json:"section"`
	LateDays     int    `json:"late_days"`
	Fines        int    `json:"fines"`
	Status       string `json:"status"`
	AlertFaculty bool   `json:"alert_faculty"`
}

// LateTodayResponse lists students marked late on the current institution day.
type LateTodayResponse struct {
	Date     string           `json:"date"`
	Count    int              `json:"count"`
	Students []StudentSummary `json:"students"`
}

// PeriodRecordsResponse lists students with late events inside a period.
type PeriodRecordsResponse struct {
	Period    string          `json:"period"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	Students  []PeriodStudent `json:"students"`
}

// PeriodStudent is a student summary plus their in-period late count.
type PeriodStudent struct {
	StudentSummary
	LateCountInPeriod int `json:"late_count_in_period"`
}

// LeaderboardResponse ranks students by tardiness.
type LeaderboardResponse struct {
	MostLate     []StudentSummary `json:"most_late"`
	LeastLate    []StudentSummary `json:"least_late"`
	MostImproved []ImprovedEntry  `json:"most_improved"`
}

// ImprovedEntry marks a previously-late student with no recent events.
type ImprovedEntry struct {
	StudentSummary
	Improvement int `json:"improvement"`
}

// FinancialSummaryResponse aggregates fine collection figures.
type FinancialSummaryResponse struct {
	TotalCollected    int `json:"total_collected"`
	PendingFines      int `json:"pending_fines"`
	ProjectedRevenue  int `json:"projected_revenue"`
	PaymentRate       int `json:"payment_rate"`
	AvgFinePerStudent int `json:"avg_fine_per_student"`
}
