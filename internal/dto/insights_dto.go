package dto

// StudentRisk scores one student's tardiness risk.
type StudentRisk struct {
	RollNo          string  `json:"roll_no"`
	Name            string  `json:"name"`
	Branch          string  `json:"branch"`
	Year            int     `json:"year"`
	LateDays        int     `json:"late_days"`
	RiskScore       int     `json:"risk_score"`
	RiskCategory    string  `json:"risk_category"`
	RiskProbability float64 `json:"risk_probability"`
}

// DayBreakdown counts late events per weekday.
type DayBreakdown map[string]int

// InsightsResponse is the derived, read-only risk report over the ledger.
type InsightsResponse struct {
	GeneratedAt  string        `json:"generated_at"`
	TotalScored  int           `json:"total_scored"`
	HighRisk     []StudentRisk `json:"high_risk"`
	MediumRisk   []StudentRisk `json:"medium_risk"`
	LowRiskCount int           `json:"low_risk_count"`
	PeakDay      string        `json:"peak_day"`
	DayBreakdown DayBreakdown  `json:"day_breakdown"`
	Narrative    string        `json:"narrative,omitempty"`
}
