package domain

import "time"

// Progress is a snapshot of a pipeline run, served on /progress.
type Progress struct {
	RunID         string    `json:"run_id"`
	Variable      string    `json:"variable"`
	FirstYear     int       `json:"first_year"`
	LastYear      int       `json:"last_year"`
	CompletedYear int       `json:"completed_year,omitempty"`
	YearsDone     int       `json:"years_done"`
	YearsTotal    int       `json:"years_total"`
	CalendarReady bool      `json:"calendar_ready"`
	NoDataPixels  int       `json:"nodata_pixels"`
	CarryPixels   int       `json:"carry_pixels"`
	Done          bool      `json:"done"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
