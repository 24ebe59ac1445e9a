package models

import "time"

// AlertFrequency controls how often an expiry rule runs.
type AlertFrequency string

const (
	AlertDaily  AlertFrequency = "DAILY"
	AlertWeekly AlertFrequency = "WEEKLY"
)

// Interval returns the minimum gap between runs.
func (f AlertFrequency) Interval() time.Duration {
	if f == AlertWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// Valid reports whether f is supported.
func (f AlertFrequency) Valid() bool {
	return f == AlertDaily || f == AlertWeekly
}

// AlertRule schedules expiry reminders for a region.
type AlertRule struct {
	ID               string         `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	DaysBeforeExpiry int            `db:"days_before_expiry" json:"daysBeforeExpiry"`
	Region           string         `db:"region" json:"region"`
	Frequency        AlertFrequency `db:"frequency" json:"frequency"`
	Active           bool           `db:"active" json:"active"`
	CreatedBy        *string        `db:"created_by" json:"createdBy,omitempty"`
	LastRunAt        *time.Time     `db:"last_run_at" json:"lastRunAt,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

// Due reports whether the rule should run at now.
func (r AlertRule) Due(now time.Time) bool {
	if !r.Active {
		return false
	}
	if r.LastRunAt == nil {
		return true
	}
	return !now.Before(r.LastRunAt.Add(r.Frequency.Interval()))
}
