package models

import "time"

// ConfigurationType defines supported types for configuration values.
type ConfigurationType string

const (
	ConfigurationTypeString  ConfigurationType = "STRING"
	ConfigurationTypeBoolean ConfigurationType = "BOOLEAN"
	ConfigurationTypeInteger ConfigurationType = "INTEGER"
)

// Configuration keys managed by administrators.
const (
	ConfigKeyAllowedEmailDomains   = "allowed_email_domains"
	ConfigKeySessionExpireMinutes  = "session_expire_minutes"
	ConfigKeyMaxLoginAttempts      = "max_login_attempts"
	ConfigKeyBackupSchedule        = "backup_schedule"
	ConfigKeyRateLimitPerMinute    = "rate_limit_per_minute"
	ConfigKeyExpiryReminderEnabled = "expiry_reminder_enabled"
)

// Configuration represents a persisted configuration entry.
type Configuration struct {
	Key         string            `db:"key" json:"key"`
	Value       string            `db:"value" json:"value"`
	Type        ConfigurationType `db:"type" json:"type"`
	Description *string           `db:"description" json:"description,omitempty"`
	UpdatedBy   *string           `db:"updated_by" json:"updatedBy,omitempty"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updatedAt"`
}
