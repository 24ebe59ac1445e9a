package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin                = "LOGIN"
	AuditActionLoginFailed          = "LOGIN_FAILED"
	AuditActionLogout               = "LOGOUT"
	AuditActionPasswordChange       = "PASSWORD_CHANGE"
	AuditActionPasswordReset        = "PASSWORD_RESET"
	AuditActionRegistrationSubmit   = "REGISTRATION_SUBMIT"
	AuditActionPersonnelCreate      = "PERSONNEL_CREATE"
	AuditActionPersonnelUpdate      = "PERSONNEL_UPDATE"
	AuditActionPersonnelActivate    = "PERSONNEL_ACTIVATE"
	AuditActionPersonnelDeactivate  = "PERSONNEL_DEACTIVATE"
	AuditActionPersonnelDelete      = "PERSONNEL_DELETE"
	AuditActionCertificationSubmit  = "CERTIFICATION_SUBMIT"
	AuditActionCertificationApprove = "CERTIFICATION_APPROVE"
	AuditActionCertificationReject  = "CERTIFICATION_REJECT"
	AuditActionCertificationDelete  = "CERTIFICATION_DELETE"
	AuditActionConfigurationUpdate  = "CONFIGURATION_UPDATE"
	AuditActionAlertRuleChange      = "ALERT_RULE_CHANGE"
	AuditActionBroadcast            = "BROADCAST"
	AuditActionDocumentUpload       = "DOCUMENT_UPLOAD"
	AuditActionDocumentDownload     = "DOCUMENT_DOWNLOAD"
	AuditActionReportExport         = "REPORT_EXPORT"
)

// AuditLog represents an append-only audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actorId,omitempty"`
	ActorNIP   string    `db:"actor_nip" json:"actorNip"`
	ActorRole  string    `db:"actor_role" json:"actorRole"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	OldValues  []byte    `db:"old_values" json:"oldValues,omitempty"`
	NewValues  []byte    `db:"new_values" json:"newValues,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	UserAgent  string    `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// AuditFilter narrows audit listing.
type AuditFilter struct {
	ActorNIP string
	Action   string
	Resource string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
