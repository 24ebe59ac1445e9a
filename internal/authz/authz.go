// Package authz maps each role to the actions it may perform.
package authz

import (
	"sort"

	"github.com/noah-isme/supermen-api/internal/models"
)

// Action names a permission checked by handlers and middleware.
type Action string

const (
	ActionCertificationSubmit     Action = "certification:submit"
	ActionCertificationViewOwn    Action = "certification:view:own"
	ActionCertificationViewRegion Action = "certification:view:region"
	ActionCertificationViewAll    Action = "certification:view:all"
	ActionCertificationReview     Action = "certification:review"
	ActionCertificationDelete     Action = "certification:delete"
	ActionPersonnelManage         Action = "personnel:manage"
	ActionPersonnelViewRegion     Action = "personnel:view:region"
	ActionConfigurationManage     Action = "configuration:manage"
	ActionAuditView               Action = "audit:view"
	ActionAlertManage             Action = "alert:manage"
	ActionReportExport            Action = "report:export"
	ActionDashboardView           Action = "dashboard:view"
	ActionNotificationRead        Action = "notification:read"
	ActionDocumentUpload          Action = "document:upload"
)

var table = map[models.UserRole][]Action{
	models.RoleFieldOfficer: {
		ActionCertificationSubmit,
		ActionCertificationViewOwn,
		ActionCertificationDelete,
		ActionDashboardView,
		ActionNotificationRead,
		ActionDocumentUpload,
	},
	models.RoleRegionalOfficer: {
		ActionCertificationSubmit,
		ActionCertificationViewOwn,
		ActionCertificationViewRegion,
		ActionCertificationDelete,
		ActionPersonnelViewRegion,
		ActionReportExport,
		ActionDashboardView,
		ActionNotificationRead,
		ActionDocumentUpload,
	},
	models.RoleVerifier: {
		ActionCertificationViewAll,
		ActionCertificationReview,
		ActionAuditView,
		ActionAlertManage,
		ActionReportExport,
		ActionDashboardView,
		ActionNotificationRead,
		ActionDocumentUpload,
	},
	models.RoleAdmin: {
		ActionCertificationViewAll,
		ActionCertificationDelete,
		ActionPersonnelManage,
		ActionPersonnelViewRegion,
		ActionConfigurationManage,
		ActionAuditView,
		ActionAlertManage,
		ActionReportExport,
		ActionDashboardView,
		ActionNotificationRead,
		ActionDocumentUpload,
	},
}

var lookup = func() map[models.UserRole]map[Action]struct{} {
	out := make(map[models.UserRole]map[Action]struct{}, len(table))
	for role, actions := range table {
		set := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			set[a] = struct{}{}
		}
		out[role] = set
	}
	return out
}()

// Allows reports whether role may perform action. Unknown roles get nothing.
func Allows(role models.UserRole, action Action) bool {
	_, ok := lookup[role][action]
	return ok
}

// Actions lists the permissions of role in a stable order.
func Actions(role models.UserRole) []Action {
	actions := append([]Action(nil), table[role]...)
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// CertificationScope returns the listing scope a caller may see. ok is false when the
// role may not list certifications at all.
func CertificationScope(claims *models.JWTClaims) (scope models.CertificationScope, ok bool) {
	if claims == nil {
		return scope, false
	}
	switch {
	case Allows(claims.Role, ActionCertificationViewAll):
		return scope, true
	case Allows(claims.Role, ActionCertificationViewRegion):
		scope.Region = claims.Region
		return scope, true
	case Allows(claims.Role, ActionCertificationViewOwn):
		scope.OwnerNIP = claims.NIP
		return scope, true
	}
	return scope, false
}

// CanViewCertification decides single-record access for claims.
func CanViewCertification(claims *models.JWTClaims, record models.CertificationRecord) bool {
	scope, ok := CertificationScope(claims)
	if !ok {
		return false
	}
	if scope.OwnerNIP != "" && record.OwnerNIP != scope.OwnerNIP {
		return false
	}
	if scope.Region != "" && record.Region != scope.Region {
		return record.OwnerNIP == claims.NIP
	}
	return true
}
