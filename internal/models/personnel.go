package models

import (
	"strings"
	"time"
)

// UserRole represents the closed set of roles for the RBAC system.
type UserRole string

const (
	RoleAdmin           UserRole = "ADMINISTRATOR"
	RoleVerifier        UserRole = "VERIFIER"
	RoleRegionalOfficer UserRole = "REGIONAL_OFFICER"
	RoleFieldOfficer    UserRole = "FIELD_OFFICER"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleVerifier, RoleRegionalOfficer, RoleFieldOfficer:
		return true
	}
	return false
}

// PersonnelStatus tracks account activation.
type PersonnelStatus string

const (
	PersonnelStatusPending  PersonnelStatus = "PENDING"
	PersonnelStatusActive   PersonnelStatus = "ACTIVE"
	PersonnelStatusInactive PersonnelStatus = "INACTIVE"
)

// Position values accepted by the registration form.
const (
	PositionFieldOfficer    = "petugas"
	PositionVerifier        = "verifikator"
	PositionAdmin           = "admin"
	PositionRegionalOfficer = "kepala"
)

var positionRoles = map[string]UserRole{
	PositionFieldOfficer:    RoleFieldOfficer,
	PositionVerifier:        RoleVerifier,
	PositionAdmin:           RoleAdmin,
	PositionRegionalOfficer: RoleRegionalOfficer,
}

// RoleForPosition maps a registration position to the role granted on activation.
func RoleForPosition(position string) (UserRole, bool) {
	role, ok := positionRoles[strings.ToLower(strings.TrimSpace(position))]
	return role, ok
}

// Positions lists accepted registration positions.
func Positions() []string {
	return []string{PositionFieldOfficer, PositionVerifier, PositionAdmin, PositionRegionalOfficer}
}

// Provinces served by the metrology offices.
var provinces = []string{
	"dki-jakarta",
	"jawa-barat",
	"jawa-tengah",
	"jawa-timur",
	"banten",
	"sumatra-utara",
	"sumatra-barat",
	"bali",
}

// Provinces returns a copy of the supported province codes.
func Provinces() []string {
	out := make([]string, len(provinces))
	copy(out, provinces)
	return out
}

// ValidProvince reports whether code is a supported province.
func ValidProvince(code string) bool {
	for _, p := range provinces {
		if strings.EqualFold(p, code) {
			return true
		}
	}
	return false
}

// RegionAll selects every province in filters.
const RegionAll = "all"

// Personnel represents a metrology officer account stored in the personnel table.
type Personnel struct {
	ID                 string          `db:"id" json:"id"`
	NIP                string          `db:"nip" json:"nip"`
	Email              string          `db:"email" json:"email"`
	PasswordHash       string          `db:"password_hash" json:"-"`
	FullName           string          `db:"full_name" json:"fullName"`
	Position           string          `db:"position" json:"position"`
	Institution        string          `db:"institution" json:"institution"`
	Province           string          `db:"province" json:"province"`
	Phone              string          `db:"phone" json:"phone"`
	Role               UserRole        `db:"role" json:"role"`
	Status             PersonnelStatus `db:"status" json:"status"`
	CertificateRef     *string         `db:"certificate_ref" json:"certificateRef,omitempty"`
	EmailNotifications bool            `db:"email_notifications" json:"emailNotifications"`
	LastLogin          *time.Time      `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updatedAt"`
}

// ListingID implements review.Listing.
func (p Personnel) ListingID() string { return p.NIP }

// ListingName implements review.Listing.
func (p Personnel) ListingName() string { return p.FullName }

// ListingRegion implements review.Listing.
func (p Personnel) ListingRegion() string { return p.Province }

// ListingStatus implements review.Listing.
func (p Personnel) ListingStatus() string { return string(p.Status) }

// PersonnelFilter captures filtering criteria for listing personnel.
type PersonnelFilter struct {
	Role      *UserRole
	Status    *PersonnelStatus
	Province  string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
