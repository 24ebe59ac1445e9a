package models

import "time"

// CertificationType enumerates the recognised competency certificates.
type CertificationType string

const (
	CertificationScaleCalibration      CertificationType = "kalibrasi-timbangan"
	CertificationMeterVerification     CertificationType = "verifikasi-meteran"
	CertificationInstrumentCalibration CertificationType = "kalibrasi-alat-ukur"
	CertificationUTTPVerification      CertificationType = "verifikasi-uttp"
)

var certificationLabels = map[CertificationType]string{
	CertificationScaleCalibration:      "Kalibrasi Timbangan",
	CertificationMeterVerification:     "Verifikasi Meteran",
	CertificationInstrumentCalibration: "Kalibrasi Alat Ukur",
	CertificationUTTPVerification:      "Verifikasi UTTP",
}

// Valid reports whether t is a known certification type.
func (t CertificationType) Valid() bool {
	_, ok := certificationLabels[t]
	return ok
}

// Label returns the display name.
func (t CertificationType) Label() string {
	if label, ok := certificationLabels[t]; ok {
		return label
	}
	return string(t)
}

// CertificationStatus captures the verification lifecycle.
type CertificationStatus string

const (
	CertificationPending  CertificationStatus = "PENDING"
	CertificationVerified CertificationStatus = "VERIFIED"
	CertificationRejected CertificationStatus = "REJECTED"
)

// Valid reports whether s is a persisted status.
func (s CertificationStatus) Valid() bool {
	switch s {
	case CertificationPending, CertificationVerified, CertificationRejected:
		return true
	}
	return false
}

// CertificationRecord is one submitted certificate awaiting or past verification.
// OwnerID, OwnerName and Region are joined from personnel.
type CertificationRecord struct {
	ID                string              `db:"id" json:"id"`
	OwnerNIP          string              `db:"owner_nip" json:"ownerNip"`
	OwnerID           string              `db:"owner_id" json:"ownerId"`
	OwnerName         string              `db:"owner_name" json:"ownerName"`
	Region            string              `db:"region" json:"region"`
	CertificationType CertificationType   `db:"certification_type" json:"certificationType"`
	IssueDate         time.Time           `db:"issue_date" json:"issueDate"`
	ExpiryDate        time.Time           `db:"expiry_date" json:"expiryDate"`
	DocumentRef       string              `db:"document_ref" json:"documentRef"`
	Status            CertificationStatus `db:"status" json:"status"`
	VerifiedBy        *string             `db:"verified_by" json:"verifiedBy,omitempty"`
	VerifiedAt        *time.Time          `db:"verified_at" json:"verifiedAt,omitempty"`
	RejectionReason   *string             `db:"rejection_reason" json:"rejectionReason,omitempty"`
	SubmittedBy       *string             `db:"submitted_by" json:"submittedBy,omitempty"`
	CreatedAt         time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time           `db:"updated_at" json:"updatedAt"`
}

// IsExpired reports whether a verified certificate has lapsed as of now.
func (r CertificationRecord) IsExpired(now time.Time) bool {
	if r.Status != CertificationVerified {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	expiry := time.Date(r.ExpiryDate.Year(), r.ExpiryDate.Month(), r.ExpiryDate.Day(), 0, 0, 0, 0, time.UTC)
	return expiry.Before(today)
}

// DaysUntilExpiry counts whole days from now to the expiry date.
func (r CertificationRecord) DaysUntilExpiry(now time.Time) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	expiry := time.Date(r.ExpiryDate.Year(), r.ExpiryDate.Month(), r.ExpiryDate.Day(), 0, 0, 0, 0, time.UTC)
	return int(expiry.Sub(today).Hours() / 24)
}

// ListingID implements review.Listing.
func (r CertificationRecord) ListingID() string { return r.OwnerNIP }

// ListingName implements review.Listing.
func (r CertificationRecord) ListingName() string { return r.OwnerName }

// ListingRegion implements review.Listing.
func (r CertificationRecord) ListingRegion() string { return r.Region }

// ListingStatus implements review.Listing.
func (r CertificationRecord) ListingStatus() string { return string(r.Status) }

// CertificationScope narrows SQL listing to what the caller may see.
type CertificationScope struct {
	OwnerNIP string
	Region   string
}

// CertificationFilter constrains listing queries.
type CertificationFilter struct {
	Scope      CertificationScope
	Statuses   []CertificationStatus
	Type       CertificationType
	IssuedFrom *time.Time
	IssuedTo   *time.Time
}

// StatusTransition carries the metadata of a PENDING -> resolved update.
type StatusTransition struct {
	Status          CertificationStatus
	VerifierID      string
	RejectionReason *string
	At              time.Time
}
