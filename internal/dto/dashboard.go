package dto

// DashboardSummary is the role scoped certification overview.
type DashboardSummary struct {
	Scope          DashboardScope   `json:"scope"`
	PersonnelCount *int             `json:"personnelCount,omitempty"`
	Pending        int              `json:"pending"`
	Verified       int              `json:"verified"`
	Rejected       int              `json:"rejected"`
	Expired        int              `json:"expired"`
	ExpiringSoon   int              `json:"expiringSoon"`
	ExpiringWithin int              `json:"expiringWithinDays"`
	ByType         []DashboardCount `json:"byType"`
	ByProvince     []DashboardCount `json:"byProvince"`
	GeneratedAt    string           `json:"generatedAt"`
}

// DashboardScope describes which records the summary covers.
type DashboardScope struct {
	Role     string `json:"role"`
	Region   string `json:"region,omitempty"`
	OwnerNIP string `json:"ownerNip,omitempty"`
}

// DashboardCount is one grouped total.
type DashboardCount struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
	Count int    `json:"count"`
}
