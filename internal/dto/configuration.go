package dto

// Setting is one admin-tunable value. IsDefault marks values that have never been stored.
type Setting struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Description string `json:"description"`
	IsDefault   bool   `json:"isDefault"`
}

type SettingValueRequest struct {
	Value string `json:"value" validate:"required"`
}

type SettingChange struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// BulkSettingsRequest is applied all-or-nothing.
type BulkSettingsRequest struct {
	Items []SettingChange `json:"items" validate:"required,min=1,dive"`
}
