package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/supermen-api/internal/dto"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/validation"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

type configurationRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
	Get(ctx context.Context, key string) (*models.Configuration, error)
	Upsert(ctx context.Context, cfg *models.Configuration) error
	BulkUpsert(ctx context.Context, cfgs []models.Configuration) error
}

type allowedConfiguration struct {
	Key         string
	Type        models.ConfigurationType
	Description string
	Min, Max    int
	Options     []string
}

var allowedConfigurationKeys = []string{
	models.ConfigKeyAllowedEmailDomains,
	models.ConfigKeySessionExpireMinutes,
	models.ConfigKeyMaxLoginAttempts,
	models.ConfigKeyBackupSchedule,
	models.ConfigKeyRateLimitPerMinute,
	models.ConfigKeyExpiryReminderEnabled,
}

var allowedConfigurations = map[string]allowedConfiguration{
	models.ConfigKeyAllowedEmailDomains: {
		Key:         models.ConfigKeyAllowedEmailDomains,
		Type:        models.ConfigurationTypeString,
		Description: "Comma separated e-mail suffixes accepted at registration",
	},
	models.ConfigKeySessionExpireMinutes: {
		Key:         models.ConfigKeySessionExpireMinutes,
		Type:        models.ConfigurationTypeInteger,
		Description: "Access session lifetime in minutes",
		Min:         5,
		Max:         1440,
	},
	models.ConfigKeyMaxLoginAttempts: {
		Key:         models.ConfigKeyMaxLoginAttempts,
		Type:        models.ConfigurationTypeInteger,
		Description: "Failed logins before temporary lockout",
		Min:         1,
		Max:         20,
	},
	models.ConfigKeyBackupSchedule: {
		Key:         models.ConfigKeyBackupSchedule,
		Type:        models.ConfigurationTypeString,
		Description: "Database backup cadence",
		Options:     []string{"daily", "weekly", "monthly"},
	},
	models.ConfigKeyRateLimitPerMinute: {
		Key:         models.ConfigKeyRateLimitPerMinute,
		Type:        models.ConfigurationTypeInteger,
		Description: "Public API requests per minute per client",
		Min:         1,
		Max:         10000,
	},
	models.ConfigKeyExpiryReminderEnabled: {
		Key:         models.ConfigKeyExpiryReminderEnabled,
		Type:        models.ConfigurationTypeBoolean,
		Description: "Send certification expiry reminders",
	},
}

var builtinConfigurationDefaults = map[string]string{
	models.ConfigKeyAllowedEmailDomains:   validation.DefaultEmailDomain,
	models.ConfigKeySessionExpireMinutes:  "30",
	models.ConfigKeyMaxLoginAttempts:      "5",
	models.ConfigKeyBackupSchedule:        "daily",
	models.ConfigKeyRateLimitPerMinute:    "100",
	models.ConfigKeyExpiryReminderEnabled: "true",
}

// ConfigurationServiceConfig tunes runtime behaviour.
type ConfigurationServiceConfig struct {
	Defaults map[string]string
}

// ConfigurationService orchestrates CRUD workflow for configuration entries and serves
// typed reads to the rest of the system.
type ConfigurationService struct {
	repo      configurationRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	defaults  map[string]string
}

// NewConfigurationService constructs a ConfigurationService.
func NewConfigurationService(repo configurationRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg ConfigurationServiceConfig) *ConfigurationService {
	if validate == nil {
		validate = validation.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := make(map[string]string, len(builtinConfigurationDefaults))
	for key, value := range builtinConfigurationDefaults {
		defaults[key] = value
	}
	for key, value := range cfg.Defaults {
		if value == "" {
			continue
		}
		defaults[key] = value
	}
	return &ConfigurationService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger,
		defaults:  defaults,
	}
}

// List returns configuration items scoped to allowed keys.
func (s *ConfigurationService) List(ctx context.Context) ([]dto.Setting, error) {
	keys := allowedKeys()
	rows, err := s.repo.ListByKeys(ctx, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list configurations")
	}
	existing := make(map[string]models.Configuration, len(rows))
	for _, row := range rows {
		existing[row.Key] = row
	}

	items := make([]dto.Setting, 0, len(keys))
	for _, key := range keys {
		meta := allowedConfigurations[key]
		item := dto.Setting{
			Key:         key,
			Type:        string(meta.Type),
			Description: meta.Description,
			Value:       s.defaults[key],
			IsDefault:   true,
		}
		if row, ok := existing[key]; ok {
			item.Value = row.Value
			item.IsDefault = false
			if row.Description != nil && *row.Description != "" {
				item.Description = *row.Description
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// Get retrieves a single configuration, falling back to its default.
func (s *ConfigurationService) Get(ctx context.Context, key string) (*dto.Setting, error) {
	meta, err := s.requireAllowedKey(key)
	if err != nil {
		return nil, err
	}
	cfg, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.Setting{Key: key, Value: s.defaults[key], Type: string(meta.Type), Description: meta.Description, IsDefault: true}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get configuration")
	}
	description := meta.Description
	if cfg.Description != nil && *cfg.Description != "" {
		description = *cfg.Description
	}
	return &dto.Setting{Key: cfg.Key, Value: cfg.Value, Type: string(cfg.Type), Description: description}, nil
}

// Update validates and upserts a configuration entry.
func (s *ConfigurationService) Update(ctx context.Context, key string, value string, actor *models.JWTClaims) (*dto.Setting, error) {
	meta, err := s.requireAllowedKey(key)
	if err != nil {
		return nil, err
	}
	value, err = validateConfigurationValue(meta, value)
	if err != nil {
		return nil, err
	}

	prev, err := s.repo.Get(ctx, key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch configuration")
	}
	if prev != nil && prev.Type != meta.Type {
		return nil, appErrors.Clone(appErrors.ErrValidation, "configuration type mismatch")
	}

	cfg := &models.Configuration{
		Key:         key,
		Value:       value,
		Type:        meta.Type,
		Description: optionalString(meta.Description),
		UpdatedBy:   userIDPtr(actor),
	}
	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update configuration")
	}

	s.emitAudit(ctx, actor, key, prevValue(prev), value)

	return &dto.Setting{Key: key, Value: value, Type: string(meta.Type), Description: meta.Description}, nil
}

// BulkUpdate validates every item first, then applies them in one transaction.
func (s *ConfigurationService) BulkUpdate(ctx context.Context, req dto.BulkSettingsRequest, actor *models.JWTClaims) ([]dto.Setting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "invalid bulk payload", validation.Describe(err))
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	keys := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		keys = append(keys, item.Key)
	}
	existing, err := s.repo.ListByKeys(ctx, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing configurations")
	}
	existingMap := make(map[string]models.Configuration, len(existing))
	for _, cfg := range existing {
		existingMap[cfg.Key] = cfg
	}

	fieldErrs := validation.FieldErrors{}
	toUpsert := make([]models.Configuration, 0, len(req.Items))
	for _, item := range req.Items {
		meta, err := s.requireAllowedKey(item.Key)
		if err != nil {
			fieldErrs.Add(item.Key, err)
			continue
		}
		normalized, err := validateConfigurationValue(meta, item.Value)
		if err != nil {
			fieldErrs.Add(item.Key, err)
			continue
		}
		if prev, ok := existingMap[item.Key]; ok && prev.Type != meta.Type {
			fieldErrs.Add(item.Key, fmt.Errorf("configuration type mismatch for %s", item.Key))
			continue
		}
		toUpsert = append(toUpsert, models.Configuration{
			Key:         item.Key,
			Value:       normalized,
			Type:        meta.Type,
			Description: optionalString(meta.Description),
			UpdatedBy:   userIDPtr(actor),
		})
	}
	if !fieldErrs.Valid() {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "invalid configuration values", fieldErrs)
	}

	if err := s.repo.BulkUpsert(ctx, toUpsert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk update configurations")
	}

	result := make([]dto.Setting, 0, len(toUpsert))
	for _, cfg := range toUpsert {
		result = append(result, dto.Setting{
			Key:         cfg.Key,
			Value:       cfg.Value,
			Type:        string(cfg.Type),
			Description: allowedConfigurations[cfg.Key].Description,
		})
		prev, ok := existingMap[cfg.Key]
		old := ""
		if ok {
			old = prev.Value
		}
		s.emitAudit(ctx, actor, cfg.Key, old, cfg.Value)
	}
	return result, nil
}

// EmailDomains returns the configured registration e-mail suffixes.
func (s *ConfigurationService) EmailDomains(ctx context.Context) []string {
	raw := s.String(ctx, models.ConfigKeyAllowedEmailDomains, validation.DefaultEmailDomain)
	domains := splitDomains(raw)
	if len(domains) == 0 {
		return []string{validation.DefaultEmailDomain}
	}
	return domains
}

// String returns the raw value for key, or fallback when unset or unreadable.
func (s *ConfigurationService) String(ctx context.Context, key, fallback string) string {
	value, err := s.getValueOrDefault(ctx, key)
	if err != nil {
		s.logger.Warn("configuration read failed, using fallback", zap.String("key", key), zap.Error(err))
		return fallback
	}
	if value == "" {
		return fallback
	}
	return value
}

// Int returns key parsed as an integer, or fallback.
func (s *ConfigurationService) Int(ctx context.Context, key string, fallback int) int {
	n, err := strconv.Atoi(s.String(ctx, key, ""))
	if err != nil {
		return fallback
	}
	return n
}

// Bool returns key parsed as a boolean, or fallback.
func (s *ConfigurationService) Bool(ctx context.Context, key string, fallback bool) bool {
	b, err := strconv.ParseBool(s.String(ctx, key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func (s *ConfigurationService) requireAllowedKey(key string) (allowedConfiguration, error) {
	meta, ok := allowedConfigurations[key]
	if !ok {
		return allowedConfiguration{}, appErrors.Clone(appErrors.ErrValidation, "unsupported configuration key")
	}
	return meta, nil
}

func validateConfigurationValue(meta allowedConfiguration, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch meta.Type {
	case models.ConfigurationTypeBoolean:
		switch strings.ToLower(value) {
		case "true":
			return "true", nil
		case "false":
			return "false", nil
		default:
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects boolean value", meta.Key))
		}
	case models.ConfigurationTypeInteger:
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects integer value", meta.Key))
		}
		if n < meta.Min || n > meta.Max {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be between %d and %d", meta.Key, meta.Min, meta.Max))
		}
		return strconv.Itoa(n), nil
	case models.ConfigurationTypeString:
		if meta.Key == models.ConfigKeyAllowedEmailDomains {
			domains := splitDomains(value)
			if len(domains) == 0 {
				return "", appErrors.Clone(appErrors.ErrValidation, "at least one e-mail domain is required")
			}
			for _, d := range domains {
				if !strings.Contains(d, ".") || strings.ContainsAny(d, "@ ") {
					return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid e-mail domain %q", d))
				}
			}
			return strings.Join(domains, ","), nil
		}
		if len(meta.Options) > 0 {
			lower := strings.ToLower(value)
			for _, opt := range meta.Options {
				if lower == opt {
					return opt, nil
				}
			}
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be one of %s", meta.Key, strings.Join(meta.Options, ", ")))
		}
		if value == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must not be empty", meta.Key))
		}
		return value, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported configuration type")
	}
}

func splitDomains(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *ConfigurationService) emitAudit(ctx context.Context, actor *models.JWTClaims, key, oldValue, newValue string) {
	entry := newAuditEntry(actor, models.AuditActionConfigurationUpdate, "configuration", key,
		map[string]string{"key": key, "value": oldValue},
		map[string]string{"key": key, "value": newValue})
	writeAudit(ctx, s.audit, s.logger, entry)
}

func allowedKeys() []string {
	keys := make([]string, len(allowedConfigurationKeys))
	copy(keys, allowedConfigurationKeys)
	return keys
}

func prevValue(cfg *models.Configuration) string {
	if cfg == nil {
		return ""
	}
	return cfg.Value
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	result := value
	return &result
}

func (s *ConfigurationService) getValueOrDefault(ctx context.Context, key string) (string, error) {
	cfg, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.defaults[key], nil
		}
		return "", err
	}
	return cfg.Value, nil
}
