package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/supermen-api/internal/authz"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/validation"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

type alertRuleStore interface {
	List(ctx context.Context) ([]models.AlertRule, error)
	ListActive(ctx context.Context) ([]models.AlertRule, error)
	GetByID(ctx context.Context, id string) (*models.AlertRule, error)
	Create(ctx context.Context, rule *models.AlertRule) error
	Update(ctx context.Context, rule *models.AlertRule) error
	MarkRun(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type expiringLister interface {
	ListExpiring(ctx context.Context, region string, from, to time.Time) ([]models.CertificationRecord, error)
}

type provinceRecipients interface {
	ListIDsByProvince(ctx context.Context, province string) ([]string, error)
}

type boolSetting interface {
	Bool(ctx context.Context, key string, fallback bool) bool
}

// AlertRuleRequest creates or replaces an expiry rule.
type AlertRuleRequest struct {
	Name             string                `json:"name" validate:"required"`
	DaysBeforeExpiry int                   `json:"daysBeforeExpiry" validate:"oneof=7 30"`
	Region           string                `json:"region" validate:"required"`
	Frequency        models.AlertFrequency `json:"frequency" validate:"required,oneof=DAILY WEEKLY"`
	Active           *bool                 `json:"active"`
}

// BroadcastRequest sends a SYSTEM notification to active personnel of a province.
type BroadcastRequest struct {
	Province string `json:"province" validate:"required"`
	Title    string `json:"title" validate:"required,max=120"`
	Message  string `json:"message" validate:"required,max=2000"`
}

// AlertRunResult summarises one expiry scan.
type AlertRunResult struct {
	RulesRun int  `json:"rulesRun"`
	Notified int  `json:"notified"`
	Disabled bool `json:"disabled,omitempty"`
}

// AlertService manages expiry rules, the periodic scan and broadcasts.
type AlertService struct {
	rules      alertRuleStore
	expiring   expiringLister
	recipients provinceRecipients
	settings   boolSetting
	notifier   Notifier
	audit      auditLogger
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewAlertService constructs the service.
func NewAlertService(rules alertRuleStore, expiring expiringLister, recipients provinceRecipients, settings boolSetting, notifier Notifier, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.NewValidator()
	}
	return &AlertService{
		rules:      rules,
		expiring:   expiring,
		recipients: recipients,
		settings:   settings,
		notifier:   notifier,
		audit:      audit,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// ListRules returns every rule.
func (s *AlertService) ListRules(ctx context.Context, actor *models.JWTClaims) ([]models.AlertRule, error) {
	if err := requireAlertManager(actor); err != nil {
		return nil, err
	}
	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list alert rules")
	}
	return rules, nil
}

// CreateRule adds a rule.
func (s *AlertService) CreateRule(ctx context.Context, actor *models.JWTClaims, req AlertRuleRequest) (*models.AlertRule, error) {
	if err := requireAlertManager(actor); err != nil {
		return nil, err
	}
	if err := s.validateRule(req); err != nil {
		return nil, err
	}
	rule := &models.AlertRule{
		Name:             strings.TrimSpace(req.Name),
		DaysBeforeExpiry: req.DaysBeforeExpiry,
		Region:           strings.ToLower(req.Region),
		Frequency:        req.Frequency,
		Active:           req.Active == nil || *req.Active,
		CreatedBy:        userIDPtr(actor),
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create alert rule")
	}
	s.emitAudit(ctx, actor, rule.ID, nil, rule)
	return rule, nil
}

// UpdateRule replaces a rule's settings.
func (s *AlertService) UpdateRule(ctx context.Context, actor *models.JWTClaims, id string, req AlertRuleRequest) (*models.AlertRule, error) {
	if err := requireAlertManager(actor); err != nil {
		return nil, err
	}
	if err := s.validateRule(req); err != nil {
		return nil, err
	}
	rule, err := s.loadRule(ctx, id)
	if err != nil {
		return nil, err
	}
	old := *rule
	rule.Name = strings.TrimSpace(req.Name)
	rule.DaysBeforeExpiry = req.DaysBeforeExpiry
	rule.Region = strings.ToLower(req.Region)
	rule.Frequency = req.Frequency
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if err := s.rules.Update(ctx, rule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "alert rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update alert rule")
	}
	s.emitAudit(ctx, actor, rule.ID, old, rule)
	return rule, nil
}

// DeleteRule removes a rule.
func (s *AlertService) DeleteRule(ctx context.Context, actor *models.JWTClaims, id string) error {
	if err := requireAlertManager(actor); err != nil {
		return err
	}
	rule, err := s.loadRule(ctx, id)
	if err != nil {
		return err
	}
	if err := s.rules.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "alert rule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete alert rule")
	}
	s.emitAudit(ctx, actor, id, rule, nil)
	return nil
}

// RunNow scans every active rule regardless of its schedule.
func (s *AlertService) RunNow(ctx context.Context, actor *models.JWTClaims) (*AlertRunResult, error) {
	if err := requireAlertManager(actor); err != nil {
		return nil, err
	}
	return s.run(ctx, true)
}

// RunDue scans the rules whose frequency has elapsed. It is driven by the background ticker.
func (s *AlertService) RunDue(ctx context.Context) (*AlertRunResult, error) {
	return s.run(ctx, false)
}

// Start runs RunDue every interval until ctx is cancelled.
func (s *AlertService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if result, err := s.RunDue(ctx); err != nil {
					s.logger.Warn("expiry alert scan failed", zap.Error(err))
				} else if result.RulesRun > 0 {
					s.logger.Info("expiry alert scan finished", zap.Int("rules", result.RulesRun), zap.Int("notified", result.Notified))
				}
			}
		}
	}()
}

func (s *AlertService) run(ctx context.Context, force bool) (*AlertRunResult, error) {
	result := &AlertRunResult{}
	if s.settings != nil && !s.settings.Bool(ctx, models.ConfigKeyExpiryReminderEnabled, true) {
		result.Disabled = true
		return result, nil
	}
	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active alert rules")
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	notified := map[string]struct{}{}
	for _, rule := range rules {
		if !force && !rule.Due(now) {
			continue
		}
		records, err := s.expiring.ListExpiring(ctx, rule.Region, today, today.AddDate(0, 0, rule.DaysBeforeExpiry))
		if err != nil {
			s.logger.Warn("failed to list expiring certifications", zap.String("rule_id", rule.ID), zap.Error(err))
			continue
		}
		for _, record := range records {
			if _, seen := notified[record.ID]; seen || record.OwnerID == "" {
				continue
			}
			notified[record.ID] = struct{}{}
			if s.notifier != nil {
				s.notifier.Notify(ctx, record.OwnerID, models.TemplateExpiryReminder, map[string]string{
					"type":   record.CertificationType.Label(),
					"expiry": record.ExpiryDate.Format(DateLayout),
					"days":   strconv.Itoa(record.DaysUntilExpiry(now)),
				})
			}
		}
		if err := s.rules.MarkRun(ctx, rule.ID, now); err != nil {
			s.logger.Warn("failed to mark alert rule run", zap.String("rule_id", rule.ID), zap.Error(err))
		}
		result.RulesRun++
	}
	result.Notified = len(notified)
	return result, nil
}

// Broadcast notifies active personnel of a province, or everyone for "all". It returns the
// number of recipients.
func (s *AlertService) Broadcast(ctx context.Context, actor *models.JWTClaims, req BroadcastRequest) (int, error) {
	if err := requireAlertManager(actor); err != nil {
		return 0, err
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.WithFields(appErrors.ErrValidation, "invalid broadcast payload", validation.Describe(err))
	}
	province := strings.ToLower(strings.TrimSpace(req.Province))
	if province != models.RegionAll && !models.ValidProvince(province) {
		return 0, appErrors.WithFields(appErrors.ErrValidation, "invalid broadcast payload", map[string]string{"province": validation.ErrUnknownProvince.Error()})
	}
	ids, err := s.recipients.ListIDsByProvince(ctx, province)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve broadcast recipients")
	}
	if s.notifier != nil {
		for _, id := range ids {
			s.notifier.Notify(ctx, id, models.TemplateBroadcast, map[string]string{"title": req.Title, "message": req.Message})
		}
	}
	writeAudit(ctx, s.audit, s.logger, newAuditEntry(actor, models.AuditActionBroadcast, "notification", "", nil, map[string]interface{}{
		"province":   province,
		"title":      req.Title,
		"recipients": len(ids),
	}))
	return len(ids), nil
}

func (s *AlertService) validateRule(req AlertRuleRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.WithFields(appErrors.ErrValidation, "invalid alert rule", validation.Describe(err))
	}
	if !strings.EqualFold(req.Region, models.RegionAll) && !models.ValidProvince(req.Region) {
		return appErrors.WithFields(appErrors.ErrValidation, "invalid alert rule", map[string]string{"region": validation.ErrUnknownProvince.Error()})
	}
	return nil
}

func (s *AlertService) loadRule(ctx context.Context, id string) (*models.AlertRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "alert rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load alert rule")
	}
	return rule, nil
}

func (s *AlertService) emitAudit(ctx context.Context, actor *models.JWTClaims, id string, oldValues, newValues interface{}) {
	writeAudit(ctx, s.audit, s.logger, newAuditEntry(actor, models.AuditActionAlertRuleChange, "alert_rule", id, oldValues, newValues))
}

func requireAlertManager(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !authz.Allows(actor.Role, authz.ActionAlertManage) {
		return appErrors.ErrForbidden
	}
	return nil
}
