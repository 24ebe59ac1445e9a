package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/supermen-api/internal/models"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

type alertRuleStoreStub struct {
	mu    sync.Mutex
	rules map[string]*models.AlertRule
	runs  map[string]time.Time
}

func newAlertRuleStoreStub(rules ...models.AlertRule) *alertRuleStoreStub {
	s := &alertRuleStoreStub{rules: make(map[string]*models.AlertRule), runs: make(map[string]time.Time)}
	for i := range rules {
		r := rules[i]
		s.rules[r.ID] = &r
	}
	return s
}

func (s *alertRuleStoreStub) List(ctx context.Context) ([]models.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AlertRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, *r)
	}
	return out, nil
}

func (s *alertRuleStoreStub) ListActive(ctx context.Context) ([]models.AlertRule, error) {
	all, _ := s.List(ctx)
	out := all[:0]
	for _, r := range all {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *alertRuleStoreStub) GetByID(ctx context.Context, id string) (*models.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (s *alertRuleStoreStub) Create(ctx context.Context, rule *models.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule.ID = fmt.Sprintf("rule-%d", len(s.rules)+1)
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *alertRuleStoreStub) Update(ctx context.Context, rule *models.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[rule.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *alertRuleStoreStub) MarkRun(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id] = at
	if r, ok := s.rules[id]; ok {
		r.LastRunAt = &at
	}
	return nil
}

func (s *alertRuleStoreStub) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.rules, id)
	return nil
}

type expiringStub struct {
	records []models.CertificationRecord
	regions []string
}

func (e *expiringStub) ListExpiring(ctx context.Context, region string, from, to time.Time) ([]models.CertificationRecord, error) {
	e.regions = append(e.regions, region)
	var out []models.CertificationRecord
	for _, r := range e.records {
		if region != models.RegionAll && r.Region != region {
			continue
		}
		if r.ExpiryDate.Before(from) || r.ExpiryDate.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type boolSettingStub map[string]bool

func (b boolSettingStub) Bool(ctx context.Context, key string, fallback bool) bool {
	if v, ok := b[key]; ok {
		return v
	}
	return fallback
}

var alertNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func expiringRecord(id, ownerID, region string, days int) models.CertificationRecord {
	r := pendingRecord(id, nipBudi, ownerID, region)
	r.Status = models.CertificationVerified
	r.ExpiryDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
	return r
}

func newAlertFixture(settings boolSetting, rules ...models.AlertRule) (*AlertService, *alertRuleStoreStub, *expiringStub, *notifierStub, *auditStub) {
	store := newAlertRuleStoreStub(rules...)
	expiring := &expiringStub{records: []models.CertificationRecord{
		expiringRecord("c1", "u1", "jawa-barat", 5),
		expiringRecord("c2", "u2", "bali", 20),
		expiringRecord("c3", "u3", "jawa-barat", 60),
	}}
	people := newPersonnelStoreStub(
		activePersonnel("u1", nipBudi, models.RoleFieldOfficer, "jawa-barat"),
		activePersonnel("u2", nipSari, models.RoleFieldOfficer, "bali"),
	)
	notifier := &notifierStub{}
	audit := &auditStub{}
	svc := NewAlertService(store, expiring, people, settings, notifier, audit, nil, zap.NewNop())
	svc.now = func() time.Time { return alertNow }
	return svc, store, expiring, notifier, audit
}

func TestAlertServiceRunDueNotifiesWithinWindow(t *testing.T) {
	lastRun := alertNow.Add(-2 * time.Hour)
	svc, store, _, notifier, _ := newAlertFixture(nil,
		models.AlertRule{ID: "monthly", DaysBeforeExpiry: 30, Region: models.RegionAll, Frequency: models.AlertDaily, Active: true},
		models.AlertRule{ID: "weekly-barat", DaysBeforeExpiry: 7, Region: "jawa-barat", Frequency: models.AlertDaily, Active: true},
		models.AlertRule{ID: "recent", DaysBeforeExpiry: 30, Region: "bali", Frequency: models.AlertDaily, Active: true, LastRunAt: &lastRun},
		models.AlertRule{ID: "off", DaysBeforeExpiry: 30, Region: models.RegionAll, Frequency: models.AlertDaily, Active: false},
	)

	result, err := svc.RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.RulesRun)
	// c1 matches both due rules but is notified once; c3 is outside every window.
	assert.Equal(t, 2, result.Notified)
	assert.Equal(t, 2, notifier.count())
	assert.Equal(t, models.TemplateExpiryReminder, notifier.calls[0].template)
	assert.Contains(t, store.runs, "monthly")
	assert.NotContains(t, store.runs, "recent")
}

func TestAlertServiceRunNowIgnoresSchedule(t *testing.T) {
	lastRun := alertNow.Add(-time.Hour)
	svc, _, _, notifier, _ := newAlertFixture(nil,
		models.AlertRule{ID: "recent", DaysBeforeExpiry: 30, Region: "bali", Frequency: models.AlertWeekly, Active: true, LastRunAt: &lastRun},
	)

	result, err := svc.RunNow(context.Background(), verifierClaims)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RulesRun)
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, "u2", notifier.calls[0].recipientID)
	assert.Equal(t, "20", notifier.calls[0].payload["days"])

	_, err = svc.RunNow(context.Background(), officerClaims)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAlertServiceRunRespectsReminderSetting(t *testing.T) {
	svc, _, expiring, notifier, _ := newAlertFixture(boolSettingStub{models.ConfigKeyExpiryReminderEnabled: false},
		models.AlertRule{ID: "monthly", DaysBeforeExpiry: 30, Region: models.RegionAll, Frequency: models.AlertDaily, Active: true},
	)

	result, err := svc.RunDue(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Disabled)
	assert.Empty(t, expiring.regions)
	assert.Zero(t, notifier.count())
}

func TestAlertServiceRuleCRUD(t *testing.T) {
	svc, store, _, _, audit := newAlertFixture(nil)
	ctx := context.Background()

	rule, err := svc.CreateRule(ctx, verifierClaims, AlertRuleRequest{Name: "Pengingat 30 hari", DaysBeforeExpiry: 30, Region: "Bali", Frequency: models.AlertWeekly})
	require.NoError(t, err)
	assert.True(t, rule.Active)
	assert.Equal(t, "bali", rule.Region)

	_, err = svc.CreateRule(ctx, verifierClaims, AlertRuleRequest{Name: "x", DaysBeforeExpiry: 14, Region: "bali", Frequency: models.AlertDaily})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	_, err = svc.CreateRule(ctx, verifierClaims, AlertRuleRequest{Name: "x", DaysBeforeExpiry: 7, Region: "mars", Frequency: models.AlertDaily})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	off := false
	updated, err := svc.UpdateRule(ctx, verifierClaims, rule.ID, AlertRuleRequest{Name: "Pengingat", DaysBeforeExpiry: 7, Region: models.RegionAll, Frequency: models.AlertDaily, Active: &off})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, 7, store.rules[rule.ID].DaysBeforeExpiry)

	require.NoError(t, svc.DeleteRule(ctx, verifierClaims, rule.ID))
	err = svc.DeleteRule(ctx, verifierClaims, rule.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Len(t, audit.actions(), 3)
}

func TestAlertServiceBroadcast(t *testing.T) {
	svc, _, _, notifier, audit := newAlertFixture(nil)
	ctx := context.Background()

	n, err := svc.Broadcast(ctx, verifierClaims, BroadcastRequest{Province: "bali", Title: "Pemeliharaan", Message: "Sistem tidak tersedia pukul 22.00"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, "u2", notifier.calls[0].recipientID)

	n, err = svc.Broadcast(ctx, verifierClaims, BroadcastRequest{Province: "all", Title: "Info", Message: "Semua"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{models.AuditActionBroadcast, models.AuditActionBroadcast}, audit.actions())

	_, err = svc.Broadcast(ctx, verifierClaims, BroadcastRequest{Province: "mars", Title: "Info", Message: "x"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
