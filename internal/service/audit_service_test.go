package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supermen-api/internal/models"
)

var _ auditLogger = (*AuditService)(nil)

type auditRepoStub struct {
	auditStub
	lastFilter models.AuditFilter
}

func (a *auditRepoStub) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	a.lastFilter = filter
	out := make([]models.AuditLog, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, *e)
	}
	return out, len(out), nil
}

func TestAuditServiceCreatePersists(t *testing.T) {
	repo := &auditRepoStub{}
	svc := NewAuditService(repo, nil)

	actor := &models.JWTClaims{UserID: "a-1", NIP: "198001012005011001", Role: models.RoleAdmin}
	require.NoError(t, svc.Create(context.Background(), newAuditEntry(actor, "CONFIG_UPDATE", "configuration", "allowed_email_domains", nil, map[string]string{"value": ".go.id"})))
	require.NoError(t, svc.Create(context.Background(), nil))

	assert.Equal(t, []string{"CONFIG_UPDATE"}, repo.actions())
	assert.Equal(t, "198001012005011001", repo.entries[0].ActorNIP)
}

func TestAuditServiceCreateReportsFailure(t *testing.T) {
	repo := &auditRepoStub{auditStub: auditStub{err: errors.New("insert failed")}}
	svc := NewAuditService(repo, nil)

	err := svc.Create(context.Background(), &models.AuditLog{Action: "LOGIN"})
	require.Error(t, err)
	assert.NotPanics(t, func() { svc.Record(context.Background(), &models.AuditLog{Action: "LOGIN"}) })
}

func TestAuditServiceFeedsConfigurationChanges(t *testing.T) {
	repo := &auditRepoStub{}
	audit := NewAuditService(repo, nil)
	settings := NewConfigurationService(&configurationRepoStub{}, audit, nil, nil, ConfigurationServiceConfig{})

	_, err := settings.Update(context.Background(), models.ConfigKeyMaxLoginAttempts, "7", &models.JWTClaims{UserID: "a-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, repo.actions(), 1)
}

func TestAuditServiceListRejectsInvertedRange(t *testing.T) {
	svc := NewAuditService(&auditRepoStub{}, nil)
	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)

	_, _, err := svc.List(context.Background(), models.AuditFilter{From: &from, To: &to})
	require.Error(t, err)
}
