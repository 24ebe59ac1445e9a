package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/supermen-api/internal/models"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

type domainsStub []string

func (d domainsStub) EmailDomains(ctx context.Context) []string { return d }

var adminClaims = &models.JWTClaims{UserID: "admin", NIP: nipAdmin, Role: models.RoleAdmin}

func newPersonnelFixture(people ...*models.Personnel) (*PersonnelService, *personnelStoreStub, *notifierStub, *auditStub) {
	repo := newPersonnelStoreStub(people...)
	notifier := &notifierStub{}
	audit := &auditStub{}
	svc := NewPersonnelService(repo, domainsStub{".go.id"}, notifier, audit, nil, zap.NewNop())
	return svc, repo, notifier, audit
}

func TestPersonnelServiceListScopesRegionalOfficer(t *testing.T) {
	svc, _, _, _ := newPersonnelFixture(
		activePersonnel("u1", nipBudi, models.RoleFieldOfficer, "jawa-barat"),
		activePersonnel("u2", nipSari, models.RoleFieldOfficer, "bali"),
	)
	officer := &models.JWTClaims{UserID: "r1", Role: models.RoleRegionalOfficer, Region: "bali"}

	people, pagination, err := svc.List(context.Background(), officer, models.PersonnelFilter{Province: "jawa-barat"})
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "u2", people[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)

	people, _, err = svc.List(context.Background(), adminClaims, models.PersonnelFilter{})
	require.NoError(t, err)
	assert.Len(t, people, 2)

	_, _, err = svc.List(context.Background(), &models.JWTClaims{Role: models.RoleFieldOfficer}, models.PersonnelFilter{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPersonnelServiceGetAccess(t *testing.T) {
	svc, _, _, _ := newPersonnelFixture(activePersonnel("u1", nipBudi, models.RoleFieldOfficer, "jawa-barat"))
	ctx := context.Background()

	_, err := svc.Get(ctx, &models.JWTClaims{UserID: "u1", Role: models.RoleFieldOfficer}, "u1")
	require.NoError(t, err)

	_, err = svc.Get(ctx, &models.JWTClaims{UserID: "x", Role: models.RoleRegionalOfficer, Region: "jawa-barat"}, "u1")
	require.NoError(t, err)

	_, err = svc.Get(ctx, &models.JWTClaims{UserID: "x", Role: models.RoleRegionalOfficer, Region: "bali"}, "u1")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(ctx, adminClaims, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPersonnelServiceCreateGeneratesPassword(t *testing.T) {
	svc, repo, notifier, audit := newPersonnelFixture()

	p, err := svc.Create(context.Background(), adminClaims, CreatePersonnelRequest{
		NIP:         nipBudi,
		Email:       "Budi@Metrologi.GO.ID",
		FullName:    "Budi",
		Position:    "petugas",
		Institution: "UPTD Metrologi",
		Province:    "jawa-barat",
		Phone:       "0812",
		Role:        models.RoleFieldOfficer,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PersonnelStatusActive, p.Status)
	assert.Equal(t, "budi@metrologi.go.id", p.Email)

	require.Equal(t, 1, notifier.count())
	password := notifier.calls[0].payload["password"]
	require.NotEmpty(t, password)
	stored := repo.get(p.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(password)))
	assert.Equal(t, []string{models.AuditActionPersonnelCreate}, audit.actions())
}

func TestPersonnelServiceCreateRejectsDomainAndDuplicates(t *testing.T) {
	svc, _, _, _ := newPersonnelFixture(activePersonnel("u1", nipBudi, models.RoleFieldOfficer, "jawa-barat"))
	req := CreatePersonnelRequest{
		NIP:         nipBudi,
		Email:       "budi@gmail.com",
		FullName:    "Budi",
		Position:    "petugas",
		Institution: "UPTD Metrologi",
		Province:    "jawa-barat",
		Phone:       "0812",
		Role:        models.RoleFieldOfficer,
		Password:    "rahasia123",
	}

	_, err := svc.Create(context.Background(), adminClaims, req)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "email")

	req.Email = "budi.baru@metrologi.go.id"
	_, err = svc.Create(context.Background(), adminClaims, req)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPersonnelServiceActivateIssuesTemporaryPassword(t *testing.T) {
	pending := activePersonnel("u1", nipBudi, models.RoleFieldOfficer, "jawa-barat")
	pending.Status = models.PersonnelStatusPending
	svc, repo, notifier, audit := newPersonnelFixture(pending)

	p, err := svc.Activate(context.Background(), adminClaims, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PersonnelStatusActive, p.Status)
	assert.Equal(t, models.PersonnelStatusActive, repo.get("u1").Status)
	assert.NotEmpty(t, repo.get("u1").PasswordHash)

	require.Equal(t, 1, notifier.count())
	assert.Equal(t, models.TemplateAccountActivated, notifier.calls[0].template)
	assert.NotEmpty(t, notifier.calls[0].payload["password"])
	assert.Equal(t, []string{models.AuditActionPersonnelActivate}, audit.actions())

	// Already active: no second notification.
	_, err = svc.Activate(context.Background(), adminClaims, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.count())
}

func TestPersonnelServiceDeactivateRevokesSessions(t *testing.T) {
	svc, repo, _, _ := newPersonnelFixture(activePersonnel("u1", nipBudi, models.RoleFieldOfficer, "jawa-barat"))

	p, err := svc.Deactivate(context.Background(), adminClaims, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PersonnelStatusInactive, p.Status)
	assert.Contains(t, repo.revokedUsers, "u1")

	_, err = svc.Deactivate(context.Background(), adminClaims, adminClaims.UserID)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPersonnelServiceResetPassword(t *testing.T) {
	user := activePersonnel("u1", nipBudi, models.RoleFieldOfficer, "jawa-barat")
	user.PasswordHash = "old"
	svc, repo, notifier, audit := newPersonnelFixture(user)

	require.NoError(t, svc.ResetPassword(context.Background(), adminClaims, "u1"))
	assert.NotEqual(t, "old", repo.get("u1").PasswordHash)
	assert.Contains(t, repo.revokedUsers, "u1")
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, models.TemplatePasswordReset, notifier.calls[0].template)
	assert.Equal(t, []string{models.AuditActionPasswordReset}, audit.actions())

	err := svc.ResetPassword(context.Background(), &models.JWTClaims{UserID: "u1", Role: models.RoleFieldOfficer}, "u1")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPersonnelServiceUpdateAndDelete(t *testing.T) {
	admin := activePersonnel("admin", nipAdmin, models.RoleAdmin, "dki-jakarta")
	svc, repo, _, audit := newPersonnelFixture(admin, activePersonnel("u1", nipBudi, models.RoleFieldOfficer, "jawa-barat"))
	ctx := context.Background()

	p, err := svc.Update(ctx, adminClaims, "u1", UpdatePersonnelRequest{
		Email:       "u1@metrologi.go.id",
		FullName:    "Budi Santoso",
		Position:    "kepala",
		Institution: "UPTD Metrologi",
		Province:    "jawa-barat",
		Phone:       "0812",
		Role:        models.RoleRegionalOfficer,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleRegionalOfficer, p.Role)
	assert.Equal(t, "Budi Santoso", repo.get("u1").FullName)

	_, err = svc.Update(ctx, adminClaims, "admin", UpdatePersonnelRequest{
		Email:       "admin@metrologi.go.id",
		FullName:    "Admin",
		Position:    "admin",
		Institution: "Direktorat",
		Province:    "dki-jakarta",
		Phone:       "0812",
		Role:        models.RoleVerifier,
	})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(ctx, adminClaims, "u1"))
	assert.Nil(t, repo.get("u1"))
	assert.Equal(t, []string{models.AuditActionPersonnelUpdate, models.AuditActionPersonnelDelete}, audit.actions())

	err = svc.Delete(ctx, adminClaims, "u1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPersonnelServiceUpdateSelf(t *testing.T) {
	svc, repo, _, _ := newPersonnelFixture(activePersonnel("u1", nipBudi, models.RoleFieldOfficer, "jawa-barat"))
	off := false
	actor := &models.JWTClaims{UserID: "u1", Role: models.RoleFieldOfficer}

	p, err := svc.UpdateSelf(context.Background(), actor, UpdateSelfRequest{FullName: "Budi S", Position: "petugas", Phone: "0813", EmailNotifications: &off})
	require.NoError(t, err)
	assert.False(t, p.EmailNotifications)
	assert.Equal(t, "0813", repo.get("u1").Phone)
	assert.Equal(t, models.RoleFieldOfficer, repo.get("u1").Role)

	_, err = svc.UpdateSelf(context.Background(), actor, UpdateSelfRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
