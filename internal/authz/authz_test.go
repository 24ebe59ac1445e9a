package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/supermen-api/internal/models"
)

func TestOnlyVerifierReviews(t *testing.T) {
	assert.True(t, Allows(models.RoleVerifier, ActionCertificationReview))
	assert.False(t, Allows(models.RoleAdmin, ActionCertificationReview))
	assert.False(t, Allows(models.RoleRegionalOfficer, ActionCertificationReview))
	assert.False(t, Allows(models.RoleFieldOfficer, ActionCertificationReview))
}

func TestAdminOnlyConfiguration(t *testing.T) {
	for _, role := range []models.UserRole{models.RoleVerifier, models.RoleRegionalOfficer, models.RoleFieldOfficer} {
		assert.False(t, Allows(role, ActionConfigurationManage), role)
		assert.False(t, Allows(role, ActionPersonnelManage), role)
	}
	assert.True(t, Allows(models.RoleAdmin, ActionConfigurationManage))
}

func TestUnknownRoleHasNoActions(t *testing.T) {
	assert.False(t, Allows(models.UserRole("GUEST"), ActionDashboardView))
	assert.Empty(t, Actions(models.UserRole("GUEST")))
}

func TestActionsSorted(t *testing.T) {
	actions := Actions(models.RoleFieldOfficer)
	assert.Contains(t, actions, ActionCertificationSubmit)
	for i := 1; i < len(actions); i++ {
		assert.Less(t, string(actions[i-1]), string(actions[i]))
	}
}

func TestCertificationScope(t *testing.T) {
	field := &models.JWTClaims{Role: models.RoleFieldOfficer, NIP: "198501012010011001", Region: "bali"}
	regional := &models.JWTClaims{Role: models.RoleRegionalOfficer, NIP: "199002022015022002", Region: "jawa-barat"}
	verifier := &models.JWTClaims{Role: models.RoleVerifier}

	scope, ok := CertificationScope(field)
	assert.True(t, ok)
	assert.Equal(t, models.CertificationScope{OwnerNIP: field.NIP}, scope)

	scope, ok = CertificationScope(regional)
	assert.True(t, ok)
	assert.Equal(t, models.CertificationScope{Region: "jawa-barat"}, scope)

	scope, ok = CertificationScope(verifier)
	assert.True(t, ok)
	assert.Equal(t, models.CertificationScope{}, scope)

	_, ok = CertificationScope(nil)
	assert.False(t, ok)
}

func TestCanViewCertification(t *testing.T) {
	record := models.CertificationRecord{OwnerNIP: "198501012010011001", Region: "jawa-barat"}

	assert.True(t, CanViewCertification(&models.JWTClaims{Role: models.RoleFieldOfficer, NIP: "198501012010011001"}, record))
	assert.False(t, CanViewCertification(&models.JWTClaims{Role: models.RoleFieldOfficer, NIP: "199002022015022002"}, record))
	assert.True(t, CanViewCertification(&models.JWTClaims{Role: models.RoleRegionalOfficer, Region: "jawa-barat"}, record))
	assert.False(t, CanViewCertification(&models.JWTClaims{Role: models.RoleRegionalOfficer, Region: "bali"}, record))
	assert.True(t, CanViewCertification(&models.JWTClaims{Role: models.RoleVerifier}, record))
}
