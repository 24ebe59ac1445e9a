package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/supermen-api/internal/authz"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/repository"
	"github.com/noah-isme/supermen-api/internal/validation"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

type personnelRepository interface {
	List(ctx context.Context, filter models.PersonnelFilter) ([]models.Personnel, int, error)
	FindByID(ctx context.Context, id string) (*models.Personnel, error)
	Create(ctx context.Context, p *models.Personnel) error
	Update(ctx context.Context, p *models.Personnel) error
	UpdateStatus(ctx context.Context, id string, status models.PersonnelStatus, updatedAt time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string) error
}

type emailDomainSource interface {
	EmailDomains(ctx context.Context) []string
}

// CreatePersonnelRequest is the administrator payload for adding an account directly.
type CreatePersonnelRequest struct {
	NIP         string                 `json:"nip" validate:"required,nip"`
	Email       string                 `json:"email" validate:"required,email"`
	FullName    string                 `json:"fullName" validate:"required"`
	Position    string                 `json:"position" validate:"required"`
	Institution string                 `json:"institution" validate:"required"`
	Province    string                 `json:"province" validate:"required"`
	Phone       string                 `json:"phone" validate:"required"`
	Role        models.UserRole        `json:"role" validate:"required,oneof=ADMINISTRATOR VERIFIER REGIONAL_OFFICER FIELD_OFFICER"`
	Status      models.PersonnelStatus `json:"status" validate:"omitempty,oneof=PENDING ACTIVE INACTIVE"`
	Password    string                 `json:"password" validate:"omitempty,min=8"`
}

// UpdatePersonnelRequest is the administrator payload for editing an account.
type UpdatePersonnelRequest struct {
	Email              string          `json:"email" validate:"required,email"`
	FullName           string          `json:"fullName" validate:"required"`
	Position           string          `json:"position" validate:"required"`
	Institution        string          `json:"institution" validate:"required"`
	Province           string          `json:"province" validate:"required"`
	Phone              string          `json:"phone" validate:"required"`
	Role               models.UserRole `json:"role" validate:"required,oneof=ADMINISTRATOR VERIFIER REGIONAL_OFFICER FIELD_OFFICER"`
	EmailNotifications *bool           `json:"emailNotifications"`
}

// UpdateSelfRequest is the limited profile edit available to every account.
type UpdateSelfRequest struct {
	FullName           string `json:"fullName" validate:"required"`
	Position           string `json:"position" validate:"required"`
	Phone              string `json:"phone" validate:"required"`
	EmailNotifications *bool  `json:"emailNotifications"`
}

// PersonnelService handles personnel administration and self service.
type PersonnelService struct {
	repo      personnelRepository
	domains   emailDomainSource
	notifier  Notifier
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPersonnelService creates an instance of PersonnelService.
func NewPersonnelService(repo personnelRepository, domains emailDomainSource, notifier Notifier, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *PersonnelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.NewValidator()
	}
	return &PersonnelService{repo: repo, domains: domains, notifier: notifier, audit: audit, validator: validate, logger: logger, now: time.Now}
}

// List returns paginated personnel. Regional officers only see their own province.
func (s *PersonnelService) List(ctx context.Context, actor *models.JWTClaims, filter models.PersonnelFilter) ([]models.Personnel, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	switch {
	case authz.Allows(actor.Role, authz.ActionPersonnelManage):
	case authz.Allows(actor.Role, authz.ActionPersonnelViewRegion):
		filter.Province = actor.Region
	default:
		return nil, nil, appErrors.ErrForbidden
	}

	people, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list personnel")
	}
	page, size := pageBounds(filter.Page, filter.PageSize)
	return people, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one account visible to actor.
func (s *PersonnelService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Personnel, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case p.ID == actor.UserID, authz.Allows(actor.Role, authz.ActionPersonnelManage):
		return p, nil
	case authz.Allows(actor.Role, authz.ActionPersonnelViewRegion) && p.Province == actor.Region:
		return p, nil
	}
	return nil, appErrors.ErrForbidden
}

// Create adds an account on behalf of an administrator. Without a password a temporary one
// is generated and delivered through notifications.
func (s *PersonnelService) Create(ctx context.Context, actor *models.JWTClaims, req CreatePersonnelRequest) (*models.Personnel, error) {
	if err := s.requireManager(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "invalid create personnel payload", validation.Describe(err))
	}
	if err := s.checkProfile(ctx, req.Email, req.Province); err != nil {
		return nil, err
	}

	password := req.Password
	generated := password == ""
	if generated {
		var err error
		if password, err = randomToken(9); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	status := req.Status
	if status == "" {
		status = models.PersonnelStatusActive
	}
	p := &models.Personnel{
		NIP:                req.NIP,
		Email:              strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:       string(hash),
		FullName:           strings.TrimSpace(req.FullName),
		Position:           strings.ToLower(strings.TrimSpace(req.Position)),
		Institution:        strings.TrimSpace(req.Institution),
		Province:           strings.ToLower(req.Province),
		Phone:              strings.TrimSpace(req.Phone),
		Role:               req.Role,
		Status:             status,
		EmailNotifications: true,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "NIP or e-mail already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create personnel")
	}

	if generated && s.notifier != nil {
		s.notifier.Notify(ctx, p.ID, models.TemplateAccountActivated, map[string]string{"password": password})
	}
	s.emitAudit(ctx, actor, models.AuditActionPersonnelCreate, p.ID, nil, map[string]interface{}{"nip": p.NIP, "role": p.Role, "status": p.Status})
	return p, nil
}

// Update edits profile and role of an account.
func (s *PersonnelService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdatePersonnelRequest) (*models.Personnel, error) {
	if err := s.requireManager(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "invalid update personnel payload", validation.Describe(err))
	}
	if err := s.checkProfile(ctx, req.Email, req.Province); err != nil {
		return nil, err
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ID == actor.UserID && req.Role != p.Role {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "administrators cannot change their own role")
	}

	old := map[string]interface{}{"email": p.Email, "role": p.Role, "province": p.Province}
	p.Email = strings.ToLower(strings.TrimSpace(req.Email))
	p.FullName = strings.TrimSpace(req.FullName)
	p.Position = strings.ToLower(strings.TrimSpace(req.Position))
	p.Institution = strings.TrimSpace(req.Institution)
	p.Province = strings.ToLower(req.Province)
	p.Phone = strings.TrimSpace(req.Phone)
	p.Role = req.Role
	if req.EmailNotifications != nil {
		p.EmailNotifications = *req.EmailNotifications
	}

	if err := s.repo.Update(ctx, p); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "e-mail already registered")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "personnel not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update personnel")
	}

	s.emitAudit(ctx, actor, models.AuditActionPersonnelUpdate, p.ID, old, map[string]interface{}{"email": p.Email, "role": p.Role, "province": p.Province})
	return p, nil
}

// Activate enables an account. Accounts that never had a password receive a temporary one.
func (s *PersonnelService) Activate(ctx context.Context, actor *models.JWTClaims, id string) (*models.Personnel, error) {
	if err := s.requireManager(actor); err != nil {
		return nil, err
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == models.PersonnelStatusActive {
		return p, nil
	}

	payload := map[string]string{"name": p.FullName}
	if p.PasswordHash == "" {
		password, err := s.setTemporaryPassword(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		payload["password"] = password
	}

	if err := s.repo.UpdateStatus(ctx, p.ID, models.PersonnelStatusActive, s.now().UTC()); err != nil {
		return nil, s.statusError(err)
	}
	old := p.Status
	p.Status = models.PersonnelStatusActive

	if s.notifier != nil {
		if _, ok := payload["password"]; !ok {
			payload["password"] = "(tidak berubah)"
		}
		s.notifier.Notify(ctx, p.ID, models.TemplateAccountActivated, payload)
	}
	s.emitAudit(ctx, actor, models.AuditActionPersonnelActivate, p.ID, map[string]interface{}{"status": old}, map[string]interface{}{"status": p.Status})
	return p, nil
}

// Deactivate disables an account and ends its sessions.
func (s *PersonnelService) Deactivate(ctx context.Context, actor *models.JWTClaims, id string) (*models.Personnel, error) {
	if err := s.requireManager(actor); err != nil {
		return nil, err
	}
	if id == actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "administrators cannot deactivate themselves")
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, p.ID, models.PersonnelStatusInactive, s.now().UTC()); err != nil {
		return nil, s.statusError(err)
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, p.ID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens on deactivation", zap.String("personnel_id", p.ID), zap.Error(err))
	}
	old := p.Status
	p.Status = models.PersonnelStatusInactive
	s.emitAudit(ctx, actor, models.AuditActionPersonnelDeactivate, p.ID, map[string]interface{}{"status": old}, map[string]interface{}{"status": p.Status})
	return p, nil
}

// ResetPassword replaces the password with a temporary one and notifies the owner.
func (s *PersonnelService) ResetPassword(ctx context.Context, actor *models.JWTClaims, id string) error {
	if err := s.requireManager(actor); err != nil {
		return err
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	password, err := s.setTemporaryPassword(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, p.ID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens on reset", zap.String("personnel_id", p.ID), zap.Error(err))
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, p.ID, models.TemplatePasswordReset, map[string]string{"password": password})
	}
	s.emitAudit(ctx, actor, models.AuditActionPasswordReset, p.ID, nil, nil)
	return nil
}

// Delete removes an account permanently together with its certifications.
func (s *PersonnelService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if err := s.requireManager(actor); err != nil {
		return err
	}
	if id == actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "administrators cannot delete themselves")
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "personnel not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete personnel")
	}
	s.emitAudit(ctx, actor, models.AuditActionPersonnelDelete, id, map[string]interface{}{"nip": p.NIP, "email": p.Email}, nil)
	return nil
}

// Me returns the caller's own account.
func (s *PersonnelService) Me(ctx context.Context, actor *models.JWTClaims) (*models.Personnel, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return s.load(ctx, actor.UserID)
}

// UpdateSelf edits the caller's limited profile.
func (s *PersonnelService) UpdateSelf(ctx context.Context, actor *models.JWTClaims, req UpdateSelfRequest) (*models.Personnel, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "invalid profile payload", validation.Describe(err))
	}
	p, err := s.load(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	p.FullName = strings.TrimSpace(req.FullName)
	p.Position = strings.ToLower(strings.TrimSpace(req.Position))
	p.Phone = strings.TrimSpace(req.Phone)
	if req.EmailNotifications != nil {
		p.EmailNotifications = *req.EmailNotifications
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	s.emitAudit(ctx, actor, models.AuditActionPersonnelUpdate, p.ID, nil, map[string]interface{}{"self": true})
	return p, nil
}

func (s *PersonnelService) load(ctx context.Context, id string) (*models.Personnel, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "personnel not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load personnel")
	}
	return p, nil
}

func (s *PersonnelService) requireManager(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !authz.Allows(actor.Role, authz.ActionPersonnelManage) {
		return appErrors.ErrForbidden
	}
	return nil
}

func (s *PersonnelService) checkProfile(ctx context.Context, email, province string) error {
	fields := validation.FieldErrors{}
	var domains []string
	if s.domains != nil {
		domains = s.domains.EmailDomains(ctx)
	}
	fields.Add("email", validation.EmailDomain(email, domains...))
	if !models.ValidProvince(province) {
		fields.Add("province", validation.ErrUnknownProvince)
	}
	if !fields.Valid() {
		return appErrors.WithFields(appErrors.ErrValidation, "invalid personnel profile", fields)
	}
	return nil
}

func (s *PersonnelService) setTemporaryPassword(ctx context.Context, id string) (string, error) {
	password, err := randomToken(9)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hash), s.now().UTC()); err != nil {
		return "", s.statusError(err)
	}
	return password, nil
}

func (s *PersonnelService) statusError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "personnel not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update personnel")
}

func (s *PersonnelService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, id string, oldValues, newValues interface{}) {
	writeAudit(ctx, s.audit, s.logger, newAuditEntry(actor, action, "personnel", id, oldValues, newValues))
}
