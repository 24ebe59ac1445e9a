package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/registration"
	"github.com/noah-isme/supermen-api/internal/repository"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
	"github.com/noah-isme/supermen-api/pkg/idgen"
)

const registrationKeyPrefix = "reg:"

type draftStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type registrationPersonnelWriter interface {
	Create(ctx context.Context, p *models.Personnel) error
}

type registrationDocuments interface {
	Accept(ctx context.Context, upload DocumentUpload, uploadCtx models.UploadContext, actor *models.JWTClaims) (*models.Document, error)
	Discard(ctx context.Context, id string) error
}

// RegistrationSession is one applicant's form as returned to the client.
type RegistrationSession struct {
	ID      string             `json:"id"`
	State   registration.State `json:"state"`
	Step    int                `json:"step"`
	Total   int                `json:"totalSteps"`
	Percent int                `json:"percent"`
}

// RegistrationServiceConfig tunes draft lifetime.
type RegistrationServiceConfig struct {
	DraftTTL time.Duration
}

// RegistrationService drives the public multi-step registration form. Drafts live in the
// state store keyed by a ULID session id and are dropped on submit or discard.
type RegistrationService struct {
	store     draftStore
	people    registrationPersonnelWriter
	documents registrationDocuments
	domains   emailDomainSource
	notifier  Notifier
	audit     auditLogger
	logger    *zap.Logger
	cfg       RegistrationServiceConfig
}

// NewRegistrationService constructs the service.
func NewRegistrationService(store draftStore, people registrationPersonnelWriter, documents registrationDocuments, domains emailDomainSource, notifier Notifier, audit auditLogger, logger *zap.Logger, cfg RegistrationServiceConfig) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DraftTTL <= 0 {
		cfg.DraftTTL = time.Hour
	}
	return &RegistrationService{store: store, people: people, documents: documents, domains: domains, notifier: notifier, audit: audit, logger: logger, cfg: cfg}
}

// Start opens an empty draft on step 1.
func (s *RegistrationService) Start(ctx context.Context) (*RegistrationSession, error) {
	id := idgen.New()
	state := s.form(ctx).Start()
	if err := s.save(ctx, id, state); err != nil {
		return nil, err
	}
	return newRegistrationSession(id, state), nil
}

// Get returns the current draft.
func (s *RegistrationService) Get(ctx context.Context, id string) (*RegistrationSession, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return newRegistrationSession(id, state), nil
}

// Edit stores field values. Each edit clears that field's error only.
func (s *RegistrationService) Edit(ctx context.Context, id string, values map[string]string) (*RegistrationSession, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	form := s.form(ctx)
	unknown := map[string]string{}
	for field, value := range values {
		next, err := form.Edit(state, registration.Field(field), value)
		switch {
		case errors.Is(err, registration.ErrAlreadySubmitted):
			return nil, appErrors.Clone(appErrors.ErrConflict, "registration already submitted")
		case errors.Is(err, registration.ErrUnknownField):
			unknown[field] = "kolom tidak dikenal"
			continue
		}
		state = next
	}
	if len(unknown) > 0 {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "unknown registration fields", unknown)
	}
	if err := s.save(ctx, id, state); err != nil {
		return nil, err
	}
	return newRegistrationSession(id, state), nil
}

// Next advances when the current step validates. A failing step is saved with its errors
// and reported as a validation error.
func (s *RegistrationService) Next(ctx context.Context, id string) (*RegistrationSession, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if state.Submitted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "registration already submitted")
	}
	form := s.form(ctx)
	next := form.Next(state)
	if err := s.save(ctx, id, next); err != nil {
		return nil, err
	}
	session := newRegistrationSession(id, next)
	if stepErrs := form.ValidateStep(state.Step, state.Draft); !stepErrs.Valid() {
		return session, appErrors.WithFields(appErrors.ErrValidation, "step has invalid fields", stepErrs)
	}
	return session, nil
}

// Back returns to the previous step without validating.
func (s *RegistrationService) Back(ctx context.Context, id string) (*RegistrationSession, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	state = s.form(ctx).Back(state)
	if err := s.save(ctx, id, state); err != nil {
		return nil, err
	}
	return newRegistrationSession(id, state), nil
}

// AttachCertificate accepts the supporting document and records it on the draft. A replaced
// document is discarded.
func (s *RegistrationService) AttachCertificate(ctx context.Context, id string, upload DocumentUpload) (*RegistrationSession, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if state.Submitted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "registration already submitted")
	}
	doc, err := s.documents.Accept(ctx, upload, models.UploadContextRegistration, nil)
	if err != nil {
		return nil, err
	}
	previous := state.Draft.Certificate
	state, err = s.form(ctx).AttachCertificate(state, registration.Certificate{DocumentID: doc.ID, Name: doc.OriginalName, Size: doc.SizeBytes})
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "registration already submitted")
	}
	if err := s.save(ctx, id, state); err != nil {
		return nil, err
	}
	if previous != nil && previous.DocumentID != doc.ID {
		s.discardDocument(ctx, previous.DocumentID)
	}
	return newRegistrationSession(id, state), nil
}

// Submit validates every step and creates a PENDING personnel record. The submitted state is
// kept until the draft expires so repeated submits are refused.
func (s *RegistrationService) Submit(ctx context.Context, id, ip, userAgent string) (*RegistrationSession, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var created *models.Personnel
	sink := registration.SinkFunc(func(ctx context.Context, draft registration.Draft) (string, error) {
		p, err := s.persist(ctx, draft)
		if err != nil {
			return "", err
		}
		created = p
		return p.ID, nil
	})

	next, err := s.form(ctx).Submit(ctx, state, sink)
	switch {
	case err == nil:
	case errors.Is(err, registration.ErrAlreadySubmitted):
		return nil, appErrors.Clone(appErrors.ErrConflict, "registration already submitted")
	case errors.Is(err, registration.ErrNotFinalStep):
		return nil, appErrors.Clone(appErrors.ErrValidation, "registration can only be submitted from the final step")
	case errors.Is(err, registration.ErrInvalid):
		if saveErr := s.save(ctx, id, next); saveErr != nil {
			return nil, saveErr
		}
		return newRegistrationSession(id, next), appErrors.WithFields(appErrors.ErrValidation, "registration has invalid fields", next.Errors)
	default:
		return nil, err
	}

	if err := s.save(ctx, id, next); err != nil {
		s.logger.Warn("failed to persist submitted registration state", zap.String("session_id", id), zap.Error(err))
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, created.ID, models.TemplateRegistrationReceived, map[string]string{"name": created.FullName})
	}
	writeAudit(ctx, s.audit, s.logger, newAuditEntry(requestActor(created, ip, userAgent), models.AuditActionRegistrationSubmit, "personnel", created.ID, nil, map[string]interface{}{
		"nip":      created.NIP,
		"role":     created.Role,
		"province": created.Province,
	}))
	return newRegistrationSession(id, next), nil
}

// Discard throws the draft away together with an unsubmitted certificate upload.
func (s *RegistrationService) Discard(ctx context.Context, id string) error {
	state, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, registrationKeyPrefix+id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discard registration")
	}
	if !state.Submitted && state.Draft.Certificate != nil {
		s.discardDocument(ctx, state.Draft.Certificate.DocumentID)
	}
	return nil
}

func (s *RegistrationService) persist(ctx context.Context, draft registration.Draft) (*models.Personnel, error) {
	role, ok := models.RoleForPosition(draft.Position)
	if !ok {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "unknown position", map[string]string{string(registration.FieldPosition): "jabatan tidak dikenal"})
	}
	p := &models.Personnel{
		NIP:                draft.NIP,
		Email:              draft.Email,
		FullName:           draft.FullName,
		Position:           draft.Position,
		Institution:        draft.Institution,
		Province:           draft.Province,
		Phone:              draft.Phone,
		Role:               role,
		Status:             models.PersonnelStatusPending,
		EmailNotifications: true,
	}
	if draft.Certificate != nil {
		ref := draft.Certificate.DocumentID
		p.CertificateRef = &ref
	}
	if err := s.people.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "NIP atau email sudah terdaftar")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create personnel")
	}
	return p, nil
}

func (s *RegistrationService) form(ctx context.Context) *registration.Form {
	var domains []string
	if s.domains != nil {
		domains = s.domains.EmailDomains(ctx)
	}
	return registration.NewForm(registration.Rules{EmailDomains: domains})
}

func (s *RegistrationService) load(ctx context.Context, id string) (registration.State, error) {
	var state registration.State
	if !idgen.Valid(id) {
		return state, appErrors.Clone(appErrors.ErrNotFound, "registration session not found")
	}
	if err := s.store.Get(ctx, registrationKeyPrefix+id, &state); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return state, appErrors.Clone(appErrors.ErrNotFound, "registration session not found or expired")
		}
		return state, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	return state, nil
}

func (s *RegistrationService) save(ctx context.Context, id string, state registration.State) error {
	if err := s.store.Set(ctx, registrationKeyPrefix+id, state, s.cfg.DraftTTL); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save registration")
	}
	return nil
}

func (s *RegistrationService) discardDocument(ctx context.Context, id string) {
	if s.documents == nil {
		return
	}
	if err := s.documents.Discard(ctx, id); err != nil {
		s.logger.Warn("failed to discard registration document", zap.String("document_id", id), zap.Error(err))
	}
}

func newRegistrationSession(id string, state registration.State) *RegistrationSession {
	current, total := state.Progress()
	return &RegistrationSession{ID: id, State: state, Step: current, Total: total, Percent: state.Percent()}
}
