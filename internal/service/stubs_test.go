package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/repository"
)

type auditStub struct {
	mu      sync.Mutex
	entries []*models.AuditLog
	err     error
}

func (a *auditStub) Create(ctx context.Context, entry *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, entry)
	return nil
}

func (a *auditStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type notifyCall struct {
	recipientID string
	template    models.NotificationTemplate
	payload     map[string]string
}

type notifierStub struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *notifierStub) Notify(ctx context.Context, recipientID string, template models.NotificationTemplate, payload map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{recipientID: recipientID, template: template, payload: payload})
}

func (n *notifierStub) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type settingsStub map[string]int

func (s settingsStub) Int(ctx context.Context, key string, fallback int) int {
	if v, ok := s[key]; ok {
		return v
	}
	return fallback
}

// personnelStoreStub is an in-memory personnel table plus refresh tokens.
type personnelStoreStub struct {
	mu            sync.Mutex
	byID          map[string]*models.Personnel
	refreshTokens map[string]*models.RefreshToken
	createErr     error
	revokedUsers  []string
	lastLogin     map[string]time.Time
}

func newPersonnelStoreStub(people ...*models.Personnel) *personnelStoreStub {
	s := &personnelStoreStub{
		byID:          make(map[string]*models.Personnel),
		refreshTokens: make(map[string]*models.RefreshToken),
		lastLogin:     make(map[string]time.Time),
	}
	for _, p := range people {
		s.byID[p.ID] = p
	}
	return s
}

func (s *personnelStoreStub) find(match func(*models.Personnel) bool) (*models.Personnel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *personnelStoreStub) FindByEmail(ctx context.Context, email string) (*models.Personnel, error) {
	return s.find(func(p *models.Personnel) bool { return strings.EqualFold(p.Email, email) })
}

func (s *personnelStoreStub) FindByNIP(ctx context.Context, nip string) (*models.Personnel, error) {
	return s.find(func(p *models.Personnel) bool { return p.NIP == nip })
}

func (s *personnelStoreStub) FindByID(ctx context.Context, id string) (*models.Personnel, error) {
	return s.find(func(p *models.Personnel) bool { return p.ID == id })
}

func (s *personnelStoreStub) ListIDsByProvince(ctx context.Context, province string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, p := range s.byID {
		if p.Status != models.PersonnelStatusActive {
			continue
		}
		if province == "" || province == models.RegionAll || p.Province == province {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (s *personnelStoreStub) List(ctx context.Context, filter models.PersonnelFilter) ([]models.Personnel, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Personnel
	for _, p := range s.byID {
		if filter.Province != "" && filter.Province != models.RegionAll && p.Province != filter.Province {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.Role != nil && p.Role != *filter.Role {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (s *personnelStoreStub) Create(ctx context.Context, p *models.Personnel) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.NIP == p.NIP {
			return repository.ErrDuplicate
		}
		if strings.EqualFold(existing.Email, p.Email) {
			return repository.ErrDuplicate
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.PersonnelStatusPending
	}
	cp := *p
	s.byID[p.ID] = &cp
	return nil
}

func (s *personnelStoreStub) Update(ctx context.Context, p *models.Personnel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[p.ID]
	if !ok {
		return sql.ErrNoRows
	}
	cp := *p
	cp.PasswordHash = existing.PasswordHash
	cp.Status = existing.Status
	s.byID[p.ID] = &cp
	return nil
}

func (s *personnelStoreStub) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.byID, id)
	return nil
}

func (s *personnelStoreStub) UpdateStatus(ctx context.Context, id string, status models.PersonnelStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Status = status
	return nil
}

func (s *personnelStoreStub) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.PasswordHash = passwordHash
	return nil
}

func (s *personnelStoreStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLogin[id] = ts
	return nil
}

func (s *personnelStoreStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokedUsers = append(s.revokedUsers, userID)
	for _, t := range s.refreshTokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (s *personnelStoreStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens[token.Token] = token
	return nil
}

func (s *personnelStoreStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (s *personnelStoreStub) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (s *personnelStoreStub) get(id string) *models.Personnel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

const (
	nipBudi  = "198501012010011001"
	nipSari  = "199002022015022002"
	nipAdmin = "197512312000031001"
)

func activePersonnel(id, nip string, role models.UserRole, province string) *models.Personnel {
	return &models.Personnel{
		ID:                 id,
		NIP:                nip,
		Email:              id + "@metrologi.go.id",
		FullName:           "Pegawai " + id,
		Position:           models.PositionFieldOfficer,
		Institution:        "UPTD Metrologi",
		Province:           province,
		Phone:              "08123456789",
		Role:               role,
		Status:             models.PersonnelStatusActive,
		EmailNotifications: true,
	}
}
