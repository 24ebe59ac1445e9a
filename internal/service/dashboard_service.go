package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/supermen-api/internal/authz"
	"github.com/noah-isme/supermen-api/internal/dto"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/repository"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

type certificationCounter interface {
	CountBy(ctx context.Context, scope models.CertificationScope, dimension string) ([]repository.CountRow, error)
	CountExpiry(ctx context.Context, scope models.CertificationScope, today time.Time, days int) (expired, expiring int, err error)
}

type personnelCounter interface {
	List(ctx context.Context, filter models.PersonnelFilter) ([]models.Personnel, int, error)
}

type dashboardCache interface {
	Lookup(ctx context.Context, key string, dest interface{}) bool
	Store(ctx context.Context, key string, value interface{})
}

// DashboardCacheNamespace prefixes every cached summary; certification changes purge it.
const DashboardCacheNamespace = "dash"

// DashboardServiceConfig tunes dashboard behaviour. ExpiringWithin is in days.
type DashboardServiceConfig struct {
	ExpiringWithin int
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Certifications certificationCounter
	Personnel      personnelCounter
	Cache          dashboardCache
	Logger         *zap.Logger
	Config         DashboardServiceConfig
}

// DashboardService composes the per-role summary from aggregate queries.
type DashboardService struct {
	certifications certificationCounter
	personnel      personnelCounter
	cache          dashboardCache
	logger         *zap.Logger
	now            func() time.Time
	cfg            DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.ExpiringWithin <= 0 {
		cfg.ExpiringWithin = 30
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		certifications: params.Certifications,
		personnel:      params.Personnel,
		cache:          params.Cache,
		logger:         logger,
		now:            time.Now,
		cfg:            cfg,
	}
}

// Summary returns the caller's dashboard and reports whether it came from cache.
func (s *DashboardService) Summary(ctx context.Context, actor *models.JWTClaims) (*dto.DashboardSummary, bool, error) {
	if actor == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	if !authz.Allows(actor.Role, authz.ActionDashboardView) {
		return nil, false, appErrors.ErrForbidden
	}
	scope, ok := authz.CertificationScope(actor)
	if !ok {
		return nil, false, appErrors.ErrForbidden
	}

	cacheKey := dashboardKey(actor.Role, scope)
	if summary, hit := s.tryCache(ctx, cacheKey); hit {
		return summary, true, nil
	}

	summary, err := s.compose(ctx, actor, scope)
	if err != nil {
		return nil, false, err
	}
	s.persistCache(ctx, cacheKey, summary)
	return summary, false, nil
}

func (s *DashboardService) compose(ctx context.Context, actor *models.JWTClaims, scope models.CertificationScope) (*dto.DashboardSummary, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	summary := &dto.DashboardSummary{
		Scope:          dto.DashboardScope{Role: string(actor.Role), Region: scope.Region, OwnerNIP: scope.OwnerNIP},
		ExpiringWithin: s.cfg.ExpiringWithin,
		ByType:         []dto.DashboardCount{},
		ByProvince:     []dto.DashboardCount{},
		GeneratedAt:    now.Format(time.RFC3339),
	}

	var byStatus, byType, byRegion []repository.CountRow
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byStatus, err = s.certifications.CountBy(gctx, scope, "status")
		return err
	})
	g.Go(func() error {
		var err error
		byType, err = s.certifications.CountBy(gctx, scope, "type")
		return err
	})
	g.Go(func() error {
		var err error
		byRegion, err = s.certifications.CountBy(gctx, scope, "region")
		return err
	})
	g.Go(func() error {
		var err error
		summary.Expired, summary.ExpiringSoon, err = s.certifications.CountExpiry(gctx, scope, today, s.cfg.ExpiringWithin)
		return err
	})
	if scope.OwnerNIP == "" && s.personnel != nil {
		g.Go(func() error {
			_, total, err := s.personnel.List(gctx, models.PersonnelFilter{Province: scope.Region, Page: 1, PageSize: 1})
			if err != nil {
				return err
			}
			summary.PersonnelCount = &total
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compose dashboard")
	}

	for _, row := range byStatus {
		switch models.CertificationStatus(row.Key) {
		case models.CertificationPending:
			summary.Pending = row.Count
		case models.CertificationVerified:
			summary.Verified = row.Count
		case models.CertificationRejected:
			summary.Rejected = row.Count
		}
	}
	for _, row := range byType {
		summary.ByType = append(summary.ByType, dto.DashboardCount{Key: row.Key, Label: models.CertificationType(row.Key).Label(), Count: row.Count})
	}
	for _, row := range byRegion {
		summary.ByProvince = append(summary.ByProvince, dto.DashboardCount{Key: row.Key, Count: row.Count})
	}
	return summary, nil
}

func (s *DashboardService) tryCache(ctx context.Context, key string) (*dto.DashboardSummary, bool) {
	if s.cache == nil {
		return nil, false
	}
	var cached dto.DashboardSummary
	if !s.cache.Lookup(ctx, key, &cached) {
		return nil, false
	}
	return &cached, true
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache != nil {
		s.cache.Store(ctx, key, value)
	}
}

func dashboardKey(role models.UserRole, scope models.CertificationScope) string {
	target := "all"
	switch {
	case scope.OwnerNIP != "":
		target = "nip:" + scope.OwnerNIP
	case scope.Region != "":
		target = "region:" + strings.ToLower(scope.Region)
	}
	return strings.ToLower(string(role)) + ":" + target
}
