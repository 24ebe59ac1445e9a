package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

// CacheRepository is the key/value backend: Redis in production, MemoryStore otherwise.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// StateStore holds short lived session state: registration drafts, review selections and
// login attempt counters.
type StateStore interface {
	CacheRepository
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// CacheService is a read-through cache confined to one key namespace, so a whole family
// of derived payloads can be dropped at once when their source data changes.
// A nil *CacheService is valid and never hits.
type CacheService struct {
	store     CacheRepository
	namespace string
	ttl       time.Duration
	metrics   *MetricsService
	logger    *zap.Logger
}

func NewCacheService(store CacheRepository, namespace string, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *CacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{
		store:     store,
		namespace: namespace,
		ttl:       ttl,
		metrics:   metrics,
		logger:    logger.With(zap.String("cache", namespace)),
	}
}

func (s *CacheService) key(suffix string) string {
	return s.namespace + ":" + suffix
}

// Lookup decodes the entry into dest. Backend failures are logged and reported as a miss.
func (s *CacheService) Lookup(ctx context.Context, key string, dest interface{}) bool {
	if s == nil || s.store == nil {
		return false
	}
	started := time.Now()
	err := s.store.Get(ctx, s.key(key), dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(started))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Store writes value with the namespace TTL. Failures are logged only.
func (s *CacheService) Store(ctx context.Context, key string, value interface{}) {
	if s == nil || s.store == nil {
		return
	}
	started := time.Now()
	err := s.store.Set(ctx, s.key(key), value, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(started))
	if err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Purge drops every entry in the namespace.
func (s *CacheService) Purge(ctx context.Context) error {
	if s == nil || s.store == nil {
		return nil
	}
	if err := s.store.DeleteByPattern(ctx, s.key("*")); err != nil {
		s.logger.Warn("cache purge failed", zap.Error(err))
		return err
	}
	return nil
}
