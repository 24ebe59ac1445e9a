package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/validation"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Personnel, error)
	FindByNIP(ctx context.Context, nip string) (*models.Personnel, error)
	FindByID(ctx context.Context, id string) (*models.Personnel, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
}

type loginAttemptStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type settingsReader interface {
	Int(ctx context.Context, key string, fallback int) int
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
	Audience           []string
	SingleSession      bool
	MaxLoginAttempts   int
	LockoutWindow      time.Duration
}

// AuthService provides authentication use cases.
type AuthService struct {
	repo      authUserRepository
	attempts  loginAttemptStore
	settings  settingsReader
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance. attempts and settings may be nil,
// which disables lockout and runtime overrides respectively.
func NewAuthService(repo authUserRepository, attempts loginAttemptStore, settings settingsReader, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.NewValidator()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 30 * time.Minute
	}
	if config.RefreshTokenExpiry <= 0 {
		config.RefreshTokenExpiry = 7 * 24 * time.Hour
	}
	if config.MaxLoginAttempts <= 0 {
		config.MaxLoginAttempts = 5
	}
	if config.LockoutWindow <= 0 {
		config.LockoutWindow = 15 * time.Minute
	}
	return &AuthService{
		repo:      repo,
		attempts:  attempts,
		settings:  settings,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// Login authenticates personnel by e-mail or NIP and returns issued tokens.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "invalid login payload", validation.Describe(err))
	}
	identifier := strings.ToLower(strings.TrimSpace(req.Identifier))

	if retryAfter, locked := s.lockedOut(ctx, identifier); locked {
		s.metrics.RecordLoginFailure("locked")
		return nil, appErrors.Clone(appErrors.ErrTooManyRequests, fmt.Sprintf("too many failed attempts, retry in %d seconds", int(retryAfter.Seconds())))
	}

	user, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.loginFailed(ctx, identifier, req, "unknown_identifier")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, s.loginFailed(ctx, identifier, req, "bad_password")
	}

	switch user.Status {
	case models.PersonnelStatusActive:
	case models.PersonnelStatusPending:
		s.metrics.RecordLoginFailure("pending")
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is awaiting activation")
	default:
		s.metrics.RecordLoginFailure("inactive")
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	s.clearAttempts(ctx, identifier)

	if s.config.SingleSession {
		if err := s.repo.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
			s.logger.Warn("failed to revoke previous refresh tokens", zap.Error(err))
		}
	}

	pair, err := s.issuePair(ctx, user, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLastLogin(ctx, user.ID, pair.IssuedAt); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	writeAudit(ctx, s.audit, s.logger, newAuditEntry(requestActor(user, req.IP, req.UserAgent), models.AuditActionLogin, "auth", user.ID, nil, map[string]string{"status": "success"}))

	pair.User = sessionUser(user)
	return pair, nil
}

// RefreshToken exchanges a refresh token for a new access token pair.
func (s *AuthService) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "invalid refresh payload", validation.Describe(err))
	}

	storedToken, err := s.repo.FindRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}

	if !storedToken.Usable(s.now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is expired or revoked")
	}

	user, err := s.repo.FindByID(ctx, storedToken.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "associated user no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if user.Status != models.PersonnelStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	if err := s.repo.RevokeRefreshToken(ctx, storedToken.ID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to revoke used refresh token", zap.Error(err))
	}

	return s.issuePair(ctx, user, req.IP, req.UserAgent)
}

// Logout revokes the provided refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	storedToken, err := s.repo.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load refresh token")
	}

	if storedToken.UserID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "token does not belong to user")
	}

	if err := s.repo.RevokeRefreshToken(ctx, storedToken.ID, s.now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh token")
	}

	writeAudit(ctx, s.audit, s.logger, newAuditEntry(actor, models.AuditActionLogout, "auth", actor.UserID, nil, nil))
	return nil
}

// ChangePassword changes the caller's password and ends their other sessions.
func (s *AuthService) ChangePassword(ctx context.Context, actor *models.JWTClaims, req models.ChangePasswordRequest) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.WithFields(appErrors.ErrValidation, "invalid change password payload", validation.Describe(err))
	}

	user, err := s.repo.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, string(newHash), s.now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.repo.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password change", zap.Error(err))
	}

	writeAudit(ctx, s.audit, s.logger, newAuditEntry(actor, models.AuditActionPasswordChange, "auth", user.ID, nil, map[string]string{"status": "changed"}))
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) findByIdentifier(ctx context.Context, identifier string) (*models.Personnel, error) {
	if validation.IsNIP(identifier) {
		return s.repo.FindByNIP(ctx, identifier)
	}
	return s.repo.FindByEmail(ctx, identifier)
}

func attemptsKey(identifier string) string { return "login:attempts:" + identifier }
func lockKey(identifier string) string     { return "login:locked:" + identifier }

func (s *AuthService) lockedOut(ctx context.Context, identifier string) (time.Duration, bool) {
	if s.attempts == nil {
		return 0, false
	}
	var locked bool
	if err := s.attempts.Get(ctx, lockKey(identifier), &locked); err != nil || !locked {
		return 0, false
	}
	ttl, err := s.attempts.TTL(ctx, lockKey(identifier))
	if err != nil || ttl <= 0 {
		ttl = s.config.LockoutWindow
	}
	return ttl, true
}

// loginFailed counts the attempt, locks the identifier once the limit is reached and
// returns the error for the caller.
func (s *AuthService) loginFailed(ctx context.Context, identifier string, req models.LoginRequest, reason string) error {
	s.metrics.RecordLoginFailure(reason)
	entry := newAuditEntry(nil, models.AuditActionLoginFailed, "auth", "", nil, map[string]string{"identifier": identifier, "reason": reason})
	entry.IPAddress = req.IP
	entry.UserAgent = req.UserAgent
	writeAudit(ctx, s.audit, s.logger, entry)

	if s.attempts == nil {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid identifier or password")
	}
	n, err := s.attempts.Incr(ctx, attemptsKey(identifier), s.config.LockoutWindow)
	if err != nil {
		s.logger.Warn("failed to count login attempt", zap.Error(err))
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid identifier or password")
	}
	limit := s.config.MaxLoginAttempts
	if s.settings != nil {
		limit = s.settings.Int(ctx, models.ConfigKeyMaxLoginAttempts, limit)
	}
	if n >= int64(limit) {
		if err := s.attempts.Set(ctx, lockKey(identifier), true, s.config.LockoutWindow); err != nil {
			s.logger.Warn("failed to lock identifier", zap.Error(err))
		}
		if err := s.attempts.Delete(ctx, attemptsKey(identifier)); err != nil {
			s.logger.Warn("failed to reset login attempts", zap.Error(err))
		}
		s.logger.Info("login locked", zap.String("identifier", identifier), zap.Int64("attempts", n))
		return appErrors.Clone(appErrors.ErrTooManyRequests, fmt.Sprintf("too many failed attempts, retry in %d seconds", int(s.config.LockoutWindow.Seconds())))
	}
	return appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid identifier or password")
}

func (s *AuthService) clearAttempts(ctx context.Context, identifier string) {
	if s.attempts == nil {
		return
	}
	if err := s.attempts.Delete(ctx, attemptsKey(identifier)); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.Error(err))
	}
}

func (s *AuthService) accessTokenExpiry(ctx context.Context) time.Duration {
	if s.settings == nil {
		return s.config.AccessTokenExpiry
	}
	minutes := s.settings.Int(ctx, models.ConfigKeySessionExpireMinutes, int(s.config.AccessTokenExpiry.Minutes()))
	if minutes <= 0 {
		return s.config.AccessTokenExpiry
	}
	return time.Duration(minutes) * time.Minute
}

func (s *AuthService) generateAccessToken(ctx context.Context, user *models.Personnel) (string, time.Time, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.accessTokenExpiry(ctx))
	claims := &models.JWTClaims{
		UserID:   user.ID,
		NIP:      user.NIP,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName,
		Region:   user.Province,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *AuthService) issueRefreshToken(ctx context.Context, userID, ip, userAgent string) (*models.RefreshToken, error) {
	value, err := randomToken(32)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	now := s.now().UTC()
	token := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     value,
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
		CreatedAt: now,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.repo.CreateRefreshToken(ctx, token); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}
	return token, nil
}

// issuePair signs an access token and stores a fresh refresh token for user.
func (s *AuthService) issuePair(ctx context.Context, user *models.Personnel, ip, userAgent string) (*models.TokenPair, error) {
	access, _, err := s.generateAccessToken(ctx, user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign access token")
	}
	refresh, err := s.issueRefreshToken(ctx, user.ID, ip, userAgent)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		TokenType:    models.TokenTypeBearer,
		ExpiresIn:    int64(s.accessTokenExpiry(ctx).Seconds()),
		IssuedAt:     refresh.CreatedAt,
	}, nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func sessionUser(p *models.Personnel) *models.SessionUser {
	return &models.SessionUser{
		ID:       p.ID,
		NIP:      p.NIP,
		Email:    p.Email,
		FullName: p.FullName,
		Role:     p.Role,
		Province: p.Province,
	}
}

// requestActor builds claims-shaped audit attribution for flows that run before a token exists.
func requestActor(p *models.Personnel, ip, userAgent string) *models.JWTClaims {
	return &models.JWTClaims{
		UserID:    p.ID,
		NIP:       p.NIP,
		Role:      p.Role,
		Region:    p.Province,
		ClientIP:  ip,
		UserAgent: userAgent,
	}
}
