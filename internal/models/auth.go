package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const TokenTypeBearer = "Bearer"

// LoginRequest accepts an e-mail address or an 18 digit NIP as Identifier.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	IP         string `json:"-"`
	UserAgent  string `json:"-"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// TokenPair is returned by login and refresh. User is only populated on login.
type TokenPair struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	IssuedAt     time.Time    `json:"issued_at"`
	User         *SessionUser `json:"user,omitempty"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,nefield=OldPassword"`
}

// SessionUser is the slice of a personnel record the dashboard needs after login.
type SessionUser struct {
	ID       string   `json:"id"`
	NIP      string   `json:"nip"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
	Province string   `json:"province"`
}

// JWTClaims is the access token payload. Region scopes regional officers to one province.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	NIP      string   `json:"nip"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Region   string   `json:"region"`

	// Filled by the JWT middleware from the request, never part of the token.
	ClientIP  string `json:"-"`
	UserAgent string `json:"-"`

	jwt.RegisteredClaims
}
