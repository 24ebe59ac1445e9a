package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenInvalid = errors.New("download token invalid")
	ErrTokenExpired = errors.New("download token expired")
)

const grantFieldSep = "\x1f"

// Grant is what a download token vouches for. IssuedTo records who asked for the link.
type Grant struct {
	DocumentID string
	Path       string
	IssuedTo   string
	ExpiresAt  time.Time
}

// SignedURLSigner mints and checks HMAC-SHA256 download tokens of the form
// base64url(fields) "." base64url(mac).
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign stamps g with the signer TTL and returns the token and its expiry.
func (s *SignedURLSigner) Sign(g Grant) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("download signing secret missing")
	}
	if g.DocumentID == "" || g.Path == "" {
		return "", time.Time{}, errors.New("grant needs a document id and path")
	}
	for _, f := range []string{g.DocumentID, g.Path, g.IssuedTo} {
		if strings.Contains(f, grantFieldSep) {
			return "", time.Time{}, errors.New("grant field contains a separator")
		}
	}
	g.ExpiresAt = s.now().Add(s.ttl).Truncate(time.Second)
	body := strings.Join([]string{g.DocumentID, g.Path, g.IssuedTo, strconv.FormatInt(g.ExpiresAt.Unix(), 10)}, grantFieldSep)
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(body)) + "." + enc.EncodeToString(s.mac([]byte(body))), g.ExpiresAt, nil
}

// Verify checks the MAC before anything else and then the expiry.
func (s *SignedURLSigner) Verify(token string) (Grant, error) {
	enc := base64.RawURLEncoding
	rawBody, rawMAC, ok := strings.Cut(token, ".")
	if !ok {
		return Grant{}, ErrTokenInvalid
	}
	body, err := enc.DecodeString(rawBody)
	if err != nil {
		return Grant{}, ErrTokenInvalid
	}
	mac, err := enc.DecodeString(rawMAC)
	if err != nil || !hmac.Equal(mac, s.mac(body)) {
		return Grant{}, ErrTokenInvalid
	}
	fields := strings.Split(string(body), grantFieldSep)
	if len(fields) != 4 {
		return Grant{}, ErrTokenInvalid
	}
	exp, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return Grant{}, ErrTokenInvalid
	}
	g := Grant{DocumentID: fields[0], Path: fields[1], IssuedTo: fields[2], ExpiresAt: time.Unix(exp, 0)}
	if s.now().After(g.ExpiresAt) {
		return g, ErrTokenExpired
	}
	return g, nil
}

func (s *SignedURLSigner) mac(body []byte) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write(body)
	return h.Sum(nil)
}
