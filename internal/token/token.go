// Package token holds every cryptographic primitive used by auth: PBKDF2
// password hashing, opaque invite-token generation and hashing, and JWT
// session minting and verification. The JWT secret and session lifetime are
// injected so tests can supply fixed values.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"

	"github.com/fernhollow/sprout/internal/model"
)

const (
	passwordAlgo       = "pbkdf2-sha256"
	passwordIterations = 100000
	passwordSaltLen    = 16
	passwordKeyLen     = 32

	inviteTokenLen = 32

	SessionTTL = 7 * 24 * time.Hour
)

// ErrInvalidToken is returned for any session token that fails verification.
// The cause (signature, format, expiry) is deliberately not distinguished.
var ErrInvalidToken = errors.New("invalid or expired token")

type Service struct {
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
}

// NewService creates a token service with the given JWT signing secret.
func NewService(secret string) *Service {
	return &Service{
		secret:     []byte(secret),
		sessionTTL: SessionTTL,
		now:        time.Now,
	}
}

// WithClock overrides the time source; used by tests to exercise expiry.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithSessionTTL overrides the session token lifetime.
func (s *Service) WithSessionTTL(ttl time.Duration) *Service {
	s.sessionTTL = ttl
	return s
}

// HashPassword derives a PBKDF2-HMAC-SHA256 key from the password with a
// fresh random salt and returns a self-describing string:
//
//	pbkdf2-sha256$<iterations>$<base64url salt>$<base64url key>
//
// The embedded algorithm id and iteration count allow future cost upgrades
// without invalidating stored hashes.
func HashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, passwordIterations, passwordKeyLen, sha256.New)

	return strings.Join([]string{
		passwordAlgo,
		strconv.Itoa(passwordIterations),
		base64.RawURLEncoding.EncodeToString(salt),
		base64.RawURLEncoding.EncodeToString(key),
	}, "$"), nil
}

// VerifyPassword checks a password against a stored hash. It fails closed:
// any malformed field, unknown algorithm, or length mismatch returns false
// without reporting which part was wrong. The comparison is constant-time.
func VerifyPassword(password, storedHash string) bool {
	parts := strings.Split(storedHash, "$")
	if len(parts) != 4 {
		return false
	}
	if parts[0] != passwordAlgo {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}

	got := pbkdf2.Key([]byte(password), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// GenerateToken returns a fresh opaque invite-link secret: 32 bytes of
// cryptographically secure randomness, base64url-encoded.
func GenerateToken() (string, error) {
	b := make([]byte, inviteTokenLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the hex SHA-256 digest of an opaque token. Only this
// digest is persisted; the raw token exists only in the emailed link.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SessionClaims are the claims carried by a session JWT.
type SessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject as an int64, or 0 if it is malformed.
func (c *SessionClaims) UserID() int64 {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// SignSession issues a session JWT for the user, valid for the service's
// session TTL (7 days by default).
func (s *Service) SignSession(user *model.User) (string, error) {
	now := s.now()
	claims := SessionClaims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// VerifySession validates a session JWT and returns its claims. Expiry is
// checked by the library and again explicitly against the clock: a token at
// or past exp is rejected even if the signature verifies.
func (s *Service) VerifySession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.ExpiresAt == nil || !s.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
