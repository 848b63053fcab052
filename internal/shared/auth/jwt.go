package auth

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in session tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Claims represents the identity contained in a session token.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidToken  = errors.New("invalid token")
	errMissingSecret = errors.New("jwt secret not configured")
)

const issuer = "resume-insight"

// Signer issues and verifies HS256 session tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner builds a Signer. A zero ttl defaults to 24h.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errMissingSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Sign issues a token for subject with the given profile claims.
func (s *Signer) Sign(subject, email, name, role string) (string, error) {
	if subject == "" {
		return "", errors.New("sub is required")
	}
	if role == "" {
		role = RoleUser
	}
	now := s.now().UTC()
	claims := Claims{
		Email: email,
		Name:  name,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify validates a token and returns its claims.
func (s *Signer) Verify(raw string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, errors.Mark(errors.Wrap(err, "verify token"), ErrInvalidToken)
	}
	if claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
