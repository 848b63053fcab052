// Package otp issues and verifies short-lived one-time codes kept in the job store.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"resume-insight/internal/jobstore"
)

// Purposes keep registration and password-reset codes apart.
const (
	PurposeRegister = "register"
	PurposeReset    = "reset"
)

const codeDigits = 6

var (
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrExpired            = errors.New("verification code expired or not requested")
	ErrTooManyAttempts    = errors.New("too many verification attempts")
	errMalformedChallenge = errors.New("malformed otp entry")
)

type challenge struct {
	Hash      string    `json:"hash"`
	ExpiresAt time.Time `json:"expiresAt"`
	Payload   []byte    `json:"payload,omitempty"`
}

// Manager stores hashed codes with a TTL and a bounded number of attempts.
type Manager struct {
	Store       jobstore.Store
	TTL         time.Duration
	MaxAttempts int

	now func() time.Time
}

func NewManager(store jobstore.Store, ttl time.Duration, maxAttempts int) *Manager {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Manager{Store: store, TTL: ttl, MaxAttempts: maxAttempts, now: time.Now}
}

// Issue creates a fresh code for (purpose, email), replacing any previous one.
// payload is returned by a successful Verify.
func (m *Manager) Issue(ctx context.Context, purpose, email string, payload []byte) (string, error) {
	code, err := newCode()
	if err != nil {
		return "", err
	}
	email = normalize(email)
	ch := challenge{
		Hash:      hashCode(purpose, email, code),
		ExpiresAt: m.now().Add(m.TTL),
		Payload:   payload,
	}
	if err := m.Store.Delete(ctx, triesKey(purpose, email)); err != nil {
		return "", errors.Wrap(err, "reset otp attempts")
	}
	if err := jobstore.PutJSON(ctx, m.Store, key(purpose, email), ch, m.TTL); err != nil {
		return "", errors.Wrap(err, "store otp")
	}
	return code, nil
}

// Reissue replaces the code of a pending challenge and keeps its payload.
func (m *Manager) Reissue(ctx context.Context, purpose, email string) (string, error) {
	ch, err := m.load(ctx, purpose, email)
	if err != nil {
		return "", err
	}
	return m.Issue(ctx, purpose, email, ch.Payload)
}

// Verify checks code and consumes the challenge on success. Every call reserves
// one attempt through the store's atomic counter before the code is compared,
// so concurrent guesses cannot exceed MaxAttempts. The counter outlives a
// discarded challenge and is only reset by Issue.
func (m *Manager) Verify(ctx context.Context, purpose, email, code string) ([]byte, error) {
	email = normalize(email)
	ch, err := m.load(ctx, purpose, email)
	if err != nil {
		return nil, err
	}
	k, tk := key(purpose, email), triesKey(purpose, email)

	attempt, err := m.Store.Incr(ctx, tk, max(ch.ExpiresAt.Sub(m.now()), time.Second))
	if err != nil {
		return nil, errors.Wrap(err, "count otp attempt")
	}
	if attempt > int64(m.MaxAttempts) {
		_ = m.Store.Delete(ctx, k)
		return nil, ErrTooManyAttempts
	}

	want, _ := hex.DecodeString(ch.Hash)
	got, _ := hex.DecodeString(hashCode(purpose, email, strings.TrimSpace(code)))
	if len(want) == 0 || subtle.ConstantTimeCompare(want, got) != 1 {
		if attempt >= int64(m.MaxAttempts) {
			_ = m.Store.Delete(ctx, k)
			return nil, ErrTooManyAttempts
		}
		return nil, ErrInvalidCode
	}

	if err := m.Store.Delete(ctx, k); err != nil {
		return nil, errors.Wrap(err, "consume otp")
	}
	return ch.Payload, nil
}

func (m *Manager) load(ctx context.Context, purpose, email string) (challenge, error) {
	var ch challenge
	ok, err := jobstore.GetJSON(ctx, m.Store, key(purpose, normalize(email)), &ch)
	if err != nil {
		return challenge{}, err
	}
	if !ok {
		return challenge{}, ErrExpired
	}
	if ch.Hash == "" {
		return challenge{}, errMalformedChallenge
	}
	if !m.now().Before(ch.ExpiresAt) {
		return challenge{}, ErrExpired
	}
	return ch, nil
}

func key(purpose, email string) string {
	return jobstore.OTPPrefix + purpose + ":" + email
}

func triesKey(purpose, email string) string {
	return jobstore.OTPTriesPrefix + purpose + ":" + email
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashCode(purpose, email, code string) string {
	sum := sha256.Sum256([]byte(purpose + "|" + email + "|" + code))
	return hex.EncodeToString(sum[:])
}

func newCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", errors.Wrap(err, "generate otp")
	}
	s := n.String()
	return strings.Repeat("0", codeDigits-len(s)) + s, nil
}
