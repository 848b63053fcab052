package otp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-insight/internal/jobstore"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestManager(t *testing.T) (*Manager, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(jobstore.NewMemoryStore(jobstore.DefaultTTL, c.Now), 10*time.Minute, 3)
	m.now = c.Now
	return m, c
}

func TestIssueAndVerify(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	code, err := m.Issue(ctx, PurposeRegister, "Ada@Example.com", []byte(`{"name":"Ada"}`))
	require.NoError(t, err)
	assert.Len(t, code, 6)

	payload, err := m.Verify(ctx, PurposeRegister, "ada@example.com ", code)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ada"}`, string(payload))

	_, err = m.Verify(ctx, PurposeRegister, "ada@example.com", code)
	assert.ErrorIs(t, err, ErrExpired, "codes are single use")
}

func TestVerifyWrongPurposeFails(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	code, err := m.Issue(ctx, PurposeReset, "a@example.com", nil)
	require.NoError(t, err)

	_, err = m.Verify(ctx, PurposeRegister, "a@example.com", code)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyLocksAfterMaxAttempts(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	code, err := m.Issue(ctx, PurposeReset, "a@example.com", nil)
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	_, err = m.Verify(ctx, PurposeReset, "a@example.com", wrong)
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, err = m.Verify(ctx, PurposeReset, "a@example.com", wrong)
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, err = m.Verify(ctx, PurposeReset, "a@example.com", wrong)
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	_, err = m.Verify(ctx, PurposeReset, "a@example.com", code)
	assert.ErrorIs(t, err, ErrExpired, "locked challenge is discarded")
}

func TestVerifyAfterTTL(t *testing.T) {
	m, c := newTestManager(t)
	ctx := context.Background()
	code, err := m.Issue(ctx, PurposeRegister, "a@example.com", nil)
	require.NoError(t, err)

	c.now = c.now.Add(11 * time.Minute)
	_, err = m.Verify(ctx, PurposeRegister, "a@example.com", code)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestReissueKeepsPayloadAndInvalidatesOldCode(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	first, err := m.Issue(ctx, PurposeRegister, "a@example.com", []byte("pending"))
	require.NoError(t, err)

	second, err := m.Reissue(ctx, PurposeRegister, "a@example.com")
	require.NoError(t, err)
	if first != second {
		_, err = m.Verify(ctx, PurposeRegister, "a@example.com", first)
		assert.ErrorIs(t, err, ErrInvalidCode)
	}

	payload, err := m.Verify(ctx, PurposeRegister, "a@example.com", second)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(payload))
}

func TestReissueWithoutChallenge(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Reissue(context.Background(), PurposeRegister, "nobody@example.com")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyConcurrentGuessesRespectMaxAttempts(t *testing.T) {
	m, _ := newTestManager(t)
	m.MaxAttempts = 5
	ctx := context.Background()
	code, err := m.Issue(ctx, PurposeReset, "a@example.com", nil)
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		compared int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Verify(ctx, PurposeReset, "a@example.com", wrong)
			if errors.Is(err, ErrInvalidCode) {
				mu.Lock()
				compared++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, compared, 4, "at most MaxAttempts-1 guesses may be answered as merely invalid")
	_, err = m.Verify(ctx, PurposeReset, "a@example.com", code)
	assert.Error(t, err, "the real code must not verify after the attempt budget is spent")
}

func TestIssueResetsAttemptBudget(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	first, err := m.Issue(ctx, PurposeRegister, "a@example.com", nil)
	require.NoError(t, err)
	wrong := "000000"
	if first == wrong {
		wrong = "111111"
	}
	_, err = m.Verify(ctx, PurposeRegister, "a@example.com", wrong)
	require.ErrorIs(t, err, ErrInvalidCode)
	_, err = m.Verify(ctx, PurposeRegister, "a@example.com", wrong)
	require.ErrorIs(t, err, ErrInvalidCode)

	second, err := m.Issue(ctx, PurposeRegister, "a@example.com", []byte("fresh"))
	require.NoError(t, err)
	if second != wrong {
		_, err = m.Verify(ctx, PurposeRegister, "a@example.com", wrong)
		require.ErrorIs(t, err, ErrInvalidCode, "a new code starts a new budget")
	}
	payload, err := m.Verify(ctx, PurposeRegister, "a@example.com", second)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(payload))
}
