package users

import (
	"context"
	"encoding/json"
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"resume-insight/internal/mailer"
	"resume-insight/internal/otp"
	"resume-insight/internal/shared/apperr"
	"resume-insight/internal/shared/auth"
	"resume-insight/internal/shared/telemetry"
)

// ErrInvalidCredentials hides whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt input limit
	maxNameLen     = 100
)

type Service struct {
	Repo        Repo
	OTP         *otp.Manager
	Mailer      mailer.Mailer
	Signer      *auth.Signer
	AdminEmails []string

	bcryptCost int
}

func NewService(repo Repo, codes *otp.Manager, m mailer.Mailer, signer *auth.Signer, adminEmails []string) *Service {
	return &Service{
		Repo:        repo,
		OTP:         codes,
		Mailer:      m,
		Signer:      signer,
		AdminEmails: adminEmails,
		bcryptCost:  bcrypt.DefaultCost,
	}
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register starts a password sign-up. The account is created only after VerifyRegistration.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	name := strings.TrimSpace(in.Name)
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return err
	}
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return apperr.Validation("name is required and must be at most %d characters", maxNameLen)
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}
	if _, err := s.Repo.GetByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	payload, err := json.Marshal(pendingRegistration{Name: name, Email: email, PasswordHash: string(hash)})
	if err != nil {
		return errors.Wrap(err, "encode registration")
	}
	code, err := s.OTP.Issue(ctx, otp.PurposeRegister, email, payload)
	if err != nil {
		return err
	}
	telemetry.Info("auth.registration_started", map[string]any{"email": email})
	return s.Mailer.Send(ctx, mailer.VerificationCode(email, name, code, s.OTP.TTL))
}

// VerifyRegistration completes sign-up with the emailed code and signs the user in.
func (s *Service) VerifyRegistration(ctx context.Context, email, code string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	payload, err := s.OTP.Verify(ctx, otp.PurposeRegister, email, code)
	if err != nil {
		return Session{}, err
	}
	var pending pendingRegistration
	if err := json.Unmarshal(payload, &pending); err != nil {
		return Session{}, errors.Wrap(err, "decode registration")
	}

	user := User{
		ID:           uuid.NewString(),
		Name:         pending.Name,
		Email:        pending.Email,
		PasswordHash: pending.PasswordHash,
		Role:         s.roleFor(pending.Email),
		Provider:     ProviderPassword,
		Verified:     true,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return Session{}, err
	}
	telemetry.Info("auth.registered", map[string]any{"user_id": user.ID, "role": user.Role})
	return s.session(user)
}

// ResendRegistrationCode sends a new code for a pending sign-up.
func (s *Service) ResendRegistrationCode(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	code, err := s.OTP.Reissue(ctx, otp.PurposeRegister, email)
	if err != nil {
		return err
	}
	return s.Mailer.Send(ctx, mailer.VerificationCode(email, "", code, s.OTP.TTL))
}

// Login checks a password and signs the user in.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if user.PasswordHash == "" {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(user)
}

// ForgotPassword emails a reset code when the account exists. Unknown emails are not reported.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			telemetry.Info("auth.reset_unknown_email", nil)
			return nil
		}
		return err
	}
	code, err := s.OTP.Issue(ctx, otp.PurposeReset, email, []byte(user.ID))
	if err != nil {
		return err
	}
	if err := s.Mailer.Send(ctx, mailer.PasswordResetCode(email, user.Name, code, s.OTP.TTL)); err != nil {
		telemetry.Warn("auth.reset_mail_failed", map[string]any{"user_id": user.ID, "error": err.Error()})
	}
	return nil
}

// ResetPassword sets a new password using an emailed reset code.
func (s *Service) ResetPassword(ctx context.Context, email, code, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	payload, err := s.OTP.Verify(ctx, otp.PurposeReset, email, code)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	userID := string(payload)
	if err := s.Repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}
	telemetry.Info("auth.password_reset", map[string]any{"user_id": userID})
	return nil
}

// GoogleProfile is the identity returned by Google sign-in.
type GoogleProfile struct {
	Email         string
	Name          string
	EmailVerified bool
}

// SignInWithGoogle finds or creates the account for a Google identity.
func (s *Service) SignInWithGoogle(ctx context.Context, p GoogleProfile) (Session, error) {
	email, err := normalizeEmail(p.Email)
	if err != nil {
		return Session{}, err
	}
	// An unverified Google email proves nothing about who owns the address.
	if !p.EmailVerified {
		return Session{}, apperr.Validation("Google account email is not verified")
	}
	user, err := s.Repo.GetByEmail(ctx, email)
	if err == nil {
		return s.session(user)
	}
	if !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}
	user = User{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(p.Name),
		Email:    email,
		Role:     s.roleFor(email),
		Provider: ProviderGoogle,
		Verified: true,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			if existing, getErr := s.Repo.GetByEmail(ctx, email); getErr == nil {
				return s.session(existing)
			}
		}
		return Session{}, err
	}
	telemetry.Info("auth.registered", map[string]any{"user_id": user.ID, "provider": ProviderGoogle})
	return s.session(user)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]User, error) {
	return s.Repo.List(ctx, limit, offset)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.Repo.Count(ctx)
}

func (s *Service) Delete(ctx context.Context, userID string) error {
	return s.Repo.Delete(ctx, userID)
}

func (s *Service) session(user User) (Session, error) {
	token, err := s.Signer.Sign(user.ID, user.Email, user.Name, user.Role)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user}, nil
}

func (s *Service) roleFor(email string) string {
	if slices.Contains(s.AdminEmails, strings.ToLower(email)) {
		return auth.RoleAdmin
	}
	return auth.RoleUser
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("a valid email is required")
	}
	return email, nil
}

func validatePassword(pw string) error {
	if len(pw) < minPasswordLen || len(pw) > maxPasswordLen {
		return apperr.Validation("password must be between %d and %d characters", minPasswordLen, maxPasswordLen)
	}
	return nil
}
