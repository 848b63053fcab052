package contact

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"resume-insight/internal/mailer"
	"resume-insight/internal/shared/apperr"
	"resume-insight/internal/shared/telemetry"
)

const (
	maxNameLen    = 100
	maxSubjectLen = 200
	maxMessageLen = 5000
)

type Service struct {
	Repo        Repo
	Mailer      mailer.Mailer
	NotifyEmail string
	notifyAsync bool
	now         func() time.Time
}

func NewService(repo Repo, m mailer.Mailer, notifyEmail string) *Service {
	return &Service{Repo: repo, Mailer: m, NotifyEmail: notifyEmail, notifyAsync: true, now: time.Now}
}

type SubmitInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Submit stores a contact message and notifies the operator without waiting for delivery.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Message, error) {
	msg := Message{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Subject:   strings.TrimSpace(in.Subject),
		Message:   strings.TrimSpace(in.Message),
		Status:    StatusOpen,
		CreatedAt: s.now().UTC(),
	}
	if err := validate(msg); err != nil {
		return Message{}, err
	}
	if err := s.Repo.Create(ctx, msg); err != nil {
		return Message{}, err
	}
	telemetry.Info("contact.received", map[string]any{"contact_id": msg.ID})

	if s.NotifyEmail != "" && s.Mailer != nil {
		note := mailer.ContactNotification(s.NotifyEmail, msg.Name, msg.Email, msg.Subject, msg.Message)
		if s.notifyAsync {
			go s.notify(context.WithoutCancel(ctx), msg.ID, note)
		} else {
			s.notify(ctx, msg.ID, note)
		}
	}
	return msg, nil
}

func (s *Service) notify(ctx context.Context, id string, note mailer.Message) {
	if err := s.Mailer.Send(ctx, note); err != nil {
		telemetry.Warn("contact.notify_failed", map[string]any{"contact_id": id, "error": err.Error()})
	}
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]Message, error) {
	if status != "" && status != StatusOpen && status != StatusResolved {
		return nil, apperr.Validation("status must be %q or %q", StatusOpen, StatusResolved)
	}
	return s.Repo.List(ctx, status, limit, offset)
}

func (s *Service) SetStatus(ctx context.Context, id, status string) (Message, error) {
	if status != StatusOpen && status != StatusResolved {
		return Message{}, apperr.Validation("status must be %q or %q", StatusOpen, StatusResolved)
	}
	return s.Repo.UpdateStatus(ctx, id, status)
}

func (s *Service) CountOpen(ctx context.Context) (int, error) {
	return s.Repo.CountByStatus(ctx, StatusOpen)
}

func validate(m Message) error {
	if m.Name == "" || utf8.RuneCountInString(m.Name) > maxNameLen {
		return apperr.Validation("name is required and must be at most %d characters", maxNameLen)
	}
	addr, err := mail.ParseAddress(m.Email)
	if err != nil || addr.Address != m.Email {
		return apperr.Validation("a valid email is required")
	}
	if utf8.RuneCountInString(m.Subject) > maxSubjectLen {
		return apperr.Validation("subject must be at most %d characters", maxSubjectLen)
	}
	if m.Message == "" || utf8.RuneCountInString(m.Message) > maxMessageLen {
		return apperr.Validation("message is required and must be at most %d characters", maxMessageLen)
	}
	return nil
}
