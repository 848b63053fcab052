package mailer

import (
	"fmt"
	"time"
)

// VerificationCode builds the registration code email.
func VerificationCode(to, name, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Your Resume Insight verification code",
		Body: fmt.Sprintf("Hi %s,\n\nYour verification code is %s. It expires in %d minutes.\n\nIf you did not sign up, ignore this email.\n",
			greetingName(name), code, int(ttl.Minutes())),
	}
}

// PasswordResetCode builds the password reset email.
func PasswordResetCode(to, name, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Reset your Resume Insight password",
		Body: fmt.Sprintf("Hi %s,\n\nUse code %s to reset your password. It expires in %d minutes.\n\nIf you did not ask for a reset, ignore this email.\n",
			greetingName(name), code, int(ttl.Minutes())),
	}
}

// ContactNotification tells the operator about a new contact form message.
func ContactNotification(to, fromName, fromEmail, subject, body string) Message {
	if subject == "" {
		subject = "(no subject)"
	}
	return Message{
		To:      to,
		Subject: "New contact message: " + subject,
		Body:    fmt.Sprintf("From: %s <%s>\n\n%s\n", fromName, fromEmail, body),
	}
}

func greetingName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
