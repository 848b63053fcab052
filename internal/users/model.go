package users

import "time"

// Sign-in providers.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Provider     string    `json:"provider"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Session is returned after a successful sign-in.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// pendingRegistration travels inside the registration OTP until the email is verified.
type pendingRegistration struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}
