package service

import "errors"

// Errors returned by Accounts. Anything not listed here is an internal
// failure and should be reported as such.
var (
	ErrNameRequired       = errors.New("name is required")
	ErrEmailInvalid       = errors.New("valid email is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrEmailTaken         = errors.New("this email is already registered, please use a different email or login")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountBlocked     = errors.New("your account has been blocked, please contact administrator")
	ErrVerificationFailed = errors.New("verification failed, the link is invalid, expired or was already used")
	ErrNoUsersSelected    = errors.New("no users selected")
	ErrQueueFull          = errors.New("mail queue full")
	ErrQueueClosed        = errors.New("mail queue closed")
)

// IsValidation reports whether err was caused by bad client input
func IsValidation(err error) bool {
	return errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrEmailInvalid) ||
		errors.Is(err, ErrPasswordRequired) ||
		errors.Is(err, ErrNoUsersSelected)
}
