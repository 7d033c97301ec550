package validators

import "errors"

var (
	ErrPasswordEmpty   = errors.New("no password provided")
	ErrPasswordTooLong = errors.New("password is too long")
)

// Any non-empty password is accepted. The upper bound only protects the
// hasher from absurd inputs.
func PasswordValidator(p string) error {
	if p == "" {
		return ErrPasswordEmpty
	}

	if len(p) > 1024 {
		return ErrPasswordTooLong
	}

	return nil
}
