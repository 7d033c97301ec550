package validators

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmailValidator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want error
	}{
		{"alice@x.com", nil},
		{"", ErrEmailEmpty},
		{"alice", ErrEmailInvalid},
		{"Alice <alice@x.com>", ErrEmailInvalid},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EmailValidator(tt.in), tt.in)
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "alice@x.com", NormalizeEmail("  Alice@X.COM "))
}

func TestPasswordValidator(t *testing.T) {
	t.Parallel()

	assert.NoError(t, PasswordValidator("a"))
	assert.ErrorIs(t, PasswordValidator(""), ErrPasswordEmpty)
	assert.ErrorIs(t, PasswordValidator(strings.Repeat("a", 1025)), ErrPasswordTooLong)
}
