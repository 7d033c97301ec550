package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenMalformed = errors.New("verification token malformed")

type verificationClaims struct {
	jwt.RegisteredClaims
	UserID uint   `json:"uid"`
	Email  string `json:"email"`
}

// VerificationPayload is what a verification link resolves to
type VerificationPayload struct {
	UserID uint
	Email  string
}

// VerificationCodec turns a user id and email into the opaque string put in
// verification links. Tokens are signed and expire, and their audience keeps
// them from being accepted as session tokens (and the other way around).
type VerificationCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewVerificationCodec(secret string, ttl time.Duration) (*VerificationCodec, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}

	if ttl <= 0 {
		return nil, errors.New("verification token lifetime must be positive")
	}

	return &VerificationCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (v *VerificationCodec) Encode(userID uint, email string, issuedAt time.Time) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, verificationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Audience:  jwt.ClaimStrings{audienceVerify},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(v.ttl)),
		},
		UserID: userID,
		Email:  email,
	})

	signed, err := t.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign verification token, %w", err)
	}

	return signed, nil
}

// Decode never says why a token was rejected
func (v *VerificationCodec) Decode(s string) (*VerificationPayload, error) {
	if s == "" {
		return nil, ErrTokenMalformed
	}

	claims := &verificationClaims{}

	token, err := jwt.ParseWithClaims(s, claims, keyFunc(v.secret),
		jwt.WithAudience(audienceVerify),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrTokenMalformed
	}

	if claims.UserID == 0 || claims.Email == "" {
		return nil, ErrTokenMalformed
	}

	return &VerificationPayload{
		UserID: claims.UserID,
		Email:  claims.Email,
	}, nil
}
