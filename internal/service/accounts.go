package service

import (
	"bitwise74/user-api/internal/model"
	"bitwise74/user-api/internal/store"
	"bitwise74/user-api/pkg/security"
	"bitwise74/user-api/pkg/validators"
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// UserStore is the subset of store.Users the account logic needs
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uint) (*model.User, error)
	UpdateStatus(ctx context.Context, ids []uint, status model.Status) ([]model.UserRef, error)
	ActivateUnverified(ctx context.Context, id uint, email string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id uint, at time.Time) error
	DeleteByIDs(ctx context.Context, ids []uint) ([]model.UserRef, error)
	DeleteByStatus(ctx context.Context, status model.Status) ([]model.UserRef, error)
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) ([]model.UserRef, error)
	ListAll(ctx context.Context) ([]model.User, error)
}

type PasswordHasher interface {
	GenerateFromPassword(p string) (string, error)
	VerifyPasswd(p, encoded string) (bool, error)
}

// Notifier accepts mail jobs without waiting for them to be delivered
type Notifier interface {
	Enqueue(job *MailJob) error
}

type AccountsConfig struct {
	Users    UserStore
	Hasher   PasswordHasher
	Sessions *security.SessionTokens
	Codec    *security.VerificationCodec
	Notifier Notifier
}

// Accounts holds the lifecycle rules for users:
//
//	unverified -> active   (verification link)
//	any        -> blocked  (block)
//	blocked    -> active   (unblock)
//	any        -> removed  (delete)
type Accounts struct {
	users    UserStore
	hasher   PasswordHasher
	sessions *security.SessionTokens
	codec    *security.VerificationCodec
	notifier Notifier
	names    *bluemonday.Policy
	now      func() time.Time

	dummyOnce sync.Once
	dummy     string
}

const maxSanitizePasses = 4

func NewAccounts(c AccountsConfig) *Accounts {
	return &Accounts{
		users:    c.Users,
		hasher:   c.Hasher,
		sessions: c.Sessions,
		codec:    c.Codec,
		notifier: c.Notifier,
		names:    bluemonday.StrictPolicy(),
		now:      time.Now,
	}
}

type LoginResult struct {
	Token string
	User  *model.User
}

func (a *Accounts) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	name = a.normalizeName(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	email = validators.NormalizeEmail(email)
	if err := validators.EmailValidator(email); err != nil {
		return nil, ErrEmailInvalid
	}

	if err := validators.PasswordValidator(password); err != nil {
		return nil, ErrPasswordRequired
	}

	hash, err := a.hasher.GenerateFromPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password, %w", err)
	}

	u := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Status:       model.StatusUnverified,
	}

	if err := a.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	a.scheduleVerification(u)

	return u, nil
}

func (a *Accounts) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := a.users.FindByEmail(ctx, validators.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if h := a.dummyHash(); h != "" {
				_, _ = a.hasher.VerifyPasswd(password, h)
			}
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if u.Status == model.StatusBlocked {
		return nil, ErrAccountBlocked
	}

	ok, err := a.hasher.VerifyPasswd(password, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password, %w", err)
	}

	if !ok {
		return nil, ErrInvalidCredentials
	}

	now := a.now().UTC()
	if err := a.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastLogin = &now

	token, err := a.sessions.Issue(u.ID, u.Email)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, User: u}, nil
}

// Verify activates the user a verification token points to. Malformed
// tokens, mismatched identities and users that aren't unverified anymore
// all produce the same ErrVerificationFailed.
func (a *Accounts) Verify(ctx context.Context, token string) (*model.User, error) {
	p, err := a.codec.Decode(token)
	if err != nil {
		return nil, ErrVerificationFailed
	}

	u, err := a.users.ActivateUnverified(ctx, p.UserID, p.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVerificationFailed
		}
		return nil, err
	}

	return u, nil
}

// ResendVerification queues a new verification mail when email belongs to
// an unverified user. The result is the same whether or not it does.
func (a *Accounts) ResendVerification(ctx context.Context, email string) error {
	u, err := a.users.FindByEmail(ctx, validators.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	if u.Status == model.StatusUnverified {
		a.scheduleVerification(u)
	}

	return nil
}

func (a *Accounts) List(ctx context.Context) ([]model.User, error) {
	return a.users.ListAll(ctx)
}

func (a *Accounts) Block(ctx context.Context, ids []uint) ([]model.UserRef, error) {
	if len(ids) == 0 {
		return nil, ErrNoUsersSelected
	}

	return a.users.UpdateStatus(ctx, ids, model.StatusBlocked)
}

// Unblock always restores to active, a blocked user is never sent back
// through verification
func (a *Accounts) Unblock(ctx context.Context, ids []uint) ([]model.UserRef, error) {
	if len(ids) == 0 {
		return nil, ErrNoUsersSelected
	}

	return a.users.UpdateStatus(ctx, ids, model.StatusActive)
}

func (a *Accounts) Delete(ctx context.Context, ids []uint) ([]model.UserRef, error) {
	if len(ids) == 0 {
		return nil, ErrNoUsersSelected
	}

	return a.users.DeleteByIDs(ctx, ids)
}

func (a *Accounts) DeleteUnverified(ctx context.Context) ([]model.UserRef, error) {
	return a.users.DeleteByStatus(ctx, model.StatusUnverified)
}

// PurgeUnverified removes unverified users that registered more than maxAge ago
func (a *Accounts) PurgeUnverified(ctx context.Context, maxAge time.Duration) ([]model.UserRef, error) {
	return a.users.DeleteUnverifiedBefore(ctx, a.now().Add(-maxAge))
}

// normalizeName strips markup until the decoded name sanitizes to itself,
// so entity encoded tags can't survive by being decoded after the policy ran
func (a *Accounts) normalizeName(name string) string {
	s := strings.TrimSpace(name)

	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(a.names.Sanitize(html.UnescapeString(s)))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}

	// Still changing, keep the escaped form
	return strings.TrimSpace(a.names.Sanitize(s))
}

// dummyHash is verified against when no user matches a login so unknown
// emails cost as much time as wrong passwords
func (a *Accounts) dummyHash() string {
	a.dummyOnce.Do(func() {
		h, err := a.hasher.GenerateFromPassword(gonanoid.Must(32))
		if err != nil {
			zap.L().Error("Failed to generate dummy password hash", zap.Error(err))
			return
		}
		a.dummy = h
	})

	return a.dummy
}

// scheduleVerification never fails the caller, a lost mail can be
// requested again through ResendVerification
func (a *Accounts) scheduleVerification(u *model.User) {
	token, err := a.codec.Encode(u.ID, u.Email, a.now())
	if err != nil {
		zap.L().Error("Failed to encode verification token", zap.Error(err), zap.Uint("user_id", u.ID))
		return
	}

	err = a.notifier.Enqueue(&MailJob{
		UserID: u.ID,
		To:     u.Email,
		Name:   u.Name,
		Token:  token,
	})
	if err != nil {
		zap.L().Error("Failed to enqueue verification mail", zap.Error(err), zap.Uint("user_id", u.ID))
	}
}
