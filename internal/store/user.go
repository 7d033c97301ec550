// Package store holds every SQL statement the application runs against the users table
package store

import (
	"bitwise74/user-api/internal/model"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

const pgUniqueViolation = "23505"

// Users implements the user store on top of gorm. Uniqueness of emails is
// left to the database, callers never check before inserting.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (s *Users) Create(ctx context.Context, u *model.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user, %w", err)
	}

	return nil
}

func (s *Users) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User

	err := s.db.WithContext(ctx).
		Where("email = ?", email).
		First(&u).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user by email, %w", err)
	}

	return &u, nil
}

func (s *Users) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User

	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&u).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user by id, %w", err)
	}

	return &u, nil
}

// UpdateStatus sets status on every row in ids in a single statement and
// reports the rows that were actually touched. Unknown ids are ignored.
func (s *Users) UpdateStatus(ctx context.Context, ids []uint, status model.Status) ([]model.UserRef, error) {
	var users []model.User

	err := s.db.WithContext(ctx).
		Model(&users).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}, {Name: "email"}}}).
		Where("id IN ?", ids).
		Update("status", status).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to update user status, %w", err)
	}

	return model.Refs(users), nil
}

// ActivateUnverified moves a user from unverified to active only when id,
// email and status all match. Anything else is reported as ErrNotFound.
func (s *Users) ActivateUnverified(ctx context.Context, id uint, email string) (*model.User, error) {
	var users []model.User

	r := s.db.WithContext(ctx).
		Model(&users).
		Clauses(clause.Returning{}).
		Where("id = ? AND email = ? AND status = ?", id, email, model.StatusUnverified).
		Update("status", model.StatusActive)
	if r.Error != nil {
		return nil, fmt.Errorf("failed to activate user, %w", r.Error)
	}

	if r.RowsAffected == 0 || len(users) == 0 {
		return nil, ErrNotFound
	}

	return &users[0], nil
}

func (s *Users) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	r := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("last_login", at.UTC())
	if r.Error != nil {
		return fmt.Errorf("failed to update last login, %w", r.Error)
	}

	if r.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *Users) DeleteByIDs(ctx context.Context, ids []uint) ([]model.UserRef, error) {
	return s.deleteWhere(ctx, "id IN ?", ids)
}

func (s *Users) DeleteByStatus(ctx context.Context, status model.Status) ([]model.UserRef, error) {
	return s.deleteWhere(ctx, "status = ?", status)
}

// DeleteUnverifiedBefore removes unverified users registered before cutoff
func (s *Users) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) ([]model.UserRef, error) {
	return s.deleteWhere(ctx, "status = ? AND created_at < ?", model.StatusUnverified, cutoff.UTC())
}

func (s *Users) deleteWhere(ctx context.Context, query string, args ...any) ([]model.UserRef, error) {
	var users []model.User

	err := s.db.WithContext(ctx).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}, {Name: "email"}}}).
		Where(query, args...).
		Delete(&users).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to delete users, %w", err)
	}

	return model.Refs(users), nil
}

// ListAll returns every user, most recent login first. Users that never
// logged in come last.
func (s *Users) ListAll(ctx context.Context) ([]model.User, error) {
	users := []model.User{}

	err := s.db.WithContext(ctx).
		Order("last_login DESC NULLS LAST").
		Order("id ASC").
		Find(&users).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users, %w", err)
	}

	return users, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	// mattn/go-sqlite3 only exposes the constraint in the message
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
