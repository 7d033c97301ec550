// Package model defines database models
package model

import "time"

type Status string

const (
	StatusUnverified Status = "unverified"
	StatusActive     Status = "active"
	StatusBlocked    Status = "blocked"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUnverified, StatusActive, StatusBlocked:
		return true
	}
	return false
}

// User is the only persisted entity. The schema itself lives in db/migrations,
// gorm tags are kept in sync for readability.
type User struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string     `gorm:"not null" json:"name"`
	Email        string     `gorm:"uniqueIndex:idx_users_email_unique;not null" json:"email"`
	PasswordHash string     `gorm:"column:password;not null" json:"-"`
	Status       Status     `gorm:"not null;default:unverified" json:"status"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"-"`
}

// UserRef is what bulk operations report back for every affected row
type UserRef struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

// Profile is the non-sensitive view returned on registration
type Profile struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status Status `json:"status"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Status: u.Status,
	}
}

func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Email: u.Email}
}

func Refs(users []User) []UserRef {
	refs := make([]UserRef, 0, len(users))
	for i := range users {
		refs = append(refs, users[i].Ref())
	}
	return refs
}
