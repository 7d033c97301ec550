package internal

import (
	"bitwise74/user-api/internal/service"
	"bitwise74/user-api/internal/store"
	"bitwise74/user-api/pkg/security"

	"gorm.io/gorm"
)

type Deps struct {
	DB        *gorm.DB
	Users     *store.Users
	Argon     *security.ArgonHash
	Sessions  *security.SessionTokens
	Codec     *security.VerificationCodec
	MailQueue *service.MailQueue
	Accounts  *service.Accounts
	Env       string
	// Exposes error details in responses, only meant for development
	Debug bool
}
