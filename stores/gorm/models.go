//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	ua "github.com/whataclass/userauth"
)

// AccountModel is the GORM model for accounts.  Uniqueness of the email and
// of a linked OAuth subject is enforced by the database, not by the
// application: that is what makes concurrent creation safe.
type AccountModel struct {
	ID             string    `gorm:"primaryKey;size:64"`
	Email          string    `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash   []byte    `gorm:""`
	EmailConfirmed bool      `gorm:"default:false"`
	OAuthSubject   *string   `gorm:"uniqueIndex;size:255"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func toModel(acct *ua.Account) *AccountModel {
	model := &AccountModel{
		ID:             acct.ID,
		Email:          acct.Email,
		PasswordHash:   acct.PasswordHash,
		EmailConfirmed: acct.EmailConfirmed,
		CreatedAt:      acct.CreatedAt,
		UpdatedAt:      acct.UpdatedAt,
	}
	// NULL rather than "" so the unique index ignores accounts with no
	// linked OAuth identity.
	if acct.OAuthSubject != "" {
		subject := acct.OAuthSubject
		model.OAuthSubject = &subject
	}
	return model
}

func (m *AccountModel) toAccount() *ua.Account {
	acct := &ua.Account{
		ID:             m.ID,
		Email:          m.Email,
		PasswordHash:   m.PasswordHash,
		EmailConfirmed: m.EmailConfirmed,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.OAuthSubject != nil {
		acct.OAuthSubject = *m.OAuthSubject
	}
	return acct
}
