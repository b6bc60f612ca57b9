//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"

	ua "github.com/whataclass/userauth"
)

// AccountEntity is the Datastore entity for accounts
type AccountEntity struct {
	Key            *datastore.Key `datastore:"__key__"`
	Email          string         `datastore:"email"`
	PasswordHash   []byte         `datastore:"password_hash,noindex"`
	EmailConfirmed bool           `datastore:"email_confirmed"`
	OAuthSubject   string         `datastore:"oauth_subject"`
	CreatedAt      time.Time      `datastore:"created_at"`
	UpdatedAt      time.Time      `datastore:"updated_at"`
}

func (e *AccountEntity) toAccount() *ua.Account {
	return &ua.Account{
		ID:             e.Key.Name,
		Email:          e.Email,
		PasswordHash:   e.PasswordHash,
		EmailConfirmed: e.EmailConfirmed,
		OAuthSubject:   e.OAuthSubject,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func accountToEntity(acct *ua.Account, key *datastore.Key) *AccountEntity {
	return &AccountEntity{
		Key:            key,
		Email:          acct.Email,
		PasswordHash:   acct.PasswordHash,
		EmailConfirmed: acct.EmailConfirmed,
		OAuthSubject:   acct.OAuthSubject,
		CreatedAt:      acct.CreatedAt,
		UpdatedAt:      acct.UpdatedAt,
	}
}

// indexEntity claims a unique value (an email or an OAuth subject) for one
// account.  The value itself is the entity key, so a transactional
// insert-if-absent gives us the same guarantee a unique index would.
type indexEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	AccountID string         `datastore:"account_id"`
}
