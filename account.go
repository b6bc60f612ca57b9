package userauth

import (
	"time"

	"github.com/google/uuid"
)

// Account is a registered identity: an email address, an optional local
// password and an optional linked OAuth identity.
type Account struct {
	// ID is assigned at creation and never reused.
	ID string `json:"id"`

	// Email is unique across all accounts. Matching is exact: no case
	// folding or normalization is applied, the address is stored as the
	// user typed it.
	Email string `json:"email"`

	// PasswordHash is the bcrypt digest of the local password. It is nil
	// for accounts created through an OAuth provider that never set a
	// local password; such accounts cannot log in with a password.
	PasswordHash []byte `json:"password_hash,omitempty"`

	// EmailConfirmed transitions false to true exactly once, either via a
	// confirmation token or because a trusted OAuth provider already
	// verified the address.
	EmailConfirmed bool `json:"email_confirmed"`

	// OAuthSubject identifies the linked third-party identity (the
	// provider's stable user id). Empty for purely local accounts, unique
	// when present.
	OAuthSubject string `json:"oauth_subject,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPassword reports whether the account can ever authenticate locally.
func (a *Account) HasPassword() bool {
	return len(a.PasswordHash) > 0
}

// NewAccountID generates a new unique account ID.
func NewAccountID() string {
	return uuid.NewString()
}
