package userauth

// AccountStore persists accounts. Implementations must enforce the
// uniqueness of Email and OAuthSubject at the storage layer, not in
// application logic: two concurrent CreateAccount calls with the same email
// must yield exactly one success and one ErrDuplicateAccount.
//
// Lookups return ErrAccountNotFound when nothing matches. Any other error
// (connection failure, corrupt storage) is passed through untouched so the
// caller can treat it as fatal rather than as "no such account".
type AccountStore interface {
	// CreateAccount inserts a new account. The uniqueness check and the
	// insert happen atomically. Returns ErrDuplicateAccount if the email
	// or the OAuth subject is already taken.
	CreateAccount(acct *Account) error

	// GetAccountByID retrieves an account by its ID.
	GetAccountByID(id string) (*Account, error)

	// GetAccountByEmail retrieves an account by exact email match.
	GetAccountByEmail(email string) (*Account, error)

	// GetAccountByOAuthSubject retrieves the account linked to the given
	// third-party identity.
	GetAccountByOAuthSubject(subject string) (*Account, error)

	// UpdateAccount persists changes to EmailConfirmed and PasswordHash.
	// Last writer wins; these fields see no meaningful contention.
	UpdateAccount(acct *Account) error
}
