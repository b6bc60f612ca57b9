package userauth

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// AccountManager orchestrates the account lifecycle: signup, email
// confirmation, login, password reset and OAuth identity linking. It owns
// no state of its own; all mutation races are resolved by the store's
// uniqueness constraints.
type AccountManager struct {
	Store  AccountStore
	Hasher *PasswordHasher
	Tokens *SignedTokenIssuer

	// Sender delivers confirmation and recovery links out-of-band. Nil
	// behaves like a sender with no transport configured.
	Sender EmailSender

	// BaseURL is prepended to confirmation/reset paths when building
	// links (e.g. "https://yourapp.com").
	BaseURL string

	// TokenMaxAge bounds the validity of confirmation and recovery
	// tokens. Zero means DefaultTokenMaxAge.
	TokenMaxAge time.Duration
}

func (m *AccountManager) maxAge() time.Duration {
	if m.TokenMaxAge > 0 {
		return m.TokenMaxAge
	}
	return DefaultTokenMaxAge
}

func (m *AccountManager) send(to, subject, body string) error {
	if m.Sender == nil {
		return ErrNoTransport
	}
	return m.Sender.Send(to, subject, body)
}

func (m *AccountManager) link(path, token string) string {
	return fmt.Sprintf("%s%s?token=%s", strings.TrimSuffix(m.BaseURL, "/"), path, token)
}

// SignUp registers a local account for email, unconfirmed, and sends a
// confirmation link. Returns ErrDuplicateAccount if the email is taken;
// the caller surfaces that as a generic "already registered" outcome
// without revealing which field collided.
//
// When no mail transport is configured at all the account is confirmed
// immediately: environments without SMTP (development, self-hosted
// installs) would otherwise lock every user out. A configured transport
// that fails to deliver does NOT auto-confirm; the account stays
// unconfirmed and the failure is logged for the operator.
func (m *AccountManager) SignUp(email, plaintextPassword string) (*Account, error) {
	digest, err := m.Hasher.Hash(plaintextPassword)
	if err != nil {
		return nil, err
	}

	acct := &Account{
		ID:           NewAccountID(),
		Email:        email,
		PasswordHash: digest,
	}
	if err := m.Store.CreateAccount(acct); err != nil {
		return nil, err
	}

	token, err := m.Tokens.Issue(PurposeConfirmEmail, acct.Email)
	if err != nil {
		return nil, err
	}

	sendErr := m.send(acct.Email, "Confirm your email address",
		fmt.Sprintf("Please confirm your email by visiting: %s", m.link("/auth/confirm-email", token)))
	switch {
	case sendErr == nil:
	case errors.Is(sendErr, ErrNoTransport):
		acct.EmailConfirmed = true
		if err := m.Store.UpdateAccount(acct); err != nil {
			return nil, err
		}
		log.Printf("no mail transport configured, auto-confirming account %s", acct.ID)
	default:
		log.Printf("error sending confirmation email for account %s: %v", acct.ID, sendErr)
	}

	return acct, nil
}

// ConfirmEmail validates a confirmation token and marks the account's
// email as confirmed. Confirming an already-confirmed account is a no-op
// success. Invalid, expired and cross-purpose tokens all come back as
// ErrInvalidToken.
func (m *AccountManager) ConfirmEmail(token string) (*Account, error) {
	email, err := m.Tokens.Validate(PurposeConfirmEmail, token, m.maxAge())
	if err != nil {
		return nil, err
	}

	acct, err := m.Store.GetAccountByEmail(email)
	if err != nil {
		return nil, err
	}
	if acct.EmailConfirmed {
		return acct, nil
	}

	acct.EmailConfirmed = true
	if err := m.Store.UpdateAccount(acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// Login authenticates a local account. Unknown email, wrong password, a
// missing local password and an unconfirmed email all return the same
// ErrInvalidCredentials so callers cannot enumerate accounts. Storage
// errors other than "not found" propagate unchanged.
func (m *AccountManager) Login(email, plaintextPassword string) (*Account, error) {
	acct, err := m.Store.GetAccountByEmail(email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !m.Hasher.Verify(plaintextPassword, acct.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !acct.EmailConfirmed {
		return nil, ErrInvalidCredentials
	}
	return acct, nil
}

// RequestPasswordReset sends a recovery link to the account's address.
// Unconfirmed accounts get ErrEmailNotConfirmed instead of a link; resets
// prove control of the mailbox, which an unconfirmed account has not done
// yet. Returns ErrResetUnavailable when the link cannot be delivered.
func (m *AccountManager) RequestPasswordReset(email string) error {
	acct, err := m.Store.GetAccountByEmail(email)
	if err != nil {
		return err
	}
	if !acct.EmailConfirmed {
		return ErrEmailNotConfirmed
	}

	token, err := m.Tokens.Issue(PurposeRecoverPassword, acct.Email)
	if err != nil {
		return err
	}

	if err := m.send(acct.Email, "Password reset requested",
		fmt.Sprintf("Reset your password by visiting: %s", m.link("/auth/reset-password", token))); err != nil {
		log.Printf("error sending reset email for account %s: %v", acct.ID, err)
		return ErrResetUnavailable
	}
	return nil
}

// ResetPassword validates a recovery token and replaces the account's
// password. The token is not single-use: resubmitting the same form
// re-applies the submitted password, which is harmless, and the token
// stops working once its max age elapses.
func (m *AccountManager) ResetPassword(token, newPlaintextPassword string) (*Account, error) {
	email, err := m.Tokens.Validate(PurposeRecoverPassword, token, m.maxAge())
	if err != nil {
		return nil, err
	}

	acct, err := m.Store.GetAccountByEmail(email)
	if err != nil {
		return nil, err
	}

	digest, err := m.Hasher.Hash(newPlaintextPassword)
	if err != nil {
		return nil, err
	}
	acct.PasswordHash = digest
	if err := m.Store.UpdateAccount(acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// EnsureOAuthAccount returns the account linked to the provider subject,
// creating it on first login. New accounts are created confirmed (the
// provider has verified the address) and without a local password.
//
// If the email already belongs to a local account the call fails with
// ErrDuplicateAccount: one account per email, and linking a third-party
// identity to an existing account requires explicit re-authentication,
// never a silent merge.
func (m *AccountManager) EnsureOAuthAccount(subject, email string) (*Account, error) {
	if subject == "" {
		return nil, fmt.Errorf("oauth subject required")
	}

	acct, err := m.Store.GetAccountByOAuthSubject(subject)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	acct = &Account{
		ID:             NewAccountID(),
		Email:          email,
		EmailConfirmed: true,
		OAuthSubject:   subject,
	}
	if err := m.Store.CreateAccount(acct); err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			// A concurrent callback for the same subject may have won the
			// race; in that case the linked account now exists.
			if existing, lookupErr := m.Store.GetAccountByOAuthSubject(subject); lookupErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return acct, nil
}

// LoadAccountByID resolves an account for the surrounding session layer.
// Side-effect free.
func (m *AccountManager) LoadAccountByID(id string) (*Account, error) {
	return m.Store.GetAccountByID(id)
}
