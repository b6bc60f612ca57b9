//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	ua "github.com/whataclass/userauth"
)

// Kind constants for Datastore entities
const (
	KindAccount      = "Account"
	KindAccountEmail = "AccountEmail"
	KindAccountOAuth = "AccountOAuth"
)

// AccountStore implements userauth.AccountStore using Google Cloud
// Datastore.  Email and OAuth-subject uniqueness is enforced with index
// entities inserted in the same transaction as the account, so concurrent
// registrations resolve with exactly one winner.
type AccountStore struct {
	client    *datastore.Client
	namespace string
	ctx       context.Context
}

// NewAccountStore creates a new Datastore-backed AccountStore
func NewAccountStore(client *datastore.Client, namespace string) *AccountStore {
	return &AccountStore{
		client:    client,
		namespace: namespace,
		ctx:       context.Background(),
	}
}

// WithContext returns a copy of the store with the given context
func (s *AccountStore) WithContext(ctx context.Context) *AccountStore {
	return &AccountStore{
		client:    s.client,
		namespace: s.namespace,
		ctx:       ctx,
	}
}

func (s *AccountStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *AccountStore) CreateAccount(acct *ua.Account) error {
	accountKey := s.namespacedKey(KindAccount, acct.ID)
	emailKey := s.namespacedKey(KindAccountEmail, acct.Email)

	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		var existing indexEntity
		err := tx.Get(emailKey, &existing)
		if err == nil {
			return ua.ErrDuplicateAccount
		}
		if err != datastore.ErrNoSuchEntity {
			return err
		}

		if acct.OAuthSubject != "" {
			oauthKey := s.namespacedKey(KindAccountOAuth, acct.OAuthSubject)
			err := tx.Get(oauthKey, &existing)
			if err == nil {
				return ua.ErrDuplicateAccount
			}
			if err != datastore.ErrNoSuchEntity {
				return err
			}
			if _, err := tx.Put(oauthKey, &indexEntity{AccountID: acct.ID}); err != nil {
				return err
			}
		}

		if _, err := tx.Put(emailKey, &indexEntity{AccountID: acct.ID}); err != nil {
			return err
		}
		_, err = tx.Put(accountKey, accountToEntity(acct, accountKey))
		return err
	})
	return err
}

func (s *AccountStore) GetAccountByID(id string) (*ua.Account, error) {
	key := s.namespacedKey(KindAccount, id)
	var entity AccountEntity
	if err := s.client.Get(s.ctx, key, &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, ua.ErrAccountNotFound
		}
		return nil, err
	}
	entity.Key = key
	return entity.toAccount(), nil
}

func (s *AccountStore) GetAccountByEmail(email string) (*ua.Account, error) {
	return s.getByIndex(KindAccountEmail, email)
}

func (s *AccountStore) GetAccountByOAuthSubject(subject string) (*ua.Account, error) {
	if subject == "" {
		return nil, ua.ErrAccountNotFound
	}
	return s.getByIndex(KindAccountOAuth, subject)
}

func (s *AccountStore) getByIndex(kind, name string) (*ua.Account, error) {
	var idx indexEntity
	if err := s.client.Get(s.ctx, s.namespacedKey(kind, name), &idx); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, ua.ErrAccountNotFound
		}
		return nil, err
	}
	return s.GetAccountByID(idx.AccountID)
}

func (s *AccountStore) UpdateAccount(acct *ua.Account) error {
	accountKey := s.namespacedKey(KindAccount, acct.ID)

	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		var prev AccountEntity
		if err := tx.Get(accountKey, &prev); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return ua.ErrAccountNotFound
			}
			return err
		}

		// Linking a new OAuth subject claims its index entity inside the
		// same transaction.
		if acct.OAuthSubject != prev.OAuthSubject {
			if acct.OAuthSubject != "" {
				oauthKey := s.namespacedKey(KindAccountOAuth, acct.OAuthSubject)
				var existing indexEntity
				err := tx.Get(oauthKey, &existing)
				if err == nil {
					return ua.ErrDuplicateAccount
				}
				if err != datastore.ErrNoSuchEntity {
					return err
				}
				if _, err := tx.Put(oauthKey, &indexEntity{AccountID: acct.ID}); err != nil {
					return err
				}
			}
			if prev.OAuthSubject != "" {
				if err := tx.Delete(s.namespacedKey(KindAccountOAuth, prev.OAuthSubject)); err != nil {
					return err
				}
			}
		}

		entity := accountToEntity(acct, accountKey)
		entity.CreatedAt = prev.CreatedAt
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(accountKey, entity)
		return err
	})
	return err
}

// ListAccounts returns up to limit accounts ordered by creation time.
// Intended for admin tooling, not request paths.
func (s *AccountStore) ListAccounts(limit int) ([]*ua.Account, error) {
	q := datastore.NewQuery(KindAccount).Namespace(s.namespace).Order("created_at")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var accounts []*ua.Account
	it := s.client.Run(s.ctx, q)
	for {
		var entity AccountEntity
		key, err := it.Next(&entity)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		entity.Key = key
		accounts = append(accounts, entity.toAccount())
	}
	return accounts, nil
}
