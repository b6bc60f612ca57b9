package stores

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	ua "github.com/whataclass/userauth"
)

// FSAccountStore stores accounts as JSON files.  Suitable for development
// and small applications.
//
// Layout under StoragePath:
//
//	accounts/<id>.json             the account record
//	index/email/<sha256(email)>    file containing the account id
//	index/oauth/<sha256(subject)>  file containing the account id
//
// Uniqueness is enforced by creating index files with O_EXCL: when two
// writers race on the same email, the filesystem lets exactly one through.
type FSAccountStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewFSAccountStore(storagePath string) *FSAccountStore {
	return &FSAccountStore{StoragePath: storagePath}
}

func (s *FSAccountStore) accountPath(id string) string {
	return filepath.Join(s.StoragePath, "accounts", id+".json")
}

func (s *FSAccountStore) emailIndexPath(email string) string {
	sum := sha256.Sum256([]byte(email))
	return filepath.Join(s.StoragePath, "index", "email", hex.EncodeToString(sum[:]))
}

func (s *FSAccountStore) oauthIndexPath(subject string) string {
	sum := sha256.Sum256([]byte(subject))
	return filepath.Join(s.StoragePath, "index", "oauth", hex.EncodeToString(sum[:]))
}

// claimIndex creates an index file pointing at id, failing with
// ErrDuplicateAccount when another account already holds it.
func (s *FSAccountStore) claimIndex(path, id string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return ua.ErrDuplicateAccount
		}
		return err
	}
	if _, err := f.WriteString(id); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func (s *FSAccountStore) CreateAccount(acct *ua.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	emailIdx := s.emailIndexPath(acct.Email)
	if err := s.claimIndex(emailIdx, acct.ID); err != nil {
		return err
	}

	if acct.OAuthSubject != "" {
		if err := s.claimIndex(s.oauthIndexPath(acct.OAuthSubject), acct.ID); err != nil {
			os.Remove(emailIdx)
			return err
		}
	}

	if err := writeAtomicJSON(s.accountPath(acct.ID), acct); err != nil {
		os.Remove(emailIdx)
		if acct.OAuthSubject != "" {
			os.Remove(s.oauthIndexPath(acct.OAuthSubject))
		}
		return err
	}
	return nil
}

func (s *FSAccountStore) GetAccountByID(id string) (*ua.Account, error) {
	var acct ua.Account
	if err := readJSONFile(s.accountPath(id), &acct); err != nil {
		if os.IsNotExist(err) {
			return nil, ua.ErrAccountNotFound
		}
		return nil, err
	}
	return &acct, nil
}

func (s *FSAccountStore) GetAccountByEmail(email string) (*ua.Account, error) {
	return s.getByIndex(s.emailIndexPath(email))
}

func (s *FSAccountStore) GetAccountByOAuthSubject(subject string) (*ua.Account, error) {
	if subject == "" {
		return nil, ua.ErrAccountNotFound
	}
	return s.getByIndex(s.oauthIndexPath(subject))
}

func (s *FSAccountStore) getByIndex(indexPath string) (*ua.Account, error) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ua.ErrAccountNotFound
		}
		return nil, err
	}
	return s.GetAccountByID(string(data))
}

func (s *FSAccountStore) UpdateAccount(acct *ua.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.GetAccountByID(acct.ID)
	if err != nil {
		return err
	}

	// An update may link an OAuth subject to an existing account.  The new
	// subject has to be claimed just like on create.
	if acct.OAuthSubject != prev.OAuthSubject {
		if acct.OAuthSubject != "" {
			if err := s.claimIndex(s.oauthIndexPath(acct.OAuthSubject), acct.ID); err != nil {
				return err
			}
		}
		if prev.OAuthSubject != "" {
			os.Remove(s.oauthIndexPath(prev.OAuthSubject))
		}
	}

	return writeAtomicJSON(s.accountPath(acct.ID), acct)
}
