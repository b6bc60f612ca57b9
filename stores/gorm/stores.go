//go:build !wasm
// +build !wasm

package gorm

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	ua "github.com/whataclass/userauth"
)

// OpenSQLite opens (or creates) a SQLite database at dbPath with error
// translation enabled, which is what lets us detect duplicate key
// violations portably.  The busy timeout keeps concurrent writers queued
// instead of failing with SQLITE_BUSY.
func OpenSQLite(dbPath string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(10000)"), &gorm.Config{
		TranslateError: true,
	})
}

// AutoMigrate runs database migrations for the accounts table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountModel{})
}

// AutoMigrateWithRetry retries the migration a few times before giving up,
// for deployments where the database comes up after the application does.
func AutoMigrateWithRetry(db *gorm.DB, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		attempts = 5
	}
	if delay <= 0 {
		delay = 5 * time.Second
	}
	var err error
	for i := range attempts {
		if err = AutoMigrate(db); err == nil {
			return nil
		}
		slog.Warn("migration failed, retrying", "attempt", i+1, "attempts", attempts, "err", err)
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}

// AccountStore implements userauth.AccountStore using GORM.
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) CreateAccount(acct *ua.Account) error {
	if err := s.db.Create(toModel(acct)).Error; err != nil {
		if isDuplicateErr(err) {
			return ua.ErrDuplicateAccount
		}
		return err
	}
	return nil
}

func (s *AccountStore) GetAccountByID(id string) (*ua.Account, error) {
	return s.first("id = ?", id)
}

func (s *AccountStore) GetAccountByEmail(email string) (*ua.Account, error) {
	return s.first("email = ?", email)
}

func (s *AccountStore) GetAccountByOAuthSubject(subject string) (*ua.Account, error) {
	if subject == "" {
		return nil, ua.ErrAccountNotFound
	}
	return s.first("o_auth_subject = ?", subject)
}

func (s *AccountStore) first(query string, arg any) (*ua.Account, error) {
	var model AccountModel
	if err := s.db.First(&model, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ua.ErrAccountNotFound
		}
		return nil, err
	}
	return model.toAccount(), nil
}

func (s *AccountStore) UpdateAccount(acct *ua.Account) error {
	model := toModel(acct)
	// Save with Select("*") so false/nil fields are written too; a plain
	// Updates call would skip zero values.
	res := s.db.Model(&AccountModel{}).
		Where("id = ?", acct.ID).
		Select("*").Omit("id", "created_at").
		Updates(model)
	if res.Error != nil {
		if isDuplicateErr(res.Error) {
			return ua.ErrDuplicateAccount
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ua.ErrAccountNotFound
	}
	return nil
}

func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Fallback for drivers that are not covered by TranslateError.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
