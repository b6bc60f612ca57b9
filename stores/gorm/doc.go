//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-based implementation of the userauth
// AccountStore interface.  It works with any database GORM supports
// (PostgreSQL, MySQL, SQLite, etc.) and is the implementation to use in
// production: email and OAuth-subject uniqueness are enforced by database
// unique indexes, so concurrent registrations for the same email resolve
// with exactly one winner.
//
// # Usage
//
//	db, _ := gormstore.OpenSQLite("accounts.db")
//	if err := gormstore.AutoMigrateWithRetry(db, 5, 5*time.Second); err != nil {
//	    log.Fatal(err)
//	}
//	store := gormstore.NewAccountStore(db)
package gorm
