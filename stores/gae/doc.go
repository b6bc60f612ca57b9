//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore implementation of the
// userauth AccountStore interface.  It is designed for deployment on Google
// Cloud Platform and supports multi-tenancy through Datastore namespaces.
//
// # Datastore Kinds
//
// The package uses the following Datastore kinds:
//   - Account: the account records
//   - AccountEmail: one entity per registered email, keyed by the email
//   - AccountOAuth: one entity per linked OAuth subject, keyed by the subject
//
// The index kinds are what make account creation race safe: each is
// inserted in the same transaction as the account, so two concurrent
// registrations for the same email cannot both commit.
//
// # Namespacing
//
// Pass a namespace when creating stores to isolate data between tenants:
//
//	store := gae.NewAccountStore(client, "tenant-123")
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	store := gae.NewAccountStore(client, "")  // default namespace
package gae
