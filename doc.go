// Package userauth provides account authentication for Go applications:
// password logins, email confirmation, password recovery and OAuth sign in,
// all against a single account record per email.
//
// # Architecture
//
// Account: a unique account in your system, identified by ID and email.
// An account may carry a bcrypt password hash (local login), a linked OAuth
// subject (provider login), or both over its lifetime.
//
// AccountStore: the persistence interface. Creation is atomic: when two
// requests race to register the same email, exactly one wins and the other
// receives ErrDuplicateAccount. Implementations are provided for GORM
// databases, Google Cloud Datastore and the local filesystem.
//
// AccountManager: the lifecycle engine. It owns the rules for signup,
// email confirmation, login, password recovery and OAuth account linking,
// independent of any HTTP surface.
//
// # Basic Usage
//
// Create a store and a manager:
//
//	import (
//	    "github.com/whataclass/userauth"
//	    "github.com/whataclass/userauth/stores"
//	)
//
//	store := stores.NewFSAccountStore("/path/to/storage")
//	mgr := &userauth.AccountManager{
//	    Store:   store,
//	    Tokens:  userauth.NewSignedTokenIssuer("your-secret-key"),
//	    Sender:  nil, // accounts auto-confirm when no sender is configured
//	    BaseURL: "https://yourapp.com",
//	}
//
// Wire up the HTTP handlers:
//
//	auth := userauth.New("MyApp")
//	auth.Manager = mgr
//	local := &userauth.LocalAuth{Manager: mgr, HandleUser: auth.SaveUserAndRespond}
//
//	mux := http.NewServeMux()
//	mux.Handle("/auth/login", local)
//	mux.Handle("/auth/signup", http.HandlerFunc(local.HandleSignup))
//	mux.Handle("/auth/confirm-email", http.HandlerFunc(local.HandleConfirmEmail))
//	mux.Handle("/auth/forgot-password", http.HandlerFunc(local.HandleForgotPassword))
//	mux.Handle("/auth/reset-password", http.HandlerFunc(local.HandleResetPassword))
//
// # Security
//
// Passwords are hashed with bcrypt at cost 12. Confirmation and recovery
// tokens are signed, stateless and expiring: each purpose signs with its own
// derived key, so a token minted for email confirmation can never pass as a
// recovery token. Tokens are valid for 24 hours by default and nothing about
// them is persisted server side.
//
// # Testing
//
// Handlers can be tested without a running HTTP server using
// httptest.NewRequest and httptest.ResponseRecorder. The filesystem store
// works against a temporary directory for complete isolation.
package userauth
