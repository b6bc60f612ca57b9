// Package grpc provides authentication context utilities for passing
// the logged in account between HTTP handlers and gRPC services via
// metadata.
package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// Default metadata keys for authentication context.
// These can be customized via Config if needed.
const (
	// DefaultMetadataKeyAccountID is the default gRPC metadata key for the authenticated account ID
	DefaultMetadataKeyAccountID = "x-account-id"

	// DefaultMetadataKeySwitchAccount is the default gRPC metadata key for impersonating a different account (testing only)
	DefaultMetadataKeySwitchAccount = "x-switch-account"
)

// Config holds the metadata key configuration for auth context.
type Config struct {
	// MetadataKeyAccountID is the gRPC metadata key for the authenticated account ID.
	// Defaults to "x-account-id".
	MetadataKeyAccountID string

	// MetadataKeySwitchAccount is the gRPC metadata key for impersonating a different account.
	// Only used when switch auth is enabled. Defaults to "x-switch-account".
	MetadataKeySwitchAccount string

	// EnableSwitchAuth when true allows the switch-account header to override the account ID.
	// Should only be enabled in development/testing environments.
	EnableSwitchAuth bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyAccountID:     DefaultMetadataKeyAccountID,
		MetadataKeySwitchAccount: DefaultMetadataKeySwitchAccount,
		EnableSwitchAuth:         false,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyAccountID == "" {
		c.MetadataKeyAccountID = DefaultMetadataKeyAccountID
	}
	if c.MetadataKeySwitchAccount == "" {
		c.MetadataKeySwitchAccount = DefaultMetadataKeySwitchAccount
	}
}

// AccountIDFromContext extracts the authenticated account ID from the gRPC
// context metadata.  Returns empty string if nobody is authenticated.
func AccountIDFromContext(ctx context.Context) string {
	return AccountIDFromContextWithConfig(ctx, nil)
}

// AccountIDFromContextWithConfig extracts the authenticated account ID using the specified config.
func AccountIDFromContextWithConfig(ctx context.Context, config *Config) string {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	// Check for a switch-account override first (only if enabled)
	if config.EnableSwitchAuth {
		if values := md.Get(config.MetadataKeySwitchAccount); len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}

	if values := md.Get(config.MetadataKeyAccountID); len(values) > 0 {
		return values[0]
	}

	return ""
}

// AccountIDToOutgoingContext adds the account ID to outgoing gRPC context metadata.
func AccountIDToOutgoingContext(ctx context.Context, accountID string) context.Context {
	return AccountIDToOutgoingContextWithKey(ctx, accountID, DefaultMetadataKeyAccountID)
}

// AccountIDToOutgoingContextWithKey adds the account ID to outgoing gRPC context metadata with a custom key.
func AccountIDToOutgoingContextWithKey(ctx context.Context, accountID string, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, key, accountID)
}

// SwitchAccountToOutgoingContext adds a switch-account header to outgoing gRPC context metadata.
// This is only effective when EnableSwitchAuth is set on the server.
func SwitchAccountToOutgoingContext(ctx context.Context, switchToAccountID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeySwitchAccount, switchToAccountID)
}

// IsAuthenticated returns true if there is an authenticated account in the context.
func IsAuthenticated(ctx context.Context) bool {
	return AccountIDFromContext(ctx) != ""
}

// IsAuthenticatedWithConfig returns true if there is an authenticated account using the specified config.
func IsAuthenticatedWithConfig(ctx context.Context, config *Config) bool {
	return AccountIDFromContextWithConfig(ctx, config) != ""
}
