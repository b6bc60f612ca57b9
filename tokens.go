package userauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose scopes a signed token to a single use case. A token minted
// for one purpose never validates for another.
type TokenPurpose string

const (
	PurposeConfirmEmail    TokenPurpose = "confirm-email"
	PurposeRecoverPassword TokenPurpose = "recover-password"
)

// DefaultTokenMaxAge is how long confirmation and recovery links stay
// valid (24 hours).
const DefaultTokenMaxAge = 24 * time.Hour

// SignedTokenIssuer mints and validates stateless, URL-safe signed tokens
// carrying an email address. Tokens are HS256 JWTs signed with a key
// derived from the process secret and the purpose, so there is nothing to
// store or clean up server-side. The trade-off is that a token cannot be
// revoked before its max age elapses.
type SignedTokenIssuer struct {
	secret []byte

	// Now overrides the clock. Nil means time.Now. Tests use this to mint
	// tokens in the past.
	Now func() time.Time
}

// NewSignedTokenIssuer creates an issuer bound to the process-wide secret
// key. The key is loaded once at startup and never rotated mid-process.
func NewSignedTokenIssuer(secretKey string) *SignedTokenIssuer {
	return &SignedTokenIssuer{secret: []byte(secretKey)}
}

func (s *SignedTokenIssuer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// signingKey derives a purpose-specific HMAC key. Deriving rather than
// appending a claim alone means a forged purpose claim still fails the
// signature check.
func (s *SignedTokenIssuer) signingKey(purpose TokenPurpose) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(purpose))
	return mac.Sum(nil)
}

// Issue mints a token for the given purpose carrying the email address and
// an issued-at timestamp. The result is URL-safe and can be embedded in a
// link path segment or query parameter.
func (s *SignedTokenIssuer) Issue(purpose TokenPurpose, email string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": email,
		"pur": string(purpose),
		"iat": s.now().Unix(),
	})
	signed, err := token.SignedString(s.signingKey(purpose))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate checks the signature and the age of tokenString for the given
// purpose and returns the embedded email address. maxAge <= 0 falls back
// to DefaultTokenMaxAge.
//
// Every failure mode returns ErrInvalidToken. Callers must not leak
// whether a token was forged, expired or minted for another purpose.
func (s *SignedTokenIssuer) Validate(purpose TokenPurpose, tokenString string, maxAge time.Duration) (string, error) {
	if maxAge <= 0 {
		maxAge = DefaultTokenMaxAge
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return s.signingKey(purpose), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	if p, _ := claims["pur"].(string); p != string(purpose) {
		return "", ErrInvalidToken
	}

	issuedAt, err := claims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return "", ErrInvalidToken
	}
	if s.now().Sub(issuedAt.Time) > maxAge {
		return "", ErrInvalidToken
	}

	email, err := claims.GetSubject()
	if err != nil || email == "" {
		return "", ErrInvalidToken
	}
	return email, nil
}
