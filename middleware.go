package userauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type accountParamNameKey string

// Middleware resolves the logged in account for a request, checking the
// session first and falling back to a bearer token in the Authorization
// header or the auth cookie.
type Middleware struct {
	AuthTokenHeaderName string
	AuthTokenCookieName string
	AccountParamName    string
	CallbackURLParam    string
	SessionGetter       func(r *http.Request, param string) any
	GetRedirURL         func(r *http.Request) string
	VerifyToken         func(tokenString string) (loggedInAccountId string, token any, err error)
}

func (a *Middleware) EnsureReasonableDefaults() {
	if a.AccountParamName == "" {
		a.AccountParamName = "loggedInAccountId"
	}
	if a.CallbackURLParam == "" {
		a.CallbackURLParam = "callbackURL"
	}
	if a.AuthTokenHeaderName == "" {
		a.AuthTokenHeaderName = "Authorization"
	}
}

// GetLoggedInAccountId returns the ID of the account bound to this request,
// or "" when nobody is logged in. Order of precedence: request context,
// session, then auth tokens from the header and cookie.
func (a *Middleware) GetLoggedInAccountId(r *http.Request) string {
	v := r.Context().Value(accountParamNameKey(a.AccountParamName))
	if v != nil {
		if accountId, ok := v.(string); ok && accountId != "" {
			return accountId
		}
	}

	if a.SessionGetter != nil {
		sessParam := a.SessionGetter(r, a.AccountParamName)
		if s, ok := sessParam.(string); ok && s != "" {
			return s
		}
	}

	if a.VerifyToken == nil {
		slog.Warn("No auth token verifier found.  Please set one")
		return ""
	}

	// Otherwise check the Auth header and cookie
	authTokens := r.Header.Values(a.AuthTokenHeaderName)
	for _, cookie := range r.CookiesNamed(a.AuthTokenCookieName) {
		if len(cookie.Value) > 0 {
			authTokens = append(authTokens, cookie.Value)
		}
	}

	for _, authToken := range authTokens {
		authToken = strings.TrimPrefix(authToken, "Bearer ")
		loggedInAccountId, _, err := a.VerifyToken(authToken)
		if err == nil && loggedInAccountId != "" {
			return loggedInAccountId
		} else if err != nil {
			slog.Warn("Error verifying token: ", "error", err)
		}
	}
	return ""
}

// ExtractAccount resolves the logged in account (if any) and stashes its ID
// in the request context for downstream handlers. It never rejects the
// request; use EnsureAccount for that.
func (a *Middleware) ExtractAccount(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			accountId := a.GetLoggedInAccountId(r)
			next.ServeHTTP(w, a.setLoggedInAccountId(accountId, r))
		},
	)
}

// EnsureAccount is ExtractAccount plus enforcement: requests with no logged
// in account are redirected to the login URL (when GetRedirURL is set) or
// rejected with a 401.
func (a *Middleware) EnsureAccount(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			accountId := a.GetLoggedInAccountId(r)
			if accountId == "" {
				redirUrl := ""
				if a.GetRedirURL != nil {
					redirUrl = a.GetRedirURL(r)
				}
				if redirUrl != "" {
					originalUrl := r.URL.Path
					encodedUrl := strings.Replace(url.QueryEscape(originalUrl), "+", "%20", -1)
					fullRedirUrl := fmt.Sprintf("%s?%s=%s", redirUrl, a.CallbackURLParam, encodedUrl)
					http.Redirect(w, r, fullRedirUrl, http.StatusFound)
				} else {
					http.Error(w, "Login Required", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, a.setLoggedInAccountId(accountId, r))
		},
	)
}

// Makes the account ID available to all other handlers downstream.
func (a *Middleware) setLoggedInAccountId(accountId string, r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), accountParamNameKey(a.AccountParamName), accountId)
	return r.WithContext(ctx)
}
