package userauth

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Auth wires the account manager into an HTTP surface: it owns the session
// manager, the auth-token cookie and the routes under which the local and
// OAuth handlers are mounted. Session establishment lives here; the
// lifecycle rules stay in the AccountManager.
type Auth struct {
	mux        *http.ServeMux
	Session    *scs.SessionManager
	Middleware Middleware

	// Optional name that can be used as a prefix for all required vars
	AppName string

	// Name of the session variable where the auth token is stored
	AuthTokenSessionVar string

	// Must be passed in
	Manager *AccountManager

	// All the domains where the auth token cookies will be set on a login success or logout
	CookieDomains []string

	// JWT related fields
	JwtIssuer    string
	JWTSecretKey string

	// How long is a session cookie valid for.  Defaults to 1 day
	SessionTimeoutInSeconds int
}

func New(appName string) *Auth {
	return (&Auth{AppName: appName}).EnsureDefaults()
}

func (a *Auth) EnsureDefaults() *Auth {
	if a.AppName == "" {
		a.AppName = "UserAuth"
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.JwtIssuer == "" {
		a.JwtIssuer = fmt.Sprintf("%s-Issuer", a.AppName)
	}
	if a.AuthTokenSessionVar == "" {
		a.AuthTokenSessionVar = fmt.Sprintf("%sAuthToken", a.AppName)
	}
	if a.JWTSecretKey == "" {
		a.JWTSecretKey = strings.TrimSpace(os.Getenv("USERAUTH_JWT_SECRET_KEY"))
		if a.JWTSecretKey == "" {
			a.JWTSecretKey = "NotASecretSessionKey12345"
		}
	}
	if a.Middleware.AuthTokenCookieName == "" {
		a.Middleware.AuthTokenCookieName = a.AuthTokenSessionVar
	}
	if a.Middleware.VerifyToken == nil {
		a.Middleware.VerifyToken = a.verifyJWT
	}
	if a.Middleware.SessionGetter == nil && a.Session != nil {
		a.Middleware.SessionGetter = func(r *http.Request, param string) any {
			return a.Session.Get(r.Context(), param)
		}
	}
	return a
}

func (a *Auth) Handler() http.Handler {
	return a.setupRoutes().mux
}

// AddAuth mounts handler under prefix for subtree matching, with a
// method-preserving redirect from the bare prefix.
func (a *Auth) AddAuth(prefix string, handler http.Handler) *Auth {
	a.setupRoutes()
	a.EnsureDefaults()
	prefix = strings.TrimSuffix(prefix, "/")
	withSlashPattern := prefix + "/"
	a.mux.Handle(withSlashPattern, http.StripPrefix(prefix, handler))

	a.mux.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		origPath := r.RequestURI
		if idx := strings.Index(origPath, "?"); idx != -1 {
			origPath = origPath[:idx]
		}
		target := origPath + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		// 308 preserves the HTTP method; 301 would turn POSTs into GETs.
		http.Redirect(w, r, target, http.StatusPermanentRedirect)
	})

	return a
}

func (a *Auth) setupRoutes() *Auth {
	if a.mux == nil {
		a.mux = http.NewServeMux()
		a.mux.HandleFunc("/logout", a.onLogout)
	}
	return a
}

func (a *Auth) verifyJWT(tokenString string) (loggedInAccountId string, t any, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(a.JWTSecretKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", nil, err
	}
	if !token.Valid {
		return "", nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", nil, fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if sub == "" {
		return "", nil, fmt.Errorf("subject not found")
	} else if err != nil {
		return "", nil, err
	}
	return sub, token, nil
}

func (a *Auth) onLogout(w http.ResponseWriter, r *http.Request) {
	a.setLoggedInAccount(nil, w, r)
	toUrl := r.URL.Query().Get("to")
	if toUrl == "" || !IsSafeRedirect(r, toUrl) {
		fmt.Fprintf(w, "Logged Out")
		return
	}
	http.Redirect(w, r, toUrl, http.StatusFound)
}

// SaveUserAndRespond is the HandleUserFunc for local logins and signups:
// it establishes the session and either redirects to a safe "next" target
// or responds with JSON.
func (a *Auth) SaveUserAndRespond(authtype, provider string, token *oauth2.Token, acct *Account, w http.ResponseWriter, r *http.Request) {
	a.setLoggedInAccount(acct, w, r)

	next := r.FormValue("next")
	if next != "" && IsSafeRedirect(r, next) {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"success": true, "account_id": %q, "email": %q}`, acct.ID, acct.Email)
}

// SaveOAuthUserAndRedirect is called by the oauth2 callback handlers with
// the provider's token and raw user info after a successful exchange. It
// resolves (or creates) the linked account and establishes the session.
func (a *Auth) SaveOAuthUserAndRedirect(authtype, provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
	subject := oauthSubject(provider, userInfo)
	email, _ := userInfo["email"].(string)
	if subject == "" || email == "" {
		http.Error(w, "provider did not return an id and email", http.StatusUnauthorized)
		return
	}

	acct, err := a.Manager.EnsureOAuthAccount(subject, email)
	if err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			// The email belongs to an existing local account. Refuse
			// rather than merge.
			http.Error(w, "only one account for each email", http.StatusForbidden)
			return
		}
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	a.setLoggedInAccount(acct, w, r)

	// Auth done - go back to where we need to be
	callbackURL := "/"
	if callbackURLCookie, _ := r.Cookie("oauthCallbackURL"); callbackURLCookie != nil && callbackURLCookie.Value != "" {
		callbackURL = callbackURLCookie.Value
	}
	u, _ := url.Parse(callbackURL)
	if u != nil && u.Scheme == "" {
		callbackURL = os.Getenv("OAUTH2_BASE_URL") + callbackURL
	}
	// delete it too so it wont be used for subsequent redirects
	http.SetCookie(w, &http.Cookie{
		Name:   "oauthCallbackURL",
		Value:  "",
		Path:   "/",
		MaxAge: -1, Expires: time.Now(),
	})
	http.Redirect(w, r, callbackURL, http.StatusFound)
}

// oauthSubject builds a provider-scoped subject so two providers that use
// overlapping numeric ids can never collide.
func oauthSubject(provider string, userInfo map[string]any) string {
	switch id := userInfo["id"].(type) {
	case string:
		if id == "" {
			return ""
		}
		return provider + ":" + id
	case float64:
		return fmt.Sprintf("%s:%.0f", provider, id)
	default:
		return ""
	}
}

// Sets the auth token and logged in account ID cookies on the domains we
// care about. Passing nil logs the current account out.
func (a *Auth) setLoggedInAccount(acct *Account, w http.ResponseWriter, r *http.Request) string {
	a.EnsureDefaults()
	domains := a.CookieDomains
	if slices.Index(a.CookieDomains, "") < 0 { // default domain
		domains = append(domains, "")
	}
	for _, cookieDomain := range domains {
		http.SetCookie(w, &http.Cookie{
			Name:   "oauthstate",
			Value:  "",
			MaxAge: -1, Expires: time.Now(),
			Domain: cookieDomain,
			Path:   "/",
		})

		if acct != nil {
			a.Session.Put(r.Context(), "loggedInAccountId", acct.ID)
			http.SetCookie(w, &http.Cookie{
				Name:    "loggedInAccountId",
				Value:   acct.ID,
				Domain:  cookieDomain,
				Path:    "/",
				Expires: time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)), MaxAge: a.SessionTimeoutInSeconds,
			})

			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": acct.ID,
				"iss": a.JwtIssuer,
				"exp": time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)).Unix(),
				"iat": time.Now().Unix(),
			})
			tokenString, err := token.SignedString([]byte(a.JWTSecretKey))
			if err != nil {
				slog.Info("error signing token", "err", err)
			}

			a.Session.Put(r.Context(), a.AuthTokenSessionVar, tokenString)
			http.SetCookie(w, &http.Cookie{
				Name:    a.AuthTokenSessionVar,
				Value:   tokenString,
				Domain:  cookieDomain,
				Path:    "/",
				Expires: time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)), MaxAge: a.SessionTimeoutInSeconds,
			})
			return tokenString
		}

		// clear the session and cookie values
		log.Println("Logging out account")
		if err := a.Session.Clear(r.Context()); err != nil {
			slog.Warn("error clearing session ", "err", err)
		}
		http.SetCookie(w, &http.Cookie{
			Name:    "loggedInAccountId",
			Domain:  cookieDomain,
			Path:    "/",
			MaxAge:  -1,
			Expires: time.Now(),
		})
		http.SetCookie(w, &http.Cookie{
			Name:    a.AuthTokenSessionVar,
			Domain:  cookieDomain,
			Path:    "/",
			MaxAge:  -1,
			Expires: time.Now(),
		})
	}
	return ""
}

// IsSafeRedirect reports whether target is safe to redirect the browser to
// after login/logout: a relative path, or an absolute http(s) URL on the
// same host as the request. Anything else (other hosts, other schemes,
// protocol-relative "//host" tricks) is rejected.
func IsSafeRedirect(r *http.Request, target string) bool {
	if target == "" {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Scheme == "" && u.Host == "" {
		return strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(u.Path, "//")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host == r.Host
}
