package userauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// HandleUserFunc is called after a successful authentication. The oauth2
// token is nil for local password logins.
type HandleUserFunc func(authtype string, provider string, token *oauth2.Token, acct *Account, w http.ResponseWriter, r *http.Request)

// LocalAuth serves email/password authentication over HTTP: login, signup,
// email confirmation, forgot-password and reset-password. All the actual
// lifecycle rules live in the AccountManager; these handlers only parse
// requests and render outcomes.
type LocalAuth struct {
	Manager *AccountManager

	// Provider name (defaults to "local")
	Provider string

	// Form field names
	EmailField    string
	PasswordField string

	// MinPasswordLength for signup and reset (defaults to 8)
	MinPasswordLength int

	// Handler called after successful authentication
	HandleUser HandleUserFunc

	// OnSignupError is called when signup fails. If nil, returns JSON error.
	OnSignupError AuthErrorHandler

	// OnLoginError is called when login fails. If nil, returns JSON error.
	OnLoginError AuthErrorHandler
}

// ServeHTTP handles login requests
func (a *LocalAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.Manager == nil {
		http.Error(w, `{"error": "Login not configured"}`, http.StatusInternalServerError)
		return
	}

	email, password, err := a.parseLoginForm(r)
	if err != nil {
		a.handleLoginError(NewAuthError(ErrCodeMissingField, err.Error(), "email"), w, r)
		return
	}

	acct, err := a.Manager.Login(email, password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			// storage failure, not the user's fault
			log.Println("error during login: ", err)
			http.Error(w, `{"error": "Internal error"}`, http.StatusInternalServerError)
			return
		}
		// Unknown email, wrong password and unconfirmed accounts all get
		// the same message.
		a.handleLoginError(NewAuthError(ErrCodeInvalidCreds, "Invalid credentials", "password"), w, r)
		return
	}

	a.HandleUser("local", a.getProvider(), nil, acct, w, r)
}

func (a *LocalAuth) parseLoginForm(r *http.Request) (email, password string, err error) {
	contentType := r.Header.Get("Content-Type")
	emailField := a.getEmailField()
	passwordField := a.getPasswordField()

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err = r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("error parsing form")
		}
		email = r.FormValue(emailField)
		password = r.FormValue(passwordField)
	} else {
		var data map[string]any
		if err = json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return "", "", fmt.Errorf("invalid post body")
		}
		if e, ok := data[emailField].(string); ok {
			email = e
		}
		if p, ok := data[passwordField].(string); ok {
			password = p
		}
	}

	if email == "" || password == "" {
		return "", "", fmt.Errorf("email and password required")
	}

	return email, password, nil
}

func (a *LocalAuth) getProvider() string {
	if a.Provider != "" {
		return a.Provider
	}
	return "local"
}

func (a *LocalAuth) getEmailField() string {
	if a.EmailField != "" {
		return a.EmailField
	}
	return "email"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}

func (a *LocalAuth) getMinPasswordLength() int {
	if a.MinPasswordLength > 0 {
		return a.MinPasswordLength
	}
	return 8
}

// HandleConfirmEmail handles email confirmation via token
func (a *LocalAuth) HandleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, `{"error": "Token required"}`, http.StatusBadRequest)
		return
	}

	// Forged, expired and unknown-account tokens all render the same
	// not-found response.
	if _, err := a.Manager.ConfirmEmail(token); err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrAccountNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Println("error confirming email: ", err)
		http.Error(w, `{"error": "Internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "Email confirmed successfully",
	})
}

// HandleForgotPassword handles password reset requests (POST)
func (a *LocalAuth) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, `{"error": "Invalid form data"}`, http.StatusBadRequest)
		return
	}

	email := r.FormValue(a.getEmailField())
	if email == "" {
		http.Error(w, `{"error": "Email required"}`, http.StatusBadRequest)
		return
	}

	err := a.Manager.RequestPasswordReset(email)
	switch {
	case err == nil:
	case errors.Is(err, ErrAccountNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, ErrEmailNotConfirmed):
		a.writeError(w, http.StatusBadRequest, ErrCodeNotConfirmed, "The email was not confirmed yet", "email")
		return
	case errors.Is(err, ErrResetUnavailable):
		a.writeError(w, http.StatusServiceUnavailable, ErrCodeResetUnavailable,
			"Feature not available until the administrator of the service sets up an email transport", "")
		return
	default:
		log.Println("error requesting password reset: ", err)
		http.Error(w, `{"error": "Internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "A reset link has been sent",
	})
}

// HandleResetPassword handles password reset submissions (POST)
func (a *LocalAuth) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, `{"error": "Invalid form data"}`, http.StatusBadRequest)
		return
	}

	token := r.FormValue("token")
	password := r.FormValue(a.getPasswordField())
	if token == "" || password == "" {
		http.Error(w, `{"error": "Token and password required"}`, http.StatusBadRequest)
		return
	}

	if len(password) < a.getMinPasswordLength() {
		a.writeError(w, http.StatusBadRequest, ErrCodeWeakPassword,
			fmt.Sprintf("Password must be at least %d characters", a.getMinPasswordLength()), "password")
		return
	}

	acct, err := a.Manager.ResetPassword(token, password)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrAccountNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Println("error resetting password: ", err)
		http.Error(w, `{"error": "Internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "Password reset successfully",
		"email":   acct.Email,
	})
}

func (a *LocalAuth) writeError(w http.ResponseWriter, status int, code, message, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": message,
		"code":  code,
		"field": field,
	})
}

// handleLoginError handles login errors using the configured handler or default JSON
func (a *LocalAuth) handleLoginError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnLoginError != nil && a.OnLoginError(err, w, r) {
		return
	}
	statusCode := http.StatusUnauthorized
	if err.Code == ErrCodeMissingField || err.Code == ErrCodeInvalidEmail {
		statusCode = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]any{
		"error": err.Message,
		"code":  err.Code,
		"field": err.Field,
	})
}

// handleSignupError handles signup errors using the configured handler or default JSON
func (a *LocalAuth) handleSignupError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnSignupError != nil && a.OnSignupError(err, w, r) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": err.Message,
		"code":  err.Code,
		"field": err.Field,
	})
}
