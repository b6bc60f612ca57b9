package userauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// HandleSignup processes user registration
func (a *LocalAuth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if a.Manager == nil {
		http.Error(w, `{"error": "Signup not configured"}`, http.StatusInternalServerError)
		return
	}

	email, password, parseErr := a.parseSignupForm(r)
	if parseErr != nil {
		a.handleSignupError(parseErr, w, r)
		return
	}

	if authErr := a.validateSignup(email, password); authErr != nil {
		a.handleSignupError(authErr, w, r)
		return
	}

	acct, err := a.Manager.SignUp(email, password)
	if err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			// Deliberately vague: do not confirm which field collided.
			a.handleSignupError(NewAuthError(ErrCodeEmailExists, "Already registered", ""), w, r)
			return
		}
		log.Println("error creating account: ", err)
		http.Error(w, `{"error": "Internal error"}`, http.StatusInternalServerError)
		return
	}

	message := "Account created. Please check your email to confirm your address."
	if acct.EmailConfirmed {
		message = "Account created."
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":    true,
		"message":    message,
		"account_id": acct.ID,
	})
}

// validateSignup checks field formats before touching the store.
func (a *LocalAuth) validateSignup(email, password string) *AuthError {
	if !emailRegex.MatchString(email) {
		return NewAuthError(ErrCodeInvalidEmail, "Invalid email format", "email")
	}
	minLen := a.getMinPasswordLength()
	if len(password) < minLen {
		return NewAuthError(ErrCodeWeakPassword, fmt.Sprintf("Password must be at least %d characters", minLen), "password")
	}
	return nil
}

// parseSignupForm parses signup form data without validation
func (a *LocalAuth) parseSignupForm(r *http.Request) (email, password string, authErr *AuthError) {
	contentType := r.Header.Get("Content-Type")
	emailField := a.getEmailField()
	passwordField := a.getPasswordField()

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return "", "", NewAuthError("parse_error", "Error parsing form", "")
		}
		email = r.FormValue(emailField)
		password = r.FormValue(passwordField)
	} else {
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return "", "", NewAuthError("parse_error", "Invalid post body", "")
		}
		if e, ok := data[emailField].(string); ok {
			email = e
		}
		if p, ok := data[passwordField].(string); ok {
			password = p
		}
	}

	if email == "" {
		return "", "", NewAuthError(ErrCodeMissingField, "Email is required", "email")
	}
	if password == "" {
		return "", "", NewAuthError(ErrCodeMissingField, "Password is required", "password")
	}
	return email, password, nil
}
