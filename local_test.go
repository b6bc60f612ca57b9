package userauth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	ua "github.com/whataclass/userauth"
	"github.com/whataclass/userauth/stores"
)

// captureSender records outgoing mail so tests can fish tokens out of the
// links.
type captureSender struct {
	mu     sync.Mutex
	bodies []string
}

func (s *captureSender) Send(to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies = append(s.bodies, body)
	return nil
}

func (s *captureSender) lastToken(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bodies) == 0 {
		t.Fatal("no mail captured")
	}
	body := s.bodies[len(s.bodies)-1]
	idx := strings.Index(body, "token=")
	if idx < 0 {
		t.Fatalf("no token in mail body: %q", body)
	}
	token := body[idx+len("token="):]
	if end := strings.IndexAny(token, " \n"); end >= 0 {
		token = token[:end]
	}
	return token
}

func setupLocalAuth(t *testing.T, sender ua.EmailSender) *ua.LocalAuth {
	t.Helper()
	mgr := &ua.AccountManager{
		Store:   stores.NewFSAccountStore(t.TempDir()),
		Hasher:  &ua.PasswordHasher{Cost: bcrypt.MinCost},
		Tokens:  ua.NewSignedTokenIssuer("test-secret-key"),
		Sender:  sender,
		BaseURL: "http://localhost:8080",
	}
	return &ua.LocalAuth{
		Manager: mgr,
		HandleUser: func(authtype, provider string, token *oauth2.Token, acct *ua.Account, w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"success": true, "account_id": acct.ID})
		},
	}
}

func postForm(handler http.HandlerFunc, path string, form map[string]string) *httptest.ResponseRecorder {
	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	req := httptest.NewRequest("POST", path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestHandleSignup(t *testing.T) {
	localAuth := setupLocalAuth(t, &captureSender{})

	tests := []struct {
		name           string
		formData       map[string]string
		expectedStatus int
		checkError     string
	}{
		{
			name: "successful signup",
			formData: map[string]string{
				"email":    "test@example.com",
				"password": "password123",
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "duplicate email",
			formData: map[string]string{
				"email":    "test@example.com",
				"password": "password123",
			},
			expectedStatus: http.StatusBadRequest,
			checkError:     "Already registered",
		},
		{
			name: "weak password",
			formData: map[string]string{
				"email":    "test3@example.com",
				"password": "pass",
			},
			expectedStatus: http.StatusBadRequest,
			checkError:     "at least 8 characters",
		},
		{
			name: "invalid email",
			formData: map[string]string{
				"email":    "not-an-email",
				"password": "password123",
			},
			expectedStatus: http.StatusBadRequest,
			checkError:     "Invalid email format",
		},
		{
			name: "missing email",
			formData: map[string]string{
				"password": "password123",
			},
			expectedStatus: http.StatusBadRequest,
			checkError:     "Email is required",
		},
		{
			name: "missing password",
			formData: map[string]string{
				"email": "test4@example.com",
			},
			expectedStatus: http.StatusBadRequest,
			checkError:     "Password is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postForm(localAuth.HandleSignup, "/auth/signup", tt.formData)
			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.checkError != "" && !strings.Contains(w.Body.String(), tt.checkError) {
				t.Errorf("expected error containing %q, got %s", tt.checkError, w.Body.String())
			}
		})
	}
}

func TestHandleSignup_JSONBody(t *testing.T) {
	localAuth := setupLocalAuth(t, &captureSender{})

	req := httptest.NewRequest("POST", "/auth/signup",
		strings.NewReader(`{"email": "json@example.com", "password": "password123"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	localAuth.HandleSignup(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp["success"] != true {
		t.Errorf("expected success response, got %v", resp)
	}
}

func TestHandleLogin(t *testing.T) {
	sender := &captureSender{}
	localAuth := setupLocalAuth(t, sender)

	if w := postForm(localAuth.HandleSignup, "/auth/signup",
		map[string]string{"email": "login@example.com", "password": "password123"}); w.Code != http.StatusOK {
		t.Fatalf("signup failed: %d %s", w.Code, w.Body.String())
	}
	if _, err := localAuth.Manager.ConfirmEmail(sender.lastToken(t)); err != nil {
		t.Fatalf("ConfirmEmail failed: %v", err)
	}

	tests := []struct {
		name           string
		formData       map[string]string
		expectedStatus int
	}{
		{
			name:           "valid credentials",
			formData:       map[string]string{"email": "login@example.com", "password": "password123"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "wrong password",
			formData:       map[string]string{"email": "login@example.com", "password": "wrongpass"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unknown email",
			formData:       map[string]string{"email": "nobody@example.com", "password": "password123"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing password",
			formData:       map[string]string{"email": "login@example.com"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postForm(localAuth.ServeHTTP, "/auth/login", tt.formData)
			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleLogin_UniformRejection(t *testing.T) {
	sender := &captureSender{}
	localAuth := setupLocalAuth(t, sender)

	if w := postForm(localAuth.HandleSignup, "/auth/signup",
		map[string]string{"email": "u@example.com", "password": "password123"}); w.Code != http.StatusOK {
		t.Fatalf("signup failed: %d", w.Code)
	}

	// Unconfirmed account, wrong password and unknown email must be
	// indistinguishable in the response.
	bodies := map[string]string{}
	for name, form := range map[string]map[string]string{
		"unconfirmed":   {"email": "u@example.com", "password": "password123"},
		"wrong pass":    {"email": "u@example.com", "password": "nope12345"},
		"unknown email": {"email": "ghost@example.com", "password": "password123"},
	} {
		w := postForm(localAuth.ServeHTTP, "/auth/login", form)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, w.Code)
		}
		bodies[name] = w.Body.String()
	}
	if bodies["unconfirmed"] != bodies["wrong pass"] || bodies["wrong pass"] != bodies["unknown email"] {
		t.Errorf("rejection bodies differ: %v", bodies)
	}
}

func TestHandleConfirmEmail(t *testing.T) {
	sender := &captureSender{}
	localAuth := setupLocalAuth(t, sender)

	if w := postForm(localAuth.HandleSignup, "/auth/signup",
		map[string]string{"email": "c@example.com", "password": "password123"}); w.Code != http.StatusOK {
		t.Fatalf("signup failed: %d", w.Code)
	}
	token := sender.lastToken(t)

	tests := []struct {
		name           string
		token          string
		expectedStatus int
	}{
		{"valid token", token, http.StatusOK},
		{"repeat confirmation", token, http.StatusOK},
		{"forged token", "forged-token", http.StatusNotFound},
		{"missing token", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/auth/confirm-email?token="+url.QueryEscape(tt.token), nil)
			w := httptest.NewRecorder()
			localAuth.HandleConfirmEmail(w, req)
			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleForgotPassword(t *testing.T) {
	sender := &captureSender{}
	localAuth := setupLocalAuth(t, sender)

	if w := postForm(localAuth.HandleSignup, "/auth/signup",
		map[string]string{"email": "f@example.com", "password": "password123"}); w.Code != http.StatusOK {
		t.Fatalf("signup failed: %d", w.Code)
	}

	// Before confirmation the reset is refused.
	w := postForm(localAuth.HandleForgotPassword, "/auth/forgot-password",
		map[string]string{"email": "f@example.com"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unconfirmed account, got %d", w.Code)
	}

	if _, err := localAuth.Manager.ConfirmEmail(sender.lastToken(t)); err != nil {
		t.Fatalf("ConfirmEmail failed: %v", err)
	}

	w = postForm(localAuth.HandleForgotPassword, "/auth/forgot-password",
		map[string]string{"email": "f@example.com"})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = postForm(localAuth.HandleForgotPassword, "/auth/forgot-password",
		map[string]string{"email": "ghost@example.com"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown email, got %d", w.Code)
	}
}

func TestHandleResetPassword(t *testing.T) {
	sender := &captureSender{}
	localAuth := setupLocalAuth(t, sender)

	if w := postForm(localAuth.HandleSignup, "/auth/signup",
		map[string]string{"email": "r@example.com", "password": "oldpassword"}); w.Code != http.StatusOK {
		t.Fatalf("signup failed: %d", w.Code)
	}
	if _, err := localAuth.Manager.ConfirmEmail(sender.lastToken(t)); err != nil {
		t.Fatalf("ConfirmEmail failed: %v", err)
	}
	if w := postForm(localAuth.HandleForgotPassword, "/auth/forgot-password",
		map[string]string{"email": "r@example.com"}); w.Code != http.StatusOK {
		t.Fatalf("forgot-password failed: %d", w.Code)
	}
	token := sender.lastToken(t)

	w := postForm(localAuth.HandleResetPassword, "/auth/reset-password",
		map[string]string{"token": token, "password": "short"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for short password, got %d", w.Code)
	}

	w = postForm(localAuth.HandleResetPassword, "/auth/reset-password",
		map[string]string{"token": "bogus", "password": "newpassword"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for bogus token, got %d", w.Code)
	}

	w = postForm(localAuth.HandleResetPassword, "/auth/reset-password",
		map[string]string{"token": token, "password": "newpassword"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if _, err := localAuth.Manager.Login("r@example.com", "newpassword"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
	if _, err := localAuth.Manager.Login("r@example.com", "oldpassword"); err == nil {
		t.Error("login with old password should fail")
	}
}

// TestAccountJourney walks the full lifecycle over HTTP: signup, login
// rejected before confirmation, confirm, login succeeds, wrong password
// still rejected.
func TestAccountJourney(t *testing.T) {
	sender := &captureSender{}
	localAuth := setupLocalAuth(t, sender)

	if w := postForm(localAuth.HandleSignup, "/auth/signup",
		map[string]string{"email": "u@test.com", "password": "pw123456"}); w.Code != http.StatusOK {
		t.Fatalf("signup failed: %d %s", w.Code, w.Body.String())
	}

	if w := postForm(localAuth.ServeHTTP, "/auth/login",
		map[string]string{"email": "u@test.com", "password": "pw123456"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("login before confirmation should be rejected, got %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/auth/confirm-email?token="+url.QueryEscape(sender.lastToken(t)), nil)
	w := httptest.NewRecorder()
	localAuth.HandleConfirmEmail(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("confirmation failed: %d %s", w.Code, w.Body.String())
	}

	if w := postForm(localAuth.ServeHTTP, "/auth/login",
		map[string]string{"email": "u@test.com", "password": "pw123456"}); w.Code != http.StatusOK {
		t.Fatalf("login after confirmation failed: %d %s", w.Code, w.Body.String())
	}

	if w := postForm(localAuth.ServeHTTP, "/auth/login",
		map[string]string{"email": "u@test.com", "password": "wrongpw"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password should still be rejected, got %d", w.Code)
	}
}

func TestHandleLogin_CustomErrorHandler(t *testing.T) {
	localAuth := setupLocalAuth(t, &captureSender{})
	localAuth.OnLoginError = func(err *ua.AuthError, w http.ResponseWriter, r *http.Request) bool {
		http.Redirect(w, r, "/login?error="+url.QueryEscape(err.Code), http.StatusFound)
		return true
	}

	w := postForm(localAuth.ServeHTTP, "/auth/login",
		map[string]string{"email": "ghost@test.com", "password": "whatever1"})
	if w.Code != http.StatusFound {
		t.Fatalf("expected redirect from custom handler, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); !strings.Contains(loc, "invalid_credentials") {
		t.Errorf("unexpected redirect target %q", loc)
	}
}
