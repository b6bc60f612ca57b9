// Command server runs a standalone authentication server: local signup and
// login with email confirmation, password recovery, and Google/GitHub
// OAuth, backed by a SQLite accounts database.
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	ua "github.com/whataclass/userauth"
	uaoauth2 "github.com/whataclass/userauth/oauth2"
	"github.com/whataclass/userauth/smtp"
	gormstore "github.com/whataclass/userauth/stores/gorm"
)

type OAuthProviderConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`

	// SecretKey signs session JWTs and the confirmation/recovery tokens.
	SecretKey string `yaml:"secret_key"`

	// BaseURL is the externally visible URL, used in emailed links.
	BaseURL string `yaml:"base_url"`

	BcryptCost int `yaml:"bcrypt_cost"`

	SMTP   smtp.Config         `yaml:"smtp"`
	Google OAuthProviderConfig `yaml:"google"`
	Github OAuthProviderConfig `yaml:"github"`
}

func loadConfig(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr: ":8080",
		DBPath:     "accounts.db",
		BaseURL:    "http://localhost:8080",
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = os.Getenv("USERAUTH_SECRET_KEY")
	}
	if cfg.SecretKey == "" {
		slog.Error("no secret_key configured")
		os.Exit(1)
	}

	db, err := gormstore.OpenSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DBPath, "err", err)
		os.Exit(1)
	}
	if err := gormstore.AutoMigrateWithRetry(db, 5, 5*time.Second); err != nil {
		slog.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	var sender ua.EmailSender
	if cfg.SMTP.Host != "" {
		sender = smtp.New(cfg.SMTP)
	}

	manager := &ua.AccountManager{
		Store:   gormstore.NewAccountStore(db),
		Hasher:  &ua.PasswordHasher{Cost: cfg.BcryptCost},
		Tokens:  ua.NewSignedTokenIssuer(cfg.SecretKey),
		Sender:  sender,
		BaseURL: cfg.BaseURL,
	}

	auth := ua.New("Server")
	auth.Session = scs.New()
	auth.Manager = manager
	auth.JWTSecretKey = cfg.SecretKey
	auth.EnsureDefaults()

	local := &ua.LocalAuth{
		Manager:    manager,
		HandleUser: auth.SaveUserAndRespond,
	}

	if cfg.Google.ClientID != "" {
		auth.AddAuth("/google", uaoauth2.NewGoogleOAuth2(
			cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL,
			auth.SaveOAuthUserAndRedirect))
	}
	if cfg.Github.ClientID != "" {
		auth.AddAuth("/github", uaoauth2.NewGithubOAuth2(
			cfg.Github.ClientID, cfg.Github.ClientSecret, cfg.Github.CallbackURL,
			auth.SaveOAuthUserAndRedirect))
	}

	r := mux.NewRouter()
	r.Handle("/auth/login", local).Methods("POST")
	r.HandleFunc("/auth/signup", local.HandleSignup).Methods("POST")
	r.HandleFunc("/auth/confirm-email", local.HandleConfirmEmail).Methods("GET")
	r.HandleFunc("/auth/forgot-password", local.HandleForgotPassword).Methods("POST")
	r.HandleFunc("/auth/reset-password", local.HandleResetPassword).Methods("POST")
	r.PathPrefix("/auth/").Handler(http.StripPrefix("/auth", auth.Handler()))

	r.Handle("/me", auth.Middleware.EnsureAccount(http.HandlerFunc(
		func(w http.ResponseWriter, req *http.Request) {
			acct, err := manager.LoadAccountByID(auth.Middleware.GetLoggedInAccountId(req))
			if err != nil {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id":              acct.ID,
				"email":           acct.Email,
				"email_confirmed": acct.EmailConfirmed,
			})
		}))).Methods("GET")

	handler := auth.Session.LoadAndSave(r)
	slog.Info("listening", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}
