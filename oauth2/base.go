package oauth2

import (
	"context"
	"net/http"
	"os"

	"golang.org/x/oauth2"
)

type BaseOAuth2 struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string
	HandleUser   HandleUserFunc

	// Where to send the browser when the provider callback fails.
	AuthFailureUrl string

	// Overrides the http client used to talk to the provider.  For tests.
	HTTPClient *http.Client

	oauthConfig oauth2.Config
	mux         *http.ServeMux
}

func NewBaseOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *BaseOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_CALLBACK_URL")
	}
	out := &BaseOAuth2{
		ClientId:       clientId,
		ClientSecret:   clientSecret,
		CallbackURL:    callbackUrl,
		HandleUser:     handleUser,
		AuthFailureUrl: "/",
		mux:            http.NewServeMux(),
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
		},
	}
	out.mux.HandleFunc("/", OauthRedirector(&out.oauthConfig))
	return out
}

// Providers mount their callback handlers on b.mux so the whole flow can be
// served from a single subtree, eg /auth/google/.
func (b *BaseOAuth2) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

func (b *BaseOAuth2) ExchangeContext() context.Context {
	if b.HTTPClient != nil {
		return context.WithValue(context.Background(), oauth2.HTTPClient, b.HTTPClient)
	}
	return context.Background()
}

func (b *BaseOAuth2) getHTTPClient() *http.Client {
	if b.HTTPClient != nil {
		return b.HTTPClient
	}
	return http.DefaultClient
}
