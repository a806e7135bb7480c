// Package google reads and edits the user's Google Calendar and Gmail through
// their REST APIs, authorized by a static OAuth2 refresh token.
package google

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/hrygo/manas/ai/errs"
)

// Endpoint is Google's OAuth2 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Scopes requested for the refresh token.
var Scopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/gmail.readonly",
}

// Credentials identify the OAuth client and the user's long-lived grant.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	// TokenURL overrides Endpoint.TokenURL, for tests.
	TokenURL string
}

// HTTPClient returns a client that refreshes access tokens as needed.
// The context governs token refreshes only.
func HTTPClient(ctx context.Context, creds Credentials) (*http.Client, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, errs.Configuration("google", "Google OAuth credentials")
	}

	endpoint := Endpoint
	if creds.TokenURL != "" {
		endpoint.TokenURL = creds.TokenURL
	}
	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       Scopes,
	}

	client := cfg.Client(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
	client.Timeout = 15 * time.Second
	return client, nil
}
