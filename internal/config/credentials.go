package config

import (
	"fmt"
	"strings"
)

const (
	EnvRedditClientID     = "REDDIT_CLIENT_ID"
	EnvRedditClientSecret = "REDDIT_CLIENT_SECRET"
	EnvRedditUserAgent    = "REDDIT_USER_AGENT"
)

// Credentials authenticate the Reddit client. They only ever come from the
// environment.
type Credentials struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
}

// RequireCredentials reads the Reddit credentials through getenv and reports
// every missing variable at once.
func RequireCredentials(getenv func(string) string) (Credentials, error) {
	creds := Credentials{
		ClientID:     strings.TrimSpace(getenv(EnvRedditClientID)),
		ClientSecret: strings.TrimSpace(getenv(EnvRedditClientSecret)),
		UserAgent:    strings.TrimSpace(getenv(EnvRedditUserAgent)),
	}

	var missing []string
	if creds.ClientID == "" {
		missing = append(missing, EnvRedditClientID)
	}
	if creds.ClientSecret == "" {
		missing = append(missing, EnvRedditClientSecret)
	}
	if creds.UserAgent == "" {
		missing = append(missing, EnvRedditUserAgent)
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("%w: missing required environment variables: %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	return creds, nil
}
