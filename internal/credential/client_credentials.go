package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	errx "github.com/Wex47/Orbi/internal/core/error"
)

// ClientCredentials fetches tokens with the OAuth2 client-credentials grant.
type ClientCredentials struct {
	cfg        clientcredentials.Config
	httpClient *http.Client
}

// NewClientCredentials builds a Source for tokenURL. httpClient may be nil.
func NewClientCredentials(clientID, clientSecret, tokenURL string, httpClient *http.Client) *ClientCredentials {
	return &ClientCredentials{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
	}
}

func (s *ClientCredentials) Fetch(ctx context.Context) (Token, error) {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return Token{}, fmt.Errorf("client credentials are not configured")
	}
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}

	tok, err := s.cfg.Token(ctx)
	if err != nil {
		var re *oauth2.RetrieveError
		status := 0
		if errors.As(err, &re) && re.Response != nil {
			status = re.Response.StatusCode
		}
		return Token{}, errx.WrapUpstream(fmt.Errorf("fetch access token: %w", err), status)
	}
	return Token{AccessToken: tok.AccessToken, Expiry: tok.Expiry}, nil
}
