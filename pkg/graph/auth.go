package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultAuthorityBase is the Azure AD token authority.
const DefaultAuthorityBase = "https://login.microsoftonline.com"

// graphScope is the application-permission scope for Graph.
const graphScope = "https://graph.microsoft.com/.default"

// tokenExpirySlack is subtracted from the reported token lifetime so a
// token is refreshed before Graph actually rejects it.
const tokenExpirySlack = 60 * time.Second

// accessToken is an opaque bearer value with its refresh deadline.
type accessToken struct {
	value  string
	expiry time.Time
}

// valid reports whether the token can still be attached to a request.
func (t accessToken) valid(now time.Time) bool {
	return t.value != "" && now.Before(t.expiry)
}

// authStrategy acquires an application token. Strategies are tried in
// order; the first success wins.
type authStrategy interface {
	name() string
	acquire(ctx context.Context) (accessToken, error)
}

// directStrategy posts the client-credentials grant straight to the
// tenant token endpoint. This is the primary path.
type directStrategy struct {
	authorityBase string
	creds         Credentials
	httpClient    *http.Client
}

func (s *directStrategy) name() string { return "direct" }

func (s *directStrategy) acquire(ctx context.Context) (accessToken, error) {
	form := url.Values{
		"client_id":     {s.creds.ClientID},
		"client_secret": {s.creds.ClientSecret},
		"scope":         {graphScope},
		"grant_type":    {"client_credentials"},
	}

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", s.authorityBase, s.creds.TenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return accessToken{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return accessToken{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return accessToken{}, fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return accessToken{}, fmt.Errorf("decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return accessToken{}, fmt.Errorf("token endpoint returned no access_token")
	}
	if tokenResp.ExpiresIn <= 0 {
		tokenResp.ExpiresIn = 3600
	}

	return accessToken{
		value:  tokenResp.AccessToken,
		expiry: time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - tokenExpirySlack),
	}, nil
}

// oauthStrategy acquires the token via golang.org/x/oauth2's
// client-credentials flow. Fallback for tenants where the direct form
// post misbehaves.
type oauthStrategy struct {
	cfg        clientcredentials.Config
	httpClient *http.Client
}

func newOAuthStrategy(authorityBase string, creds Credentials, httpClient *http.Client) *oauthStrategy {
	return &oauthStrategy{
		cfg: clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", authorityBase, creds.TenantID),
			Scopes:       []string{graphScope},
		},
		httpClient: httpClient,
	}
}

func (s *oauthStrategy) name() string { return "oauth2" }

func (s *oauthStrategy) acquire(ctx context.Context) (accessToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tok, err := s.cfg.Token(ctx)
	if err != nil {
		return accessToken{}, err
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(time.Hour)
	}
	return accessToken{
		value:  tok.AccessToken,
		expiry: expiry.Add(-tokenExpirySlack),
	}, nil
}
