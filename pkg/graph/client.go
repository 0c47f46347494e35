package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultGraphBase is the Microsoft Graph v1.0 endpoint.
const DefaultGraphBase = "https://graph.microsoft.com/v1.0"

// Options configures optional client behavior. The zero value is usable.
type Options struct {
	// HTTPClient is the underlying transport. Default: http.Client
	// with a 30s timeout.
	HTTPClient *http.Client

	// Logger receives structured client logs. Default: no-op.
	Logger *zap.Logger

	// RequestsPerSecond limits outbound calls to Graph.
	// Zero means unlimited.
	RequestsPerSecond float64

	// Burst is the limiter burst size. Default: 1 when a rate is set.
	Burst int

	// AuthorityBase overrides the token authority (tests).
	AuthorityBase string

	// GraphBase overrides the Graph API root (tests).
	GraphBase string
}

// Client is a read-only Microsoft Graph client scoped to one document
// library. It is safe for concurrent use.
type Client struct {
	creds      Credentials
	httpClient *http.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	graphBase  string

	strategies []authStrategy

	// mu guards token, siteID and driveID. The token is single-owner:
	// only the client mutates it, readers always see the last
	// committed value.
	mu      sync.Mutex
	token   accessToken
	siteID  string
	driveID string
}

// NewClient creates a Graph client for the given credentials.
func NewClient(creds Credentials, opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.AuthorityBase == "" {
		opts.AuthorityBase = DefaultAuthorityBase
	}
	if opts.GraphBase == "" {
		opts.GraphBase = DefaultGraphBase
	}

	c := &Client{
		creds:      creds,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		graphBase:  opts.GraphBase,
		strategies: []authStrategy{
			&directStrategy{authorityBase: opts.AuthorityBase, creds: creds, httpClient: opts.HTTPClient},
			newOAuthStrategy(opts.AuthorityBase, creds, opts.HTTPClient),
		},
	}

	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return c
}

// Credentials returns the credentials the client was built with.
func (c *Client) Credentials() Credentials {
	return c.creds
}

// Authenticate forces a fresh token acquisition, discarding any cached
// token. Returns ErrAuth when every strategy fails.
func (c *Client) Authenticate(ctx context.Context) error {
	c.InvalidateToken()
	_, err := c.ensureToken(ctx)
	return err
}

// InvalidateToken drops the cached token so the next call re-authenticates.
func (c *Client) InvalidateToken() {
	c.mu.Lock()
	c.token = accessToken{}
	c.mu.Unlock()
}

// ensureToken returns a valid token, refreshing if needed. Refresh is
// serialized on the client mutex: concurrent callers block until the
// in-flight refresh commits, then observe the fresh token instead of
// issuing redundant token requests.
func (c *Client) ensureToken(ctx context.Context) (accessToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.valid(time.Now()) {
		return c.token, nil
	}

	var lastErr error
	for _, s := range c.strategies {
		tok, err := s.acquire(ctx)
		if err != nil {
			c.logger.Warn("auth strategy failed",
				zap.String("strategy", s.name()),
				zap.Error(err))
			lastErr = err
			continue
		}
		c.logger.Debug("authenticated", zap.String("strategy", s.name()))
		c.token = tok
		return tok, nil
	}

	return accessToken{}, fmt.Errorf("%w: %v", ErrAuth, lastErr)
}

// invalidateIf drops the cached token only if it is still the one the
// caller used. A token refreshed by a concurrent caller survives.
func (c *Client) invalidateIf(tok accessToken) {
	c.mu.Lock()
	if c.token.value == tok.value {
		c.token = accessToken{}
	}
	c.mu.Unlock()
}

// do issues an authenticated request. On a 401 it invalidates the
// token, re-authenticates and retries the call exactly once; a second
// 401 surfaces as ErrAuth.
func (c *Client) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		tok, err := c.ensureToken(ctx)
		if err != nil {
			return nil, err
		}

		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok.value)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			c.invalidateIf(tok)
			if attempt == 0 {
				c.logger.Warn("401 from graph, re-authenticating once", zap.String("url", rawURL))
				continue
			}
			return nil, &APIError{Op: method, Path: rawURL, Status: http.StatusUnauthorized, Err: ErrAuth}
		}

		return resp, nil
	}
}

// getJSON fetches rawURL and decodes the body into v.
func (c *Client) getJSON(ctx context.Context, op, rawURL string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Op: op, Path: rawURL, Status: resp.StatusCode, Err: statusErr(resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &APIError{Op: op, Path: rawURL, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// wait blocks on the outbound rate limiter, if one is configured.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// SiteID resolves and caches the Graph site identifier for the
// configured site URL.
func (c *Client) SiteID(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.siteID
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	hostname, sitePath, err := splitSiteURL(c.creds.SiteURL)
	if err != nil {
		return "", err
	}

	endpoint := c.graphBase + "/sites/" + hostname
	if sitePath != "" {
		endpoint = c.graphBase + "/sites/" + hostname + ":/" + sitePath
	}

	var site struct {
		ID string `json:"id"`
	}
	if err := c.getJSON(ctx, "SiteID", endpoint, &site); err != nil {
		return "", err
	}
	if site.ID == "" {
		return "", &APIError{Op: "SiteID", Path: c.creds.SiteURL, Err: ErrNotFound}
	}

	c.mu.Lock()
	c.siteID = site.ID
	c.mu.Unlock()
	c.logger.Debug("resolved site", zap.String("site_id", site.ID))
	return site.ID, nil
}

// DriveID resolves and caches the drive identifier for the configured
// library name. The name is matched case-insensitively, with a
// URL-decoded fallback for names configured in encoded form.
func (c *Client) DriveID(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.driveID
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	siteID, err := c.SiteID(ctx)
	if err != nil {
		return "", err
	}

	var drives struct {
		Value []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"value"`
	}
	if err := c.getJSON(ctx, "DriveID", c.graphBase+"/sites/"+siteID+"/drives", &drives); err != nil {
		return "", err
	}

	want := c.creds.LibraryName
	decoded := want
	if d, err := url.QueryUnescape(want); err == nil {
		decoded = d
	}

	for _, drive := range drives.Value {
		if strings.EqualFold(drive.Name, want) || strings.EqualFold(drive.Name, decoded) {
			c.mu.Lock()
			c.driveID = drive.ID
			c.mu.Unlock()
			c.logger.Debug("resolved drive",
				zap.String("library", drive.Name),
				zap.String("drive_id", drive.ID))
			return drive.ID, nil
		}
	}

	return "", &APIError{Op: "DriveID", Path: want, Err: ErrLibraryNotFound}
}

// ListChildren lists every child of the given library-relative folder
// path, following pagination and requesting expanded thumbnails.
func (c *Client) ListChildren(ctx context.Context, folderPath string) ([]DriveItem, error) {
	driveID, err := c.DriveID(ctx)
	if err != nil {
		return nil, err
	}

	next := fmt.Sprintf("%s/drives/%s/root:%s:/children?$expand=thumbnails",
		c.graphBase, driveID, escapeFolderPath(folderPath))

	var items []DriveItem
	for next != "" {
		var page struct {
			Value    []DriveItem `json:"value"`
			NextLink string      `json:"@odata.nextLink"`
		}
		if err := c.getJSON(ctx, "ListChildren", next, &page); err != nil {
			return nil, err
		}
		items = append(items, page.Value...)
		next = page.NextLink
	}

	return items, nil
}

// FetchContent downloads bytes from a pre-authenticated item URL
// (download or thumbnail URL). These URLs embed their own short-lived
// auth, so no bearer token is attached; a 401/403 means the URL has
// expired and the item metadata must be re-fetched, signalled with
// ErrTokenExpired. The client token is invalidated so the next API call
// re-authenticates.
func (c *Client) FetchContent(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := c.wait(ctx); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.InvalidateToken()
		return nil, "", &APIError{Op: "FetchContent", Status: resp.StatusCode, Err: ErrTokenExpired}
	case resp.StatusCode != http.StatusOK:
		return nil, "", &APIError{Op: "FetchContent", Status: resp.StatusCode, Err: statusErr(resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return body, contentType, nil
}

// splitSiteURL extracts the hostname and site path from a full
// SharePoint site URL.
func splitSiteURL(siteURL string) (hostname, sitePath string, err error) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid site url %q: %w", siteURL, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return "", "", fmt.Errorf("site url must start with https://: %q", siteURL)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// escapeFolderPath percent-encodes each segment of a library-relative
// folder path, preserving the separators.
func escapeFolderPath(folderPath string) string {
	folderPath = "/" + strings.Trim(folderPath, "/")
	segments := strings.Split(folderPath, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
