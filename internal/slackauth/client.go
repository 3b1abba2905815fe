// Package slackauth talks to Slack's OAuth endpoints: it builds the authorize
// redirect and exchanges the returned code for the workspace's tokens.
package slackauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dghubble/sling"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"

	"github.com/emojirades/onboarding/internal/secrets"
	"github.com/emojirades/onboarding/pkg/workspace"
)

const (
	// DefaultAuthorizeURL is Slack's OAuth v1 authorize endpoint.
	DefaultAuthorizeURL = "https://slack.com/oauth/authorize"

	// DefaultAccessURL is Slack's OAuth v1 code exchange endpoint.
	DefaultAccessURL = "https://slack.com/api/oauth.access"

	// DefaultHTTPTimeout bounds a single exchange round trip.
	DefaultHTTPTimeout = 10 * time.Second
)

var (
	// ErrExchangeFailed means Slack could not be reached or answered with a non-2xx status.
	ErrExchangeFailed = errors.New("code exchange failed")

	// ErrMalformedResponse means Slack answered 2xx with a body that is not a successful exchange.
	ErrMalformedResponse = errors.New("malformed exchange response")

	// ErrMissingBotScope means the exchange succeeded but no bot user was installed.
	ErrMissingBotScope = errors.New("exchange response missing bot scope")

	// ErrClientRejected accompanies ErrMalformedResponse when Slack refused the
	// client id or secret rather than the code.
	ErrClientRejected = errors.New("client credentials rejected")
)

// clientErrors are the oauth.access error codes that blame the app's own credentials.
var clientErrors = map[string]bool{
	"invalid_client_id": true,
	"bad_client_secret": true,
}

// AccessResponse is the body of a successful oauth.access call.
type AccessResponse struct {
	OK          bool      `json:"ok"`
	Error       string    `json:"error,omitempty"`
	AccessToken string    `json:"access_token"`
	Scope       string    `json:"scope"`
	TeamID      string    `json:"team_id"`
	TeamName    string    `json:"team_name"`
	Bot         *BotScope `json:"bot,omitempty"`
}

// BotScope is the bot user installed into the workspace.
type BotScope struct {
	BotUserID      string `json:"bot_user_id"`
	BotAccessToken string `json:"bot_access_token"`
}

// Credentials extracts the token triple persisted for the shard workers.
func (r *AccessResponse) Credentials() workspace.Credentials {
	creds := workspace.Credentials{AccessToken: r.AccessToken}
	if r.Bot != nil {
		creds.BotUserID = r.Bot.BotUserID
		creds.BotAccessToken = r.Bot.BotAccessToken
	}
	return creds
}

// accessRequest is the form posted to oauth.access.
type accessRequest struct {
	ClientID     string `url:"client_id"`
	ClientSecret string `url:"client_secret"`
	Code         string `url:"code"`
}

// Client builds authorize URLs and performs code exchanges.
// It is safe for concurrent use.
type Client struct {
	authorizeURL string
	accessURL    string
	httpClient   *http.Client
}

// Config configures a Client. Empty fields use the Slack defaults.
type Config struct {
	AuthorizeURL string
	AccessURL    string
	HTTPTimeout  time.Duration
	HTTPClient   *http.Client
}

// NewClient creates a Slack OAuth client.
func NewClient(cfg Config) *Client {
	authorizeURL := cfg.AuthorizeURL
	if authorizeURL == "" {
		authorizeURL = DefaultAuthorizeURL
	}

	accessURL := cfg.AccessURL
	if accessURL == "" {
		accessURL = DefaultAccessURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = DefaultHTTPTimeout
		if cfg.HTTPTimeout > 0 {
			httpClient.Timeout = cfg.HTTPTimeout
		}
	}

	return &Client{
		authorizeURL: authorizeURL,
		accessURL:    accessURL,
		httpClient:   httpClient,
	}
}

// AuthorizeURL returns the Slack authorize URL carrying client_id, scope and state.
func (c *Client) AuthorizeURL(cfg *secrets.ClientConfig, state string) string {
	oauthCfg := &oauth2.Config{
		ClientID: cfg.ClientID,
		Scopes:   []string{cfg.Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.authorizeURL,
			TokenURL: c.accessURL,
		},
	}
	return oauthCfg.AuthCodeURL(state)
}

// Exchange trades an authorization code for the workspace's tokens.
//
// Errors wrap ErrExchangeFailed when Slack is unreachable or answers non-2xx,
// ErrMissingBotScope when no bot object is present, and ErrMalformedResponse
// for any other 2xx body that is not a complete, successful exchange. When
// Slack blames the client id or secret, the error also wraps ErrClientRejected.
func (c *Client) Exchange(ctx context.Context, cfg *secrets.ClientConfig, code string) (*AccessResponse, error) {
	s := sling.New().Client(c.httpClient).Post(c.accessURL).BodyForm(&accessRequest{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Code:         code,
	})

	req, err := s.Request()
	if err != nil {
		return nil, fmt.Errorf("failed to build exchange request: %w", err)
	}

	var out AccessResponse
	resp, err := s.Do(req.WithContext(ctx), &out, nil)
	if resp == nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrExchangeFailed, resp.StatusCode)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if !out.OK {
		if clientErrors[out.Error] {
			return nil, fmt.Errorf("%w: %w: %s", ErrMalformedResponse, ErrClientRejected, out.Error)
		}
		if out.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, out.Error)
		}
		return nil, ErrMalformedResponse
	}
	if out.TeamID == "" {
		return nil, fmt.Errorf("%w: missing team_id", ErrMalformedResponse)
	}
	if out.Bot == nil {
		return nil, ErrMissingBotScope
	}
	creds := out.Credentials()
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &out, nil
}
