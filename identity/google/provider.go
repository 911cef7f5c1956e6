// Package google implements the Google OpenID Connect login used by the engine.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/goSession/user"
	"golang.org/x/oauth2"
)

const (
	// DefaultAuthURL is Google's consent screen endpoint.
	DefaultAuthURL = "https://accounts.google.com/o/oauth2/v2/auth"
	// DefaultTokenURL is Google's authorization code exchange endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
	// DefaultUserInfoURL is Google's OpenID Connect userinfo endpoint.
	DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	maxUserInfoBytes = 1 << 20
)

// DefaultScopes are requested on every authorization redirect.
var DefaultScopes = []string{"openid", "email", "profile"}

// Config configures a [Provider]. Empty endpoint URLs use Google's.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// HTTPClient is used for the token exchange and userinfo requests.
	HTTPClient *http.Client
}

// Provider performs the authorization code flow against Google.
type Provider struct {
	oauth       *oauth2.Config
	userInfoURL string
	client      *http.Client
}

// New validates cfg and returns a Provider.
func New(cfg Config) (*Provider, error) {
	var errs []error
	if strings.TrimSpace(cfg.ClientID) == "" {
		errs = append(errs, errors.New("google: client id is required"))
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		errs = append(errs, errors.New("google: client secret is required"))
	}
	if strings.TrimSpace(cfg.RedirectURL) == "" {
		errs = append(errs, errors.New("google: redirect url is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	authURL := orDefault(cfg.AuthURL, DefaultAuthURL)
	tokenURL := orDefault(cfg.TokenURL, DefaultTokenURL)
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       append([]string(nil), scopes...),
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: orDefault(cfg.UserInfoURL, DefaultUserInfoURL),
		client:      client,
	}, nil
}

// AuthCodeURL returns the consent screen URL carrying state. Offline access and
// forced consent are always requested.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// ExchangeCode redeems an authorization code for the provider access token.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return "", fmt.Errorf("google: token exchange failed with status %d", re.Response.StatusCode)
		}
		return "", fmt.Errorf("google: token exchange: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("google: token response has no access token")
	}
	return tok.AccessToken, nil
}

type userInfo struct {
	Sub           string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	Picture       string   `json:"picture"`
}

// flexBool accepts both true and "true"; Google endpoints disagree.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true":
		*b = true
	case "false", "null", "":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// FetchProfile loads the userinfo document for accessToken.
func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (*user.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("google: build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxUserInfoBytes))
		return nil, fmt.Errorf("google: userinfo failed with status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&info); err != nil {
		return nil, fmt.Errorf("google: decode userinfo: %w", err)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, errors.New("google: userinfo is missing sub or email")
	}
	return &user.Profile{
		SubjectID:     info.Sub,
		Email:         info.Email,
		EmailVerified: bool(info.EmailVerified),
		DisplayName:   info.Name,
		AvatarURL:     info.Picture,
	}, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
