package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

type githubProvider struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

// NewGitHub builds the GitHub provider. user:email is required because
// the profile email field is empty for users who keep it private.
func NewGitHub(clientID, clientSecret, redirectURL string) Provider {
	return &githubProvider{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *githubProvider) Name() string { return "github" }

func (p *githubProvider) AuthURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

func (p *githubProvider) ResolveProfile(ctx context.Context, code string) (Profile, error) {
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return Profile{}, ErrInvalidCode
	}

	var u struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Login string `json:"login"`
	}
	if err := p.getJSON(ctx, tok.AccessToken, "https://api.github.com/user", &u); err != nil {
		return Profile{}, err
	}

	email := u.Email
	if email == "" {
		email, err = p.primaryEmail(ctx, tok.AccessToken)
		if err != nil {
			return Profile{}, err
		}
	}
	if email == "" {
		return Profile{}, ErrNoEmail
	}

	display := u.Name
	if display == "" {
		display = u.Login
	}
	first, last := splitName(display)
	return Profile{Email: email, FirstName: first, LastName: last}, nil
}

// primaryEmail falls back to the /user/emails endpoint and picks the
// primary verified address.
func (p *githubProvider) primaryEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := p.getJSON(ctx, accessToken, "https://api.github.com/user/emails", &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

func (p *githubProvider) getJSON(ctx context.Context, accessToken, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
