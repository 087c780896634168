package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Config holds the client-credentials grant settings for the service's own
// outbound identity against the catalog and directory collaborators.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// ServiceAccount is a renewable outbound credential. Tokens are cached and
// renewed on expiry; Refresh forces an early renewal so the maintenance job
// can keep a warm token ahead of expiry.
type ServiceAccount struct {
	cfg clientcredentials.Config

	mu  sync.Mutex
	src oauth2.TokenSource
}

// NewServiceAccount constructs the credential from configuration.
func NewServiceAccount(cfg Config) (*ServiceAccount, error) {
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, errors.New("service account: token url is required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("service account: client id is required")
	}

	cc := clientcredentials.Config{
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
	}

	return &ServiceAccount{
		cfg: cc,
		src: cc.TokenSource(context.Background()),
	}, nil
}

// Token returns a currently valid bearer token, fetching or renewing as needed.
func (s *ServiceAccount) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	src := s.src
	s.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Refresh discards the cached token and fetches a fresh one.
func (s *ServiceAccount) Refresh(ctx context.Context) error {
	tok, err := s.cfg.Token(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.src = oauth2.ReuseTokenSource(tok, s.cfg.TokenSource(context.Background()))
	s.mu.Unlock()
	return nil
}
