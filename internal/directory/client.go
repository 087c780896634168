package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openfedx/offering-service/internal/catalog"
)

// SignerConfig holds the signing material references an organization needs
// before it may publish. The service never signs anything itself; it only
// checks that a usable configuration exists.
type SignerConfig struct {
	PrivateKeyRef      string `json:"private_key_ref"`
	VerificationMethod string `json:"verification_method"`
}

// Usable reports whether the configuration is complete enough to sign with.
func (c SignerConfig) Usable() bool {
	return strings.TrimSpace(c.PrivateKeyRef) != "" && strings.TrimSpace(c.VerificationMethod) != ""
}

// OrganizationDetails is the directory's view of an organization.
type OrganizationDetails struct {
	ID           string       `json:"id"`
	LegalName    string       `json:"legal_name"`
	TermsURL     string       `json:"terms_url"`
	TermsHash    string       `json:"terms_hash"`
	SignerConfig SignerConfig `json:"signer_config"`
}

// Terms returns the organization's terms-and-conditions reference in catalog form.
func (d *OrganizationDetails) Terms() catalog.TermsAndConditions {
	return catalog.TermsAndConditions{URL: d.TermsURL, Hash: d.TermsHash}
}

// HasTerms reports whether the organization has accepted terms on file.
func (d *OrganizationDetails) HasTerms() bool {
	return strings.TrimSpace(d.TermsURL) != "" && strings.TrimSpace(d.TermsHash) != ""
}

// Config holds directory client connection options.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a read-only lookup against the organization directory.
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  catalog.TokenProvider
}

// New constructs a directory client.
func New(cfg Config, tokens catalog.TokenProvider) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("directory client: base url is required")
	}
	if tokens == nil {
		return nil, errors.New("directory client: token provider is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		baseURL: base,
		httpc:   &http.Client{Timeout: timeout},
		tokens:  tokens,
	}, nil
}

// ErrOrganizationNotFound is returned when the directory has no such organization.
var ErrOrganizationNotFound = errors.New("directory: organization not found")

// GetOrganizationDetails resolves an organization identifier to its legal and
// contractual metadata.
func (c *Client) GetOrganizationDetails(ctx context.Context, orgID string) (*OrganizationDetails, error) {
	target := fmt.Sprintf("%s/organizations/%s", c.baseURL, url.PathEscape(orgID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("directory client: build request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory client: obtain token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory client: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrOrganizationNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory client: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("directory client: read response: %w", err)
	}

	var details OrganizationDetails
	if err := json.Unmarshal(data, &details); err != nil {
		return nil, fmt.Errorf("directory client: malformed response: %w", err)
	}
	if details.ID == "" {
		details.ID = orgID
	}
	return &details, nil
}
