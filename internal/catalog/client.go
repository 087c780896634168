package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/openfedx/offering-service/pkg/logger"
	"github.com/openfedx/offering-service/pkg/metrics"
)

// TokenProvider supplies the bearer token for outbound catalog calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Config holds catalog client connection options.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	MaxTries uint
}

// Client talks to the remote catalog over its JSON REST API. Submissions and
// deletions are at-least-once retryable; transient failures are retried with
// exponential backoff while rejections (4xx) surface immediately as RemoteError.
type Client struct {
	baseURL  string
	httpc    *http.Client
	tokens   TokenProvider
	maxTries uint
	log      *zap.Logger
}

// New constructs a catalog client.
func New(cfg Config, tokens TokenProvider) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("catalog client: base url is required")
	}
	if tokens == nil {
		return nil, errors.New("catalog client: token provider is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxTries := cfg.MaxTries
	if maxTries == 0 {
		maxTries = 3
	}

	return &Client{
		baseURL:  base,
		httpc:    &http.Client{Timeout: timeout},
		tokens:   tokens,
		maxTries: maxTries,
		log:      logger.WithModule("catalog"),
	}, nil
}

// AddOrUpdateDocument submits a self-description to the catalog and returns
// the content hash the catalog assigned.
func (c *Client) AddOrUpdateDocument(ctx context.Context, cred *OfferingCredential) (*SubmitResult, error) {
	var result SubmitResult
	err := c.do(ctx, "add_document", http.MethodPost, c.baseURL+"/documents", cred, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetDocumentsByIDs fetches documents whose credential ids match, restricted
// to the given statuses.
func (c *Client) GetDocumentsByIDs(ctx context.Context, ids []string, statuses []DocumentStatus) (*DocumentPage, error) {
	return c.query(ctx, "get_by_ids", "ids", ids, statuses)
}

// GetDocumentsByHashes bulk-fetches documents by content hash. The catalog
// makes no ordering guarantee relative to the requested hash list.
func (c *Client) GetDocumentsByHashes(ctx context.Context, hashes []string, statuses []DocumentStatus) (*DocumentPage, error) {
	return c.query(ctx, "get_by_hashes", "hashes", hashes, statuses)
}

// RevokeDocument flips a document's status to revoked.
func (c *Client) RevokeDocument(ctx context.Context, hash string) error {
	target := fmt.Sprintf("%s/documents/%s/revoke", c.baseURL, url.PathEscape(hash))
	return c.do(ctx, "revoke_document", http.MethodPost, target, nil, nil)
}

// DeleteDocument removes a document by content hash.
func (c *Client) DeleteDocument(ctx context.Context, hash string) error {
	target := fmt.Sprintf("%s/documents/%s", c.baseURL, url.PathEscape(hash))
	return c.do(ctx, "delete_document", http.MethodDelete, target, nil, nil)
}

func (c *Client) query(ctx context.Context, op, keyParam string, keys []string, statuses []DocumentStatus) (*DocumentPage, error) {
	params := url.Values{}
	params.Set(keyParam, strings.Join(keys, ","))
	if len(statuses) > 0 {
		raw := make([]string, len(statuses))
		for i, s := range statuses {
			raw[i] = string(s)
		}
		params.Set("statuses", strings.Join(raw, ","))
	}

	var page DocumentPage
	err := c.do(ctx, op, http.MethodGet, c.baseURL+"/documents?"+params.Encode(), nil, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// do issues one request with retries. A 4xx response is a final rejection and
// is returned as *RemoteError without further attempts; transport errors and
// 5xx responses are retried up to maxTries.
func (c *Client) do(ctx context.Context, op, method, target string, body, out any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("catalog client: encode request: %w", err)
		}
		payload = data
	}

	attempt := func() ([]byte, error) {
		return c.roundTrip(ctx, method, target, payload)
	}

	data, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		metrics.CatalogRequests.WithLabelValues(op, "error").Inc()
		return err
	}
	metrics.CatalogRequests.WithLabelValues(op, "success").Inc()

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("catalog client: malformed response: %w", err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("catalog client: build request: %w", err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("catalog client: obtain token: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Warn("catalog request failed", zap.String("method", method), zap.Error(err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("catalog client: read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// a rejection will not change on retry
		return nil, backoff.Permanent(&RemoteError{
			StatusCode: resp.StatusCode,
			Message:    remoteMessage(data),
		})
	default:
		return nil, fmt.Errorf("catalog client: status %d", resp.StatusCode)
	}
}

// remoteMessage extracts a human-readable message from a catalog error body,
// falling back to the raw body.
func remoteMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(data))
}
