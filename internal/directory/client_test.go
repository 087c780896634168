package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) { return string(s), nil }

func TestGetOrganizationDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/organizations/org-1", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"id": "org-1",
			"legal_name": "Example GmbH",
			"terms_url": "https://example.org/tnc",
			"terms_hash": "abcd1234",
			"signer_config": {"private_key_ref": "key-1", "verification_method": "did:web:example.org#key-1"}
		}`))
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL}, staticTokens("tok"))
	require.NoError(t, err)

	details, err := client.GetOrganizationDetails(context.Background(), "org-1")
	require.NoError(t, err)
	require.Equal(t, "Example GmbH", details.LegalName)
	require.True(t, details.HasTerms())
	require.True(t, details.SignerConfig.Usable())

	terms := details.Terms()
	require.Equal(t, "https://example.org/tnc", terms.URL)
	require.Equal(t, "abcd1234", terms.Hash)
}

func TestGetOrganizationDetailsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL}, staticTokens("tok"))
	require.NoError(t, err)

	_, err = client.GetOrganizationDetails(context.Background(), "org-missing")
	require.ErrorIs(t, err, ErrOrganizationNotFound)
}

func TestSignerConfigUsable(t *testing.T) {
	require.False(t, SignerConfig{}.Usable())
	require.False(t, SignerConfig{PrivateKeyRef: "key-1"}.Usable())
	require.False(t, SignerConfig{PrivateKeyRef: "  ", VerificationMethod: "m"}.Usable())
	require.True(t, SignerConfig{PrivateKeyRef: "key-1", VerificationMethod: "m"}.Usable())
}

func TestMissingTermsDetected(t *testing.T) {
	d := &OrganizationDetails{TermsURL: "https://example.org/tnc"}
	require.False(t, d.HasTerms(), "hash missing")
}
