package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func jsonDecode(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) { return string(s), nil }

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second, MaxTries: 3}, staticTokens("test-token"))
	require.NoError(t, err)
	return client, srv
}

func TestAddOrUpdateDocument(t *testing.T) {
	var gotAuth, gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path

		var cred OfferingCredential
		require.NoError(t, jsonDecode(r, &cred))
		require.Equal(t, KindSaaS, cred.Subject.Kind)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"urn:offering:x","issuer":"org-1","content_hash":"h1","status":"active"}`))
	}))

	cred := &OfferingCredential{
		ID:     "urn:offering:x",
		Issuer: "org-1",
		Subject: CredentialSubject{
			Kind: KindSaaS,
			SaaS: &SaaSSubject{Name: "Analytics Suite"},
		},
	}

	result, err := client.AddOrUpdateDocument(context.Background(), cred)
	require.NoError(t, err)
	require.Equal(t, "Bearer test-token", gotAuth)
	require.Equal(t, "/documents", gotPath)
	require.Equal(t, "h1", result.ContentHash)
	require.Equal(t, StatusActive, result.Status)
}

func TestTransientFailuresAreRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"total_count":0,"items":[]}`))
	}))

	page, err := client.GetDocumentsByHashes(context.Background(), []string{"h1"}, []DocumentStatus{StatusActive})
	require.NoError(t, err)
	require.Equal(t, 0, page.TotalCount)
	require.Equal(t, int32(3), calls.Load())
}

func TestRejectionIsPermanent(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"signature verification failed"}`))
	}))

	_, err := client.AddOrUpdateDocument(context.Background(), &OfferingCredential{
		Subject: CredentialSubject{Kind: KindCooperation, Cooperation: &CooperationSubject{Name: "x"}},
	})
	require.Error(t, err)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, http.StatusUnprocessableEntity, remote.StatusCode)
	require.Equal(t, "signature verification failed", remote.Message)
	require.Equal(t, int32(1), calls.Load(), "rejections must not be retried")
}

func TestQueryEncodesIDsAndStatuses(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "urn:offering:a,urn:offering:b", r.URL.Query().Get("ids"))
		require.Equal(t, "active,revoked", r.URL.Query().Get("statuses"))
		_, _ = w.Write([]byte(`{"total_count":1,"items":[{"content_hash":"h1","status":"revoked","credential":{"id":"urn:offering:a","issuer":"org-1","credential_subject":{"type":"data-delivery","name":"Feed"}}}]}`))
	}))

	page, err := client.GetDocumentsByIDs(context.Background(),
		[]string{"urn:offering:a", "urn:offering:b"},
		[]DocumentStatus{StatusActive, StatusRevoked})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	doc := page.Items[0]
	require.Equal(t, StatusRevoked, doc.Status)
	require.Equal(t, KindDataDelivery, doc.Credential.Subject.Kind)
	require.Equal(t, "Feed", doc.Credential.Subject.Name())
}

func TestRevokeAndDelete(t *testing.T) {
	var methods []string
	var paths []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.RevokeDocument(context.Background(), "h1"))
	require.NoError(t, client.DeleteDocument(context.Background(), "h1"))
	require.Equal(t, []string{http.MethodPost, http.MethodDelete}, methods)
	require.Equal(t, []string{"/documents/h1/revoke", "/documents/h1"}, paths)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{}, staticTokens("x"))
	require.Error(t, err)

	_, err = New(Config{BaseURL: "http://catalog.local"}, nil)
	require.Error(t, err)
}
