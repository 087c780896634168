package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openfedx/offering-service/internal/catalog"
	"github.com/openfedx/offering-service/internal/database/testutil"
	"github.com/openfedx/offering-service/internal/directory"
	"github.com/openfedx/offering-service/internal/models"
)

const (
	testFederationOrg = "org-federation"
	testProviderOrg   = "org-provider"
)

var (
	federationTerms = catalog.TermsAndConditions{URL: "https://federation.example/tnc", Hash: "fed-hash"}
	providerTerms   = catalog.TermsAndConditions{URL: "https://provider.example/tnc", Hash: "prov-hash"}
)

type mockCatalog struct {
	addFunc      func(ctx context.Context, cred *catalog.OfferingCredential) (*catalog.SubmitResult, error)
	byIDsFunc    func(ctx context.Context, ids []string, statuses []catalog.DocumentStatus) (*catalog.DocumentPage, error)
	byHashesFunc func(ctx context.Context, hashes []string, statuses []catalog.DocumentStatus) (*catalog.DocumentPage, error)
	revokeFunc   func(ctx context.Context, hash string) error
	deleteFunc   func(ctx context.Context, hash string) error

	submitted []catalog.OfferingCredential
	revoked   []string
	deleted   []string
}

func (m *mockCatalog) AddOrUpdateDocument(ctx context.Context, cred *catalog.OfferingCredential) (*catalog.SubmitResult, error) {
	m.submitted = append(m.submitted, *cred)
	if m.addFunc != nil {
		return m.addFunc(ctx, cred)
	}
	return &catalog.SubmitResult{
		ID:          cred.ID,
		Issuer:      cred.Issuer,
		ContentHash: fmt.Sprintf("hash-%d", len(m.submitted)),
		Status:      catalog.StatusActive,
	}, nil
}

func (m *mockCatalog) GetDocumentsByIDs(ctx context.Context, ids []string, statuses []catalog.DocumentStatus) (*catalog.DocumentPage, error) {
	if m.byIDsFunc != nil {
		return m.byIDsFunc(ctx, ids, statuses)
	}
	return &catalog.DocumentPage{}, nil
}

func (m *mockCatalog) GetDocumentsByHashes(ctx context.Context, hashes []string, statuses []catalog.DocumentStatus) (*catalog.DocumentPage, error) {
	if m.byHashesFunc != nil {
		return m.byHashesFunc(ctx, hashes, statuses)
	}
	return &catalog.DocumentPage{}, nil
}

func (m *mockCatalog) RevokeDocument(ctx context.Context, hash string) error {
	m.revoked = append(m.revoked, hash)
	if m.revokeFunc != nil {
		return m.revokeFunc(ctx, hash)
	}
	return nil
}

func (m *mockCatalog) DeleteDocument(ctx context.Context, hash string) error {
	m.deleted = append(m.deleted, hash)
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, hash)
	}
	return nil
}

type mockDirectory struct {
	orgs map[string]*directory.OrganizationDetails
	err  error
}

func (m *mockDirectory) GetOrganizationDetails(_ context.Context, orgID string) (*directory.OrganizationDetails, error) {
	if m.err != nil {
		return nil, m.err
	}
	details, ok := m.orgs[orgID]
	if !ok {
		return nil, directory.ErrOrganizationNotFound
	}
	return details, nil
}

func defaultDirectory() *mockDirectory {
	return &mockDirectory{orgs: map[string]*directory.OrganizationDetails{
		testFederationOrg: {
			ID:        testFederationOrg,
			LegalName: "Example Federation e.V.",
			TermsURL:  federationTerms.URL,
			TermsHash: federationTerms.Hash,
			SignerConfig: directory.SignerConfig{
				PrivateKeyRef:      "fed-key",
				VerificationMethod: "did:web:federation.example#key-1",
			},
		},
		testProviderOrg: {
			ID:        testProviderOrg,
			LegalName: "Provider GmbH",
			TermsURL:  providerTerms.URL,
			TermsHash: providerTerms.Hash,
			SignerConfig: directory.SignerConfig{
				PrivateKeyRef:      "prov-key",
				VerificationMethod: "did:web:provider.example#key-1",
			},
		},
	}}
}

type serviceFixture struct {
	svc       *OfferingService
	db        *gorm.DB
	catalog   *mockCatalog
	directory *mockDirectory
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	cat := &mockCatalog{}
	dir := defaultDirectory()

	svc, err := NewOfferingService(db, cat, dir, testFederationOrg)
	require.NoError(t, err)

	return &serviceFixture{svc: svc, db: db, catalog: cat, directory: dir}
}

func saasCredential(id string) *catalog.OfferingCredential {
	return &catalog.OfferingCredential{
		ID:     id,
		Issuer: testProviderOrg,
		Subject: catalog.CredentialSubject{
			Kind: catalog.KindSaaS,
			SaaS: &catalog.SaaSSubject{Name: "Managed Analytics"},
		},
	}
}

func (f *serviceFixture) seedRecord(t *testing.T, record *models.OfferingRecord) *models.OfferingRecord {
	t.Helper()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	require.NoError(t, f.db.Create(record).Error)
	return record
}

func (f *serviceFixture) reload(t *testing.T, id string) *models.OfferingRecord {
	t.Helper()
	var record models.OfferingRecord
	require.NoError(t, f.db.First(&record, "id = ?", id).Error)
	return &record
}
