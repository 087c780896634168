package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/openfedx/offering-service/internal/catalog"
	"github.com/openfedx/offering-service/internal/models"
	apperrors "github.com/openfedx/offering-service/pkg/errors"
	"github.com/openfedx/offering-service/pkg/metrics"
)

// ListOptions defines filters for offering listings.
type ListOptions struct {
	Issuer  string
	State   models.OfferingState // optional; empty means all states the listing allows
	Page    int
	PerPage int
}

// ListResult describes a paginated, merged result set.
type ListResult struct {
	Offerings []OfferingDTO
	Total     int64
	Page      int
	PerPage   int
}

// GetByID merges the local record with the remote document content. Revoked
// documents are included so owners can still inspect retired offerings.
func (s *OfferingService) GetByID(ctx context.Context, id string) (*OfferingDTO, error) {
	ctx = ensureContext(ctx)

	record, err := s.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	page, err := s.catalog.GetDocumentsByIDs(ctx, []string{id},
		[]catalog.DocumentStatus{catalog.StatusActive, catalog.StatusRevoked})
	if err != nil {
		return nil, apperrors.ErrGateway.WithMessage("catalog document lookup failed").WithInternal(err)
	}

	if len(page.Items) != 1 || !strings.HasPrefix(page.Items[0].Credential.ID, catalog.OfferingIDPrefix) {
		return nil, apperrors.ErrNotFound.WithMessage("no catalog document for offering " + id)
	}

	merged := []OfferingDTO{mapRecord(record, &page.Items[0])}
	s.decorateLegalNames(ctx, merged)
	return &merged[0], nil
}

// ListPublic returns released offerings visible to anyone.
func (s *OfferingService) ListPublic(ctx context.Context, page, perPage int) (*ListResult, error) {
	return s.list(ctx, ListOptions{State: models.StateReleased, Page: page, PerPage: perPage},
		[]catalog.DocumentStatus{catalog.StatusActive})
}

// ListByOrganization returns an organization's own offerings, optionally
// filtered by state. Revoked documents remain visible to their owner.
func (s *OfferingService) ListByOrganization(ctx context.Context, orgID string, opts ListOptions) (*ListResult, error) {
	if orgID == "" {
		return nil, apperrors.NewBadRequest("organization id is required")
	}
	opts.Issuer = orgID
	return s.list(ctx, opts, []catalog.DocumentStatus{catalog.StatusActive, catalog.StatusRevoked})
}

// list pages local records first, bulk-fetches the matching remote documents
// by content hash, merges positionally by hash and re-sorts by the locally
// stored creation date. The remote store makes no ordering promise, so the
// re-sort is mandatory for a stable listing.
func (s *OfferingService) list(ctx context.Context, opts ListOptions, statuses []catalog.DocumentStatus) (*ListResult, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.OfferingRecord{})
	if opts.Issuer != "" {
		query = query.Where("issuer = ?", opts.Issuer)
	}
	if opts.State != "" {
		query = query.Where("state = ?", opts.State)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("count offerings: %w", err))
	}

	pageNum := sanitizePage(opts.Page)
	perPage := sanitizePerPage(opts.PerPage)

	var records []models.OfferingRecord
	if err := query.
		Order("created_at DESC, id ASC").
		Limit(perPage).
		Offset((pageNum - 1) * perPage).
		Find(&records).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("list offerings: %w", err))
	}

	result := &ListResult{
		Offerings: []OfferingDTO{},
		Total:     total,
		Page:      pageNum,
		PerPage:   perPage,
	}
	if len(records) == 0 {
		return result, nil
	}

	// regenerated offerings share their source's content hash; request each
	// hash once or the count comparison in merge reports a false mismatch
	hashes := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, record := range records {
		hash := record.CurrentContentHash
		if hash == "" {
			continue
		}
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}
		hashes = append(hashes, hash)
	}

	remote, err := s.catalog.GetDocumentsByHashes(ctx, hashes, statuses)
	if err != nil {
		return nil, apperrors.ErrGateway.WithMessage("catalog bulk lookup failed").WithInternal(err)
	}

	result.Offerings = s.merge(records, remote.Items, len(hashes))
	s.decorateLegalNames(ctx, result.Offerings)
	return result, nil
}

// merge joins local records with remote documents by content hash. A missing
// remote document degrades that entry to local-only data rather than failing
// the whole listing; the mismatch is logged as a consistency warning.
func (s *OfferingService) merge(records []models.OfferingRecord, docs []catalog.Document, requested int) []OfferingDTO {
	byHash := make(map[string]*catalog.Document, len(docs))
	for i := range docs {
		byHash[docs[i].ContentHash] = &docs[i]
	}

	if len(docs) != requested {
		metrics.ConsistencyWarnings.Inc()
		s.log.Warn("catalog returned unexpected document count",
			zap.Int("requested", requested),
			zap.Int("returned", len(docs)),
		)
	}

	merged := make([]OfferingDTO, 0, len(records))
	for i := range records {
		record := &records[i]
		merged = append(merged, mapRecord(record, byHash[record.CurrentContentHash]))
	}

	// the authoritative creation date is local; remote order is irrelevant
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreationDate.After(merged[j].CreationDate)
	})
	return merged
}

// decorateLegalNames attaches issuer display names from the directory.
// Lookups are best-effort: a directory failure degrades the view instead of
// failing the read.
func (s *OfferingService) decorateLegalNames(ctx context.Context, offerings []OfferingDTO) {
	names := make(map[string]string)
	for i := range offerings {
		issuer := offerings[i].Issuer
		if issuer == "" {
			continue
		}

		name, ok := names[issuer]
		if !ok {
			details, err := s.directory.GetOrganizationDetails(ctx, issuer)
			if err != nil {
				s.log.Warn("issuer legal name lookup failed",
					zap.String("issuer", issuer), zap.Error(err))
				names[issuer] = ""
				continue
			}
			name = details.LegalName
			names[issuer] = name
		}
		offerings[i].IssuerLegalName = name
	}
}
