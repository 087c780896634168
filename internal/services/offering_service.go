package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openfedx/offering-service/internal/catalog"
	"github.com/openfedx/offering-service/internal/directory"
	"github.com/openfedx/offering-service/internal/models"
	"github.com/openfedx/offering-service/internal/saga"
	apperrors "github.com/openfedx/offering-service/pkg/errors"
	"github.com/openfedx/offering-service/pkg/logger"
	"github.com/openfedx/offering-service/pkg/metrics"
)

// CatalogClient is the remote catalog collaborator consumed by the coordinator.
type CatalogClient interface {
	AddOrUpdateDocument(ctx context.Context, cred *catalog.OfferingCredential) (*catalog.SubmitResult, error)
	GetDocumentsByIDs(ctx context.Context, ids []string, statuses []catalog.DocumentStatus) (*catalog.DocumentPage, error)
	GetDocumentsByHashes(ctx context.Context, hashes []string, statuses []catalog.DocumentStatus) (*catalog.DocumentPage, error)
	RevokeDocument(ctx context.Context, hash string) error
	DeleteDocument(ctx context.Context, hash string) error
}

// DirectoryClient resolves organization identifiers to legal metadata.
type DirectoryClient interface {
	GetOrganizationDetails(ctx context.Context, orgID string) (*directory.OrganizationDetails, error)
}

// OfferingDTO merges the local lifecycle record with the remote document
// content. CreationDate always comes from the local record; remote-supplied
// creation dates are never trusted.
type OfferingDTO struct {
	ID                  string                      `json:"id"`
	State               models.OfferingState        `json:"state"`
	StateRank           int                         `json:"state_rank"`
	Issuer              string                      `json:"issuer"`
	IssuerLegalName     string                      `json:"issuer_legal_name,omitempty"`
	ContentHash         string                      `json:"content_hash"`
	CreationDate        time.Time                   `json:"creation_date"`
	DocumentStatus      catalog.DocumentStatus      `json:"document_status,omitempty"`
	Credential          *catalog.OfferingCredential `json:"credential,omitempty"`
	ContractIDs         []string                    `json:"contract_ids,omitempty"`
	PendingRemoteRevoke bool                        `json:"pending_remote_revoke,omitempty"`
}

// PublishInput carries a publish request into the coordinator.
type PublishInput struct {
	Credential *catalog.OfferingCredential
	// ActingOrgID is the organization identifier extracted from the caller's
	// role token by the surrounding HTTP layer.
	ActingOrgID string
}

// OfferingService coordinates the local lifecycle record with the remote
// catalog: it decides transition legality, runs the remote choreography, and
// compensates on partial failure.
type OfferingService struct {
	db              *gorm.DB
	catalog         CatalogClient
	directory       DirectoryClient
	federationOrgID string
	locks           keyedMutex
	log             *zap.Logger
}

// NewOfferingService constructs the coordinator.
func NewOfferingService(db *gorm.DB, cat CatalogClient, dir DirectoryClient, federationOrgID string) (*OfferingService, error) {
	if db == nil {
		return nil, errors.New("offering service: db is required")
	}
	if cat == nil {
		return nil, errors.New("offering service: catalog client is required")
	}
	if dir == nil {
		return nil, errors.New("offering service: directory client is required")
	}
	if federationOrgID == "" {
		return nil, errors.New("offering service: federation org id is required")
	}

	return &OfferingService{
		db:              db,
		catalog:         cat,
		directory:       dir,
		federationOrgID: federationOrgID,
		log:             logger.WithModule("offering"),
	}, nil
}

// Publish creates a new offering or updates an existing draft, depending on
// whether the payload carries the to-be-replaced sentinel id. The remote
// submission, local persistence and old-document cleanup run as a saga so a
// failure at any point leaves no half-published offering behind.
func (s *OfferingService) Publish(ctx context.Context, input PublishInput) (*OfferingDTO, error) {
	return s.publish(ctx, input, "create")
}

func (s *OfferingService) publish(ctx context.Context, input PublishInput, path string) (*OfferingDTO, error) {
	ctx = ensureContext(ctx)

	cred := input.Credential
	if cred == nil {
		return nil, apperrors.NewBadRequest("offering credential is required")
	}
	if !cred.Subject.Valid() {
		return nil, apperrors.NewBadRequest("offering credential subject is missing or inconsistent")
	}
	if cred.Issuer == "" {
		cred.Issuer = input.ActingOrgID
	}

	creating := cred.ID == catalog.ToBeReplacedID
	if !creating {
		path = "update"
	}

	dto, err := s.publishLocked(ctx, cred, creating)
	if err != nil {
		metrics.Publishes.WithLabelValues(path, "error").Inc()
		return nil, err
	}
	metrics.Publishes.WithLabelValues(path, "success").Inc()
	return dto, nil
}

func (s *OfferingService) publishLocked(ctx context.Context, cred *catalog.OfferingCredential, creating bool) (*OfferingDTO, error) {
	var (
		record       *models.OfferingRecord
		snapshot     models.OfferingRecord
		previousHash string
	)

	if creating {
		now := time.Now().UTC()
		record = &models.OfferingRecord{
			ID:        catalog.OfferingIDPrefix + uuid.NewString(),
			CreatedAt: now,
			State:     models.StateInDraft,
			Issuer:    cred.Issuer,
		}
		cred.ID = record.ID
		cred.CreationDate = now
	}

	unlock := s.locks.Lock(cred.ID)
	defer unlock()

	if !creating {
		loaded, err := s.loadRecord(ctx, cred.ID)
		if err != nil {
			return nil, err
		}
		if loaded.State != models.StateInDraft {
			return nil, apperrors.ErrInvalidState.WithMessage(
				fmt.Sprintf("offering in state %s cannot be updated, only drafts can", loaded.State))
		}
		if cred.Issuer != loaded.Issuer {
			return nil, apperrors.ErrInvalidState.WithMessage("offering ownership cannot be changed")
		}

		record = loaded
		snapshot = *loaded
		previousHash = loaded.CurrentContentHash
		// caller-supplied creation dates are never trusted
		cred.CreationDate = loaded.CreatedAt
	}

	if err := s.patchTermsAndVerifySigner(ctx, cred); err != nil {
		return nil, err
	}

	var result *catalog.SubmitResult
	steps := []saga.Step{
		{
			Name: "submit-document",
			Run: func(ctx context.Context) error {
				res, err := s.catalog.AddOrUpdateDocument(ctx, cred)
				if err != nil {
					return err
				}
				result = res
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.catalog.DeleteDocument(ctx, result.ContentHash)
			},
		},
		{
			Name: "persist-record",
			Run: func(ctx context.Context) error {
				record.ID = result.ID
				record.Issuer = result.Issuer
				record.CurrentContentHash = result.ContentHash
				if creating {
					return s.db.WithContext(ctx).Create(record).Error
				}
				return s.db.WithContext(ctx).Save(record).Error
			},
			Compensate: func(ctx context.Context) error {
				if creating {
					return s.db.WithContext(ctx).Delete(&models.OfferingRecord{}, "id = ?", record.ID).Error
				}
				*record = snapshot
				return s.db.WithContext(ctx).Save(record).Error
			},
		},
	}
	if previousHash != "" {
		steps = append(steps, saga.Step{
			Name: "delete-previous-document",
			Run: func(ctx context.Context) error {
				return s.catalog.DeleteDocument(ctx, previousHash)
			},
		})
	}

	if err := saga.New("publish-offering", s.log, steps...).Execute(ctx); err != nil {
		return nil, s.mapPublishError(err, cred.ID, previousHash)
	}

	dto := mapRecord(record, nil)
	dto.DocumentStatus = result.Status
	dto.Credential = cred
	return &dto, nil
}

// patchTermsAndVerifySigner injects the federation-wide and provider
// terms-and-conditions at fixed positions and checks the provider's signing
// configuration. Both rejections happen before any remote mutation.
func (s *OfferingService) patchTermsAndVerifySigner(ctx context.Context, cred *catalog.OfferingCredential) error {
	platform, err := s.directory.GetOrganizationDetails(ctx, s.federationOrgID)
	if err != nil {
		return apperrors.ErrGateway.WithMessage("federation organization lookup failed").WithInternal(err)
	}

	provider, err := s.directory.GetOrganizationDetails(ctx, cred.Issuer)
	if err != nil {
		return apperrors.ErrGateway.WithMessage("provider organization lookup failed").WithInternal(err)
	}

	// an organization without accepted terms may not publish offerings
	if !provider.HasTerms() {
		return apperrors.ErrForbidden.WithMessage("provider organization has no accepted terms and conditions")
	}

	cred.TermsAndConditions = patchTerms(cred.TermsAndConditions, platform.Terms(), provider.Terms())

	if !provider.SignerConfig.Usable() {
		return apperrors.ErrUnprocessable.WithMessage("provider organization has no usable signer configuration")
	}
	return nil
}

// patchTerms inserts the platform terms at index 0 and the provider terms at
// index 1, each only when not already present by value equality.
func patchTerms(existing []catalog.TermsAndConditions, platform, provider catalog.TermsAndConditions) []catalog.TermsAndConditions {
	contains := func(list []catalog.TermsAndConditions, target catalog.TermsAndConditions) bool {
		for _, item := range list {
			if item == target {
				return true
			}
		}
		return false
	}

	out := existing
	if !contains(out, platform) {
		out = append([]catalog.TermsAndConditions{platform}, out...)
	}
	if !contains(out, provider) {
		rest := append([]catalog.TermsAndConditions{provider}, out[1:]...)
		out = append(out[:1:1], rest...)
	}
	return out
}

// mapPublishError converts a saga failure into the coordinator's error kind.
// Submission rejections carry the remote message (truncated); failures after a
// side effect surface as internal errors with enough context for manual
// reconciliation when compensation also failed.
func (s *OfferingService) mapPublishError(err error, offeringID, previousHash string) error {
	var exec *saga.ExecutionError
	if !errors.As(err, &exec) {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	if exec.Step == "submit-document" {
		var remote *catalog.RemoteError
		if errors.As(exec.Cause, &remote) {
			return apperrors.ErrUnprocessable.WithMessage(truncateMessage(remote.Message))
		}
		return apperrors.ErrGateway.WithMessage("catalog submission failed").WithInternal(exec.Cause)
	}

	metrics.SagaCompensations.WithLabelValues("publish").Inc()
	if exec.CompensationError != nil {
		s.log.Error("publish compensation failed, manual reconciliation required",
			zap.String("offering_id", offeringID),
			zap.String("previous_hash", previousHash),
			zap.Error(exec.CompensationError),
		)
	}
	return apperrors.ErrInternalServer.WithMessage("offering could not be stored consistently").WithInternal(err)
}

func (s *OfferingService) loadRecord(ctx context.Context, id string) (*models.OfferingRecord, error) {
	var record models.OfferingRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound.WithMessage("no offering with id " + id)
	}
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("load offering %s: %w", id, err))
	}
	return &record, nil
}

func mapRecord(record *models.OfferingRecord, doc *catalog.Document) OfferingDTO {
	dto := OfferingDTO{
		ID:                  record.ID,
		State:               record.State,
		StateRank:           record.State.Rank(),
		Issuer:              record.Issuer,
		ContentHash:         record.CurrentContentHash,
		CreationDate:        record.CreatedAt,
		ContractIDs:         record.Contracts(),
		PendingRemoteRevoke: record.PendingRemoteRevoke,
	}
	if doc != nil {
		cred := doc.Credential
		dto.Credential = &cred
		dto.DocumentStatus = doc.Status
	}
	return dto
}
