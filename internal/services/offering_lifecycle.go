package services

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/openfedx/offering-service/internal/catalog"
	"github.com/openfedx/offering-service/internal/models"
	apperrors "github.com/openfedx/offering-service/pkg/errors"
	"github.com/openfedx/offering-service/pkg/metrics"
)

// Transition moves an offering to the requested lifecycle state. DELETED and
// ARCHIVED requests are a single retire action whose outcome is computed from
// the contract list; the caller's choice between the two is not honored.
func (s *OfferingService) Transition(ctx context.Context, id string, target models.OfferingState) (*OfferingDTO, error) {
	ctx = ensureContext(ctx)

	unlock := s.locks.Lock(id)
	defer unlock()

	record, err := s.loadRecord(ctx, id)
	if err != nil {
		metrics.Transitions.WithLabelValues(string(target), "error").Inc()
		return nil, err
	}

	var dto *OfferingDTO
	if target == models.StateDeleted || target == models.StateArchived {
		dto, err = s.retire(ctx, record)
	} else {
		dto, err = s.transitionExplicit(ctx, record, target)
	}

	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.Transitions.WithLabelValues(string(target), result).Inc()
	return dto, err
}

func (s *OfferingService) transitionExplicit(ctx context.Context, record *models.OfferingRecord, target models.OfferingState) (*OfferingDTO, error) {
	if err := record.TransitionTo(target); err != nil {
		return nil, apperrors.ErrInvalidTransition.WithMessage(err.Error())
	}

	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("persist transition for %s: %w", record.ID, err))
	}

	dto := mapRecord(record, nil)
	return &dto, nil
}

// retire commits the local state change first, then revokes the remote
// document. The local retirement is an irreversible administrative action and
// is not rolled back when the revoke fails; instead the record is flagged for
// reconciliation and the remote failure is surfaced.
func (s *OfferingService) retire(ctx context.Context, record *models.OfferingRecord) (*OfferingDTO, error) {
	outcome, err := record.Retire()
	if err != nil {
		return nil, apperrors.ErrInvalidTransition.WithMessage(err.Error())
	}

	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("persist retirement of %s: %w", record.ID, err))
	}

	if hash := record.CurrentContentHash; hash != "" {
		if err := s.catalog.RevokeDocument(ctx, hash); err != nil {
			s.flagPendingRevoke(ctx, record)
			s.log.Error("remote revoke failed after local retirement",
				zap.String("offering_id", record.ID),
				zap.String("content_hash", hash),
				zap.String("state", string(outcome)),
				zap.Error(err),
			)
			return nil, apperrors.ErrGateway.
				WithMessage("offering retired locally but remote revoke failed, reconciliation pending").
				WithInternal(err)
		}
	}

	dto := mapRecord(record, nil)
	return &dto, nil
}

func (s *OfferingService) flagPendingRevoke(ctx context.Context, record *models.OfferingRecord) {
	record.PendingRemoteRevoke = true
	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		s.log.Error("failed to flag record for revoke reconciliation",
			zap.String("offering_id", record.ID), zap.Error(err))
		return
	}
	metrics.PendingRevocations.Inc()
}

// Purge removes a DELETED offering entirely: the local row and the remote
// document. A remote delete failure after the local removal is surfaced with
// the orphaned hash so operators can reconcile manually.
func (s *OfferingService) Purge(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	unlock := s.locks.Lock(id)
	defer unlock()

	record, err := s.loadRecord(ctx, id)
	if err != nil {
		return err
	}
	if record.State != models.StateDeleted {
		return apperrors.ErrUnprocessable.WithMessage(
			fmt.Sprintf("offering in state %s cannot be purged, only DELETED can", record.State))
	}

	if err := s.db.WithContext(ctx).Delete(&models.OfferingRecord{}, "id = ?", id).Error; err != nil {
		return apperrors.ErrInternalServer.WithInternal(fmt.Errorf("purge offering %s: %w", id, err))
	}

	if hash := record.CurrentContentHash; hash != "" {
		if err := s.catalog.DeleteDocument(ctx, hash); err != nil {
			s.log.Error("remote delete failed after local purge",
				zap.String("offering_id", id),
				zap.String("content_hash", hash),
				zap.Error(err),
			)
			return apperrors.ErrGateway.
				WithMessage("offering purged locally but remote document could not be deleted").
				WithInternal(err)
		}
	}
	return nil
}

// Regenerate publishes a brand-new offering duplicating the payload of an
// existing released, deleted or archived one, as if freshly submitted.
func (s *OfferingService) Regenerate(ctx context.Context, id string) (*OfferingDTO, error) {
	ctx = ensureContext(ctx)

	input, err := s.regenerationSource(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.publish(ctx, *input, "regenerate")
}

// regenerationSource captures the source payload under the source's lock so a
// concurrent purge or retirement cannot slip between the state check and the
// catalog read. The lock is released before publish, which serializes on the
// freshly minted id instead.
func (s *OfferingService) regenerationSource(ctx context.Context, id string) (*PublishInput, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	source, err := s.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	switch source.State {
	case models.StateReleased, models.StateDeleted, models.StateArchived:
	default:
		return nil, apperrors.ErrPreconditionFailed.WithMessage(
			fmt.Sprintf("offering in state %s cannot be regenerated", source.State))
	}

	page, err := s.catalog.GetDocumentsByIDs(ctx, []string{id},
		[]catalog.DocumentStatus{catalog.StatusActive, catalog.StatusRevoked})
	if err != nil {
		return nil, apperrors.ErrGateway.WithMessage("catalog lookup for regeneration failed").WithInternal(err)
	}
	if len(page.Items) != 1 {
		return nil, apperrors.ErrNotFound.WithMessage(
			fmt.Sprintf("expected exactly one catalog document for %s, found %d", id, len(page.Items)))
	}

	cred := page.Items[0].Credential
	cred.ID = catalog.ToBeReplacedID

	return &PublishInput{Credential: &cred, ActingOrgID: source.Issuer}, nil
}

// HandleContractCreated records a new contract referencing the offering.
// Deliveries are at-least-once; adding a known contract id is a no-op.
func (s *OfferingService) HandleContractCreated(ctx context.Context, offeringID, contractID string) error {
	return s.updateContracts(ctx, offeringID, contractID, true)
}

// HandleContractPurged removes a contract reference. Removing an absent id is
// a no-op.
func (s *OfferingService) HandleContractPurged(ctx context.Context, offeringID, contractID string) error {
	return s.updateContracts(ctx, offeringID, contractID, false)
}

func (s *OfferingService) updateContracts(ctx context.Context, offeringID, contractID string, add bool) error {
	ctx = ensureContext(ctx)
	if contractID == "" {
		return apperrors.NewBadRequest("contract id is required")
	}

	unlock := s.locks.Lock(offeringID)
	defer unlock()

	record, err := s.loadRecord(ctx, offeringID)
	if err != nil {
		return err
	}

	var changed bool
	if add {
		changed = record.AddContract(contractID)
	} else {
		changed = record.RemoveContract(contractID)
	}
	if !changed {
		return nil
	}

	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return apperrors.ErrInternalServer.WithInternal(
			fmt.Errorf("persist contract change for %s: %w", offeringID, err))
	}
	return nil
}

// ReconcilePendingRevocations retries the remote revoke for every record that
// was retired while the catalog was unreachable. It is invoked by the
// maintenance job and exposed for manual triggering.
func (s *OfferingService) ReconcilePendingRevocations(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)

	var records []models.OfferingRecord
	if err := s.db.WithContext(ctx).
		Where("pending_remote_revoke = ?", true).
		Find(&records).Error; err != nil {
		return 0, fmt.Errorf("list pending revocations: %w", err)
	}

	var reconciled int
	var errs error
	for i := range records {
		record := &records[i]

		unlock := s.locks.Lock(record.ID)
		err := s.reconcileOne(ctx, record)
		unlock()

		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("offering %s: %w", record.ID, err))
			continue
		}
		reconciled++
	}

	if reconciled > 0 {
		metrics.PendingRevocations.Sub(float64(reconciled))
	}
	return reconciled, errs
}

func (s *OfferingService) reconcileOne(ctx context.Context, record *models.OfferingRecord) error {
	if record.CurrentContentHash != "" {
		if err := s.catalog.RevokeDocument(ctx, record.CurrentContentHash); err != nil {
			return err
		}
	}

	record.PendingRemoteRevoke = false
	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("clear reconciliation flag: %w", err)
	}

	s.log.Info("remote revoke reconciled",
		zap.String("offering_id", record.ID),
		zap.String("content_hash", record.CurrentContentHash),
	)
	return nil
}
