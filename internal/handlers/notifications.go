package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openfedx/offering-service/pkg/response"
)

// ContractEventSink receives contract lifecycle notifications from the
// contracting system. Deliveries are at-least-once.
type ContractEventSink interface {
	HandleContractCreated(ctx context.Context, offeringID, contractID string) error
	HandleContractPurged(ctx context.Context, offeringID, contractID string) error
}

// NotificationHandler exposes the inbound contract event endpoints.
type NotificationHandler struct {
	sink ContractEventSink
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(sink ContractEventSink) (*NotificationHandler, error) {
	if sink == nil {
		return nil, errors.New("notification handler: event sink is required")
	}
	return &NotificationHandler{sink: sink}, nil
}

type contractEventRequest struct {
	OfferingID string `json:"offering_id" validate:"required"`
	ContractID string `json:"contract_id" validate:"required"`
}

// ContractCreated records a new contract referencing an offering.
func (h *NotificationHandler) ContractCreated(c *gin.Context) {
	h.handle(c, h.sink.HandleContractCreated)
}

// ContractPurged removes a contract reference from an offering.
func (h *NotificationHandler) ContractPurged(c *gin.Context) {
	h.handle(c, h.sink.HandleContractPurged)
}

func (h *NotificationHandler) handle(c *gin.Context, apply func(ctx context.Context, offeringID, contractID string) error) {
	var req contractEventRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := apply(c.Request.Context(), req.OfferingID, req.ContractID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"acknowledged": true})
}
