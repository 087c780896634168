package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openfedx/offering-service/internal/catalog"
	"github.com/openfedx/offering-service/internal/models"
	"github.com/openfedx/offering-service/internal/services"
	appErrors "github.com/openfedx/offering-service/pkg/errors"
	"github.com/openfedx/offering-service/pkg/response"
)

// actingOrgHeader carries the caller's organization identifier, resolved by
// the gateway in front of this service.
const actingOrgHeader = "X-Organization-Id"

// OfferingCoordinator is the service surface the HTTP layer depends on.
type OfferingCoordinator interface {
	Publish(ctx context.Context, input services.PublishInput) (*services.OfferingDTO, error)
	Transition(ctx context.Context, id string, target models.OfferingState) (*services.OfferingDTO, error)
	Purge(ctx context.Context, id string) error
	Regenerate(ctx context.Context, id string) (*services.OfferingDTO, error)
	GetByID(ctx context.Context, id string) (*services.OfferingDTO, error)
	ListPublic(ctx context.Context, page, perPage int) (*services.ListResult, error)
	ListByOrganization(ctx context.Context, orgID string, opts services.ListOptions) (*services.ListResult, error)
}

// OfferingHandler exposes the offering lifecycle over HTTP.
type OfferingHandler struct {
	service OfferingCoordinator
}

// NewOfferingHandler constructs an offering handler.
func NewOfferingHandler(service OfferingCoordinator) (*OfferingHandler, error) {
	if service == nil {
		return nil, errors.New("offering handler: service is required")
	}
	return &OfferingHandler{service: service}, nil
}

// Publish creates a new offering or updates an existing draft.
func (h *OfferingHandler) Publish(c *gin.Context) {
	var cred catalog.OfferingCredential
	if err := c.ShouldBindJSON(&cred); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid offering credential payload"))
		return
	}

	dto, err := h.service.Publish(c.Request.Context(), services.PublishInput{
		Credential:  &cred,
		ActingOrgID: strings.TrimSpace(c.GetHeader(actingOrgHeader)),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, dto)
}

type transitionRequest struct {
	Target string `json:"target" validate:"required"`
}

// Transition moves an offering through its lifecycle. The PURGED target is an
// action rather than a state: it removes the record entirely.
func (h *OfferingHandler) Transition(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req transitionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if strings.EqualFold(req.Target, models.TargetPurged) {
		if err := h.service.Purge(c.Request.Context(), id); err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"purged": true})
		return
	}

	target, err := models.ParseOfferingState(req.Target)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	dto, err := h.service.Transition(c.Request.Context(), id, target)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// Regenerate publishes a fresh copy of an existing offering under a new id.
func (h *OfferingHandler) Regenerate(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	dto, err := h.service.Regenerate(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, dto)
}

// Get returns a single offering merged with its catalog document.
func (h *OfferingHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	dto, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// ListPublic returns released offerings visible to anyone.
func (h *OfferingHandler) ListPublic(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 25)

	result, err := h.service.ListPublic(c.Request.Context(), page, perPage)
	if err != nil {
		response.Error(c, err)
		return
	}

	writeListResult(c, result)
}

// ListByOrganization returns an organization's own offerings.
func (h *OfferingHandler) ListByOrganization(c *gin.Context) {
	orgID := strings.TrimSpace(c.Param("orgId"))

	opts := services.ListOptions{
		Page:    parseIntQuery(c, "page", 1),
		PerPage: parseIntQuery(c, "per_page", 25),
	}

	if raw := strings.TrimSpace(c.Query("state")); raw != "" {
		state, err := models.ParseOfferingState(raw)
		if err != nil {
			response.Error(c, appErrors.NewBadRequest(err.Error()))
			return
		}
		opts.State = state
	}

	result, err := h.service.ListByOrganization(c.Request.Context(), orgID, opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	writeListResult(c, result)
}

func writeListResult(c *gin.Context, result *services.ListResult) {
	totalPages := 0
	if result.PerPage > 0 {
		totalPages = int((result.Total + int64(result.PerPage) - 1) / int64(result.PerPage))
	}

	response.SuccessWithMeta(c, http.StatusOK, result.Offerings, &response.Meta{
		Page:       result.Page,
		PerPage:    result.PerPage,
		Total:      int(result.Total),
		TotalPages: totalPages,
	})
}
