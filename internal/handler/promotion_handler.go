package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-portal-api/internal/dto"
	"github.com/noah-isme/college-portal-api/internal/models"
	"github.com/noah-isme/college-portal-api/internal/service"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
	"github.com/noah-isme/college-portal-api/pkg/response"
)

type promotionService interface {
	Preview(ctx context.Context, req models.PromotionRequest) (*models.PromotionPlan, error)
	GetPlan(ctx context.Context, planID string) (*models.PromotionPlan, error)
	CancelPlan(ctx context.Context, actorID, planID string) error
	Commit(ctx context.Context, actorID string, req service.CommitRequest) (*models.CommitResult, error)
}

// PromotionHandler exposes the two-phase class promotion workflow.
type PromotionHandler struct {
	service promotionService
}

// NewPromotionHandler builds a new handler.
func NewPromotionHandler(service promotionService) *PromotionHandler {
	return &PromotionHandler{service: service}
}

// Preview godoc
// @Summary Compute a promotion plan without applying it
// @Tags Promotions
// @Accept json
// @Produce json
// @Param payload body models.PromotionRequest false "Branch and class filters, both default to all"
// @Success 200 {object} response.Envelope
// @Router /promotions/preview [post]
func (h *PromotionHandler) Preview(c *gin.Context) {
	var req models.PromotionRequest
	if err := bindOptionalJSON(c, &req, "invalid promotion filter"); err != nil {
		response.Error(c, err)
		return
	}
	plan, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.PromotionPreviewResponse{AffectedCount: plan.AffectedCount, Plan: plan}, nil)
}

// GetPlan godoc
// @Summary Fetch a pending promotion plan
// @Tags Promotions
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /promotions/plans/{id} [get]
func (h *PromotionHandler) GetPlan(c *gin.Context) {
	plan, err := h.service.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// CancelPlan godoc
// @Summary Discard a pending promotion plan
// @Tags Promotions
// @Param id path string true "Plan ID"
// @Success 204
// @Router /promotions/plans/{id} [delete]
func (h *PromotionHandler) CancelPlan(c *gin.Context) {
	actorID, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.CancelPlan(c.Request.Context(), actorID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Commit godoc
// @Summary Apply a previewed promotion plan
// @Tags Promotions
// @Accept json
// @Produce json
// @Param payload body service.CommitRequest true "Plan ID and commit mode (atomic or partialOnError)"
// @Success 200 {object} response.Envelope
// @Router /promotions/commit [post]
func (h *PromotionHandler) Commit(c *gin.Context) {
	actorID, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid commit payload"))
		return
	}
	result, err := h.service.Commit(c.Request.Context(), actorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
