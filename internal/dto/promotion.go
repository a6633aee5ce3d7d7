package dto

import "github.com/noah-isme/college-portal-api/internal/models"

// PromotionPreviewResponse is returned by the preview endpoint.
type PromotionPreviewResponse struct {
	AffectedCount int                   `json:"affected_count"`
	Plan          *models.PromotionPlan `json:"plan"`
}
