package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-portal-api/internal/dto"
	"github.com/noah-isme/college-portal-api/internal/middleware"
	"github.com/noah-isme/college-portal-api/internal/models"
	"github.com/noah-isme/college-portal-api/internal/service"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
	"github.com/noah-isme/college-portal-api/pkg/response"
)

type statisticsService interface {
	Overall(ctx context.Context) (models.AttendanceSnapshot, bool, error)
	ByBranch(ctx context.Context) (map[models.Branch]models.AttendanceSnapshot, bool, error)
	ByClass(ctx context.Context) (map[string]models.AttendanceSnapshot, bool, error)
	ForStudent(ctx context.Context, studentID string) (models.AttendanceSnapshot, bool, error)
	Export(ctx context.Context, req service.ExportRequest) (*service.ExportFile, error)
}

// StatisticsHandler exposes aggregated attendance figures.
type StatisticsHandler struct {
	service statisticsService
}

// NewStatisticsHandler builds a new handler.
func NewStatisticsHandler(service statisticsService) *StatisticsHandler {
	return &StatisticsHandler{service: service}
}

// Overall godoc
// @Summary Attendance snapshot across the whole registry
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/stats [get]
func (h *StatisticsHandler) Overall(c *gin.Context) {
	snapshot, hit, err := h.service.Overall(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, snapshot, nil, middleware.ExtractMeta(c))
}

// Branches godoc
// @Summary Attendance snapshot per branch
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/stats/branches [get]
func (h *StatisticsHandler) Branches(c *gin.Context) {
	byBranch, hit, err := h.service.ByBranch(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	snapshots := make(map[string]models.AttendanceSnapshot, len(byBranch))
	for branch, snapshot := range byBranch {
		snapshots[string(branch)] = snapshot
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, dto.GroupedStatisticsResponse{Group: models.StatisticsGroupBranch, Snapshots: snapshots}, nil, middleware.ExtractMeta(c))
}

// Classes godoc
// @Summary Attendance snapshot per class label
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/stats/classes [get]
func (h *StatisticsHandler) Classes(c *gin.Context) {
	snapshots, hit, err := h.service.ByClass(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, dto.GroupedStatisticsResponse{Group: models.StatisticsGroupClass, Snapshots: snapshots}, nil, middleware.ExtractMeta(c))
}

// Student godoc
// @Summary Attendance snapshot for one student
// @Tags Statistics
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/stats/students/{id} [get]
func (h *StatisticsHandler) Student(c *gin.Context) {
	studentID := c.Param("id")
	snapshot, hit, err := h.service.ForStudent(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, dto.StudentStatisticsResponse{StudentID: studentID, Snapshot: snapshot}, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export grouped attendance statistics
// @Tags Statistics
// @Produce text/csv
// @Produce application/pdf
// @Param group query string true "class or branch"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /attendance/stats/export [get]
func (h *StatisticsHandler) Export(c *gin.Context) {
	var req service.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
