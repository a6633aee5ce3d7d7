package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-portal-api/internal/dto"
	"github.com/noah-isme/college-portal-api/internal/models"
	"github.com/noah-isme/college-portal-api/internal/service"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
	"github.com/noah-isme/college-portal-api/pkg/response"
)

type attendanceService interface {
	RecordsFor(ctx context.Context, studentID string) ([]models.AttendanceRecord, error)
	AppendRecord(ctx context.Context, studentID string, req service.AppendRecordRequest) (*models.AttendanceRecord, error)
	SetStatusByIndex(ctx context.Context, actorID, studentID string, index int, req service.SetStatusRequest) (*models.AttendanceRecord, error)
	SetStatusByID(ctx context.Context, actorID, recordID string, req service.SetStatusRequest) (*models.AttendanceRecord, error)
	ResetStudent(ctx context.Context, actorID, studentID string) (*models.ResetResult, error)
	PreviewResetAll(ctx context.Context, actorID string) (*models.ResetConfirmation, error)
	ResetAll(ctx context.Context, actorID string, req service.ResetAllRequest) (*models.ResetResult, error)
}

// AttendanceHandler exposes the attendance ledger.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler builds a new handler.
func NewAttendanceHandler(service attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// Records godoc
// @Summary List a student's attendance records in date order
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/students/{id}/records [get]
func (h *AttendanceHandler) Records(c *gin.Context) {
	studentID := c.Param("id")
	records, err := h.service.RecordsFor(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewAttendanceRecordsResponse(studentID, records), nil)
}

// Append godoc
// @Summary Append an attendance record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.AppendRecordRequest true "Record payload"
// @Success 201 {object} response.Envelope
// @Router /attendance/students/{id}/records [post]
func (h *AttendanceHandler) Append(c *gin.Context) {
	var req service.AppendRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}
	record, err := h.service.AppendRecord(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// SetStatusByIndex godoc
// @Summary Correct the status of the record at a ledger position
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param index path int true "Zero-based record position"
// @Param payload body service.SetStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/students/{id}/records/{index}/status [post]
func (h *AttendanceHandler) SetStatusByIndex(c *gin.Context) {
	actorID, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "record index must be an integer"))
		return
	}
	var req service.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	record, err := h.service.SetStatusByIndex(c.Request.Context(), actorID, c.Param("id"), index, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// SetStatusByID godoc
// @Summary Correct the status of a record by its identifier
// @Tags Attendance
// @Accept json
// @Produce json
// @Param recordId path string true "Record ID"
// @Param payload body service.SetStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/records/{recordId} [patch]
func (h *AttendanceHandler) SetStatusByID(c *gin.Context) {
	actorID, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	record, err := h.service.SetStatusByID(c.Request.Context(), actorID, c.Param("recordId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ResetStudent godoc
// @Summary Remove every attendance record of one student
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/students/{id}/reset [post]
func (h *AttendanceHandler) ResetStudent(c *gin.Context) {
	actorID, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.ResetStudent(c.Request.Context(), actorID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// PreviewResetAll godoc
// @Summary Issue a confirmation token for a registry-wide reset
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/reset/preview [post]
func (h *AttendanceHandler) PreviewResetAll(c *gin.Context) {
	actorID, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	confirmation, err := h.service.PreviewResetAll(c.Request.Context(), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, confirmation, nil)
}

// ResetAll godoc
// @Summary Remove every attendance record in the registry
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.ResetAllRequest true "Confirmation payload"
// @Success 200 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /attendance/reset [post]
func (h *AttendanceHandler) ResetAll(c *gin.Context) {
	actorID, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.ResetAllRequest
	if err := bindOptionalJSON(c, &req, "invalid reset payload"); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.ResetAll(c.Request.Context(), actorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
