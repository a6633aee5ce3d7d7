package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/internal/models"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

type studentRegistry interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdateClassLabel(ctx context.Context, id, label string) (*models.Student, error)
}

type studentStatistics interface {
	ForStudent(ctx context.Context, studentID string) (models.AttendanceCount, error)
}

// StudentService exposes the student registry.
type StudentService struct {
	repo      studentRegistry
	stats     studentStatistics
	cache     statisticsInvalidator
	validator *Validator
	logger    *zap.Logger
}

// NewStudentService constructs the registry service.
func NewStudentService(repo studentRegistry, stats studentStatistics, cache statisticsInvalidator, validate *Validator, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &StudentService{repo: repo, stats: stats, cache: cache, validator: validate, logger: logger}
}

// StudentListRequest captures registry filters. Search matches name, roll number or class label.
type StudentListRequest struct {
	Branch   string `form:"branch" validate:"omitempty,branch_filter"`
	Class    string `form:"class" validate:"omitempty,class_filter"`
	Search   string `form:"search" validate:"omitempty,max=64"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// UpdateClassLabelRequest sets a student's class label. Labels are free text.
type UpdateClassLabelRequest struct {
	ClassLabel string `json:"class_label" validate:"required,max=32"`
}

// List returns students matching the filters.
func (s *StudentService) List(ctx context.Context, req StudentListRequest) ([]models.Student, *models.Pagination, error) {
	if err := s.validator.Check(req, appErrors.ErrInvalidFilter); err != nil {
		return nil, nil, err
	}
	branch, err := parseBranchFilter(req.Branch)
	if err != nil {
		return nil, nil, err
	}
	class, err := parseClassFilter(req.Class)
	if err != nil {
		return nil, nil, err
	}

	filter := models.StudentFilter{
		Branch:   branch,
		Search:   strings.TrimSpace(req.Search),
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if class != nil {
		filter.ClassLabel = class.String()
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list students")
	}
	if students == nil {
		students = []models.Student{}
	}
	return students, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a student together with their attendance snapshot.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapStudentErr(err)
	}
	tally, err := s.stats.ForStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to compute student statistics")
	}
	return &models.StudentDetail{Student: *student, Attendance: tally.Snapshot()}, nil
}

// UpdateClassLabel overwrites a student's class label. Class statistics are keyed by the current
// label, so cached snapshots are dropped.
func (s *StudentService) UpdateClassLabel(ctx context.Context, id string, req UpdateClassLabelRequest) (*models.Student, error) {
	if err := s.validator.Check(req, appErrors.ErrValidation); err != nil {
		return nil, err
	}
	label := strings.Join(strings.Fields(req.ClassLabel), " ")
	if label == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_label is required")
	}
	student, err := s.repo.UpdateClassLabel(ctx, id, label)
	if err != nil {
		return nil, mapStudentErr(err)
	}
	s.cache.Invalidate(ctx)
	s.logger.Info("class label updated", zap.String("student_id", id), zap.String("class_label", label))
	return student, nil
}
