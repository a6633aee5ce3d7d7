package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/internal/models"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
	"github.com/noah-isme/college-portal-api/pkg/export"
)

const statisticsCachePrefix = "attendance:stats:"

type statisticsReader interface {
	Overall(ctx context.Context) (models.AttendanceCount, error)
	ByBranch(ctx context.Context) ([]models.AttendanceCount, error)
	ByClass(ctx context.Context) ([]models.AttendanceCount, error)
	ForStudent(ctx context.Context, studentID string) (models.AttendanceCount, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type tableRenderer interface {
	ContentType() string
	Render(data export.Dataset, title string) ([]byte, error)
}

// StatisticsService derives attendance snapshots. It never mutates the ledger or the registry.
type StatisticsService struct {
	repo      statisticsReader
	students  studentFinder
	cache     *CacheService
	ttl       time.Duration
	renderers map[string]tableRenderer
	validator *Validator
	logger    *zap.Logger
	now       func() time.Time
}

// NewStatisticsService constructs the aggregator. cache may be nil.
func NewStatisticsService(repo statisticsReader, students studentFinder, cache *CacheService, ttl time.Duration, validate *Validator, logger *zap.Logger) *StatisticsService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{
		repo:     repo,
		students: students,
		cache:    cache,
		ttl:      ttl,
		renderers: map[string]tableRenderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Overall returns the registry-wide snapshot. The boolean reports a cache hit.
func (s *StatisticsService) Overall(ctx context.Context) (models.AttendanceSnapshot, bool, error) {
	key := statisticsCachePrefix + "overall"
	var cached models.AttendanceSnapshot
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}
	row, err := s.repo.Overall(ctx)
	if err != nil {
		return models.AttendanceSnapshot{}, false, appErrors.Internal(err, "failed to compute attendance statistics")
	}
	snapshot := row.Snapshot()
	s.cache.Set(ctx, key, snapshot, s.ttl)
	return snapshot, false, nil
}

// ByBranch returns one snapshot per branch. Every branch is present, empty ones as zero snapshots.
func (s *StatisticsService) ByBranch(ctx context.Context) (map[models.Branch]models.AttendanceSnapshot, bool, error) {
	key := statisticsCachePrefix + "branches"
	var cached map[models.Branch]models.AttendanceSnapshot
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}
	rows, err := s.repo.ByBranch(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to compute branch statistics")
	}

	tallies := make(map[models.Branch]models.AttendanceCount, len(models.Branches()))
	for _, branch := range models.Branches() {
		tallies[branch] = models.AttendanceCount{Key: string(branch)}
	}
	for _, row := range rows {
		branch, ok := models.ParseBranch(row.Key)
		if !ok {
			s.logger.Warn("attendance owned by student with unknown branch", zap.String("branch", row.Key))
			continue
		}
		tally := tallies[branch]
		tally.Present += row.Present
		tally.Total += row.Total
		tallies[branch] = tally
	}

	result := make(map[models.Branch]models.AttendanceSnapshot, len(tallies))
	for branch, tally := range tallies {
		result[branch] = tally.Snapshot()
	}
	s.cache.Set(ctx, key, result, s.ttl)
	return result, false, nil
}

// ByClass returns one snapshot per class label that currently owns at least one record.
func (s *StatisticsService) ByClass(ctx context.Context) (map[string]models.AttendanceSnapshot, bool, error) {
	key := statisticsCachePrefix + "classes"
	var cached map[string]models.AttendanceSnapshot
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}
	rows, err := s.repo.ByClass(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to compute class statistics")
	}
	result := make(map[string]models.AttendanceSnapshot, len(rows))
	for _, row := range rows {
		result[row.Key] = row.Snapshot()
	}
	s.cache.Set(ctx, key, result, s.ttl)
	return result, false, nil
}

// ForStudent returns one student's snapshot. Unknown students yield NotFound.
func (s *StatisticsService) ForStudent(ctx context.Context, studentID string) (models.AttendanceSnapshot, bool, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.AttendanceSnapshot{}, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return models.AttendanceSnapshot{}, false, appErrors.Internal(err, "failed to load student")
	}

	key := statisticsCachePrefix + "student:" + studentID
	var cached models.AttendanceSnapshot
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}
	row, err := s.repo.ForStudent(ctx, studentID)
	if err != nil {
		return models.AttendanceSnapshot{}, false, appErrors.Internal(err, "failed to compute student statistics")
	}
	snapshot := row.Snapshot()
	s.cache.Set(ctx, key, snapshot, s.ttl)
	return snapshot, false, nil
}

// Invalidate drops every cached snapshot. Called after any ledger or registry mutation.
func (s *StatisticsService) Invalidate(ctx context.Context) {
	if s == nil {
		return
	}
	s.cache.Invalidate(ctx, statisticsCachePrefix+"*")
}

// ExportFile is a rendered statistics document.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportRequest selects the grouping and file format of an export.
type ExportRequest struct {
	Group  string `form:"group" validate:"required,oneof=class branch"`
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// Export renders per-class or per-branch snapshots as CSV or PDF.
func (s *StatisticsService) Export(ctx context.Context, req ExportRequest) (*ExportFile, error) {
	if err := s.validator.Check(req, appErrors.ErrValidation); err != nil {
		return nil, err
	}
	format := req.Format
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	var (
		dataset export.Dataset
		title   string
	)
	switch models.StatisticsGroup(req.Group) {
	case models.StatisticsGroupBranch:
		byBranch, _, err := s.ByBranch(ctx)
		if err != nil {
			return nil, err
		}
		snapshots := make(map[string]models.AttendanceSnapshot, len(byBranch))
		for branch, snapshot := range byBranch {
			snapshots[string(branch)] = snapshot
		}
		dataset = snapshotDataset("branch", snapshots)
		title = "Attendance by Branch"
	case models.StatisticsGroupClass:
		byClass, _, err := s.ByClass(ctx)
		if err != nil {
			return nil, err
		}
		dataset = snapshotDataset("class", byClass)
		title = "Attendance by Class"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "group must be class or branch")
	}

	payload, err := renderer.Render(dataset, title)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render statistics export")
	}
	filename := fmt.Sprintf("attendance-%s-%s.%s", req.Group, s.now().UTC().Format("20060102"), format)
	return &ExportFile{Filename: filename, ContentType: renderer.ContentType(), Payload: payload}, nil
}

func snapshotDataset(keyHeader string, snapshots map[string]models.AttendanceSnapshot) export.Dataset {
	keys := make([]string, 0, len(snapshots))
	for key := range snapshots {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	dataset := export.Dataset{Headers: []string{keyHeader, "total", "present", "absent", "percentage"}}
	var present, total int
	for _, key := range keys {
		snapshot := snapshots[key]
		present += snapshot.Present
		total += snapshot.Total
		dataset.Rows = append(dataset.Rows, snapshotRow(keyHeader, key, snapshot))
	}
	dataset.Footer = snapshotRow(keyHeader, "TOTAL", models.NewAttendanceSnapshot(present, total))
	return dataset
}

func snapshotRow(keyHeader, key string, snapshot models.AttendanceSnapshot) map[string]string {
	return map[string]string{
		keyHeader:    key,
		"total":      strconv.Itoa(snapshot.Total),
		"present":    strconv.Itoa(snapshot.Present),
		"absent":     strconv.Itoa(snapshot.Absent),
		"percentage": strconv.Itoa(snapshot.Percentage),
	}
}
