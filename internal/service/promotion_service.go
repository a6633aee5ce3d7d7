package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/internal/models"
	"github.com/noah-isme/college-portal-api/internal/repository"
	"github.com/noah-isme/college-portal-api/pkg/database"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

const planKeyPrefix = "plan:"

type promotionRegistry interface {
	ListByBranch(ctx context.Context, branch models.Branch) ([]models.Student, error)
	LockByIDs(ctx context.Context, tx *sqlx.Tx, ids []string) ([]models.Student, error)
	UpdateClassLabelTx(ctx context.Context, tx *sqlx.Tx, id, label string) error
}

// PromotionConfig governs eligibility and plan lifetime.
type PromotionConfig struct {
	FinalSemester int
	PlanTTL       time.Duration
}

// PromotionService computes promotion plans and commits them.
//
// A plan is pure data: Preview reads the registry and stores the plan under a short-lived ID.
// Commit consumes the plan exactly once, re-validates every planned student under a row lock and
// writes the new labels either in one transaction (atomic) or one transaction per student
// (partialOnError). Students whose state drifted since the preview are excluded, not failed.
type PromotionService struct {
	registry  promotionRegistry
	plans     tokenStore
	tx        txProvider
	stats     statisticsInvalidator
	audit     *AuditService
	metrics   *MetricsService
	validator *Validator
	logger    *zap.Logger
	cfg       PromotionConfig
	now       func() time.Time
}

// NewPromotionService wires the promotion engine.
func NewPromotionService(
	registry promotionRegistry,
	plans tokenStore,
	tx txProvider,
	stats statisticsInvalidator,
	audit *AuditService,
	metrics *MetricsService,
	validate *Validator,
	logger *zap.Logger,
	cfg PromotionConfig,
) *PromotionService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if stats == nil {
		stats = noopInvalidator{}
	}
	if cfg.FinalSemester <= 0 {
		cfg.FinalSemester = 6
	}
	if cfg.PlanTTL <= 0 {
		cfg.PlanTTL = 15 * time.Minute
	}
	return &PromotionService{
		registry:  registry,
		plans:     plans,
		tx:        tx,
		stats:     stats,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// CommitRequest confirms a previewed plan.
type CommitRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
	Mode   string `json:"mode" validate:"omitempty,commit_mode"`
}

// Preview selects eligible students and computes their next labels without mutating anything.
// Malformed filters are rejected; well-formed filters that match nobody yield an empty plan.
func (s *PromotionService) Preview(ctx context.Context, req models.PromotionRequest) (*models.PromotionPlan, error) {
	if err := s.validator.Check(req, appErrors.ErrInvalidFilter); err != nil {
		return nil, err
	}
	branch, err := parseBranchFilter(req.BranchFilter)
	if err != nil {
		return nil, err
	}
	class, err := parseClassFilter(req.ClassFilter)
	if err != nil {
		return nil, err
	}

	students, err := s.registry.ListByBranch(ctx, branch)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load students")
	}

	entries := make([]models.PromotionEntry, 0, len(students))
	for _, student := range students {
		entry, ok := s.planEntry(student, class)
		if ok {
			entries = append(entries, entry)
		}
	}

	now := s.now().UTC()
	plan := &models.PromotionPlan{
		ID:            uuid.NewString(),
		BranchFilter:  filterValue(string(branch)),
		ClassFilter:   filterValue(classString(class)),
		FinalSemester: s.cfg.FinalSemester,
		Entries:       entries,
		AffectedCount: len(entries),
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.PlanTTL),
	}
	if err := s.plans.Save(ctx, planKeyPrefix+plan.ID, plan, s.cfg.PlanTTL); err != nil {
		return nil, appErrors.Internal(err, "failed to store promotion plan")
	}
	return plan, nil
}

// GetPlan re-reads a previewed plan that has not been committed, cancelled or expired.
func (s *PromotionService) GetPlan(ctx context.Context, planID string) (*models.PromotionPlan, error) {
	var plan models.PromotionPlan
	if err := s.plans.Load(ctx, planKeyPrefix+planID, &plan); err != nil {
		return nil, mapPlanErr(err)
	}
	return &plan, nil
}

// CancelPlan abandons a plan before commit. Nothing is mutated.
func (s *PromotionService) CancelPlan(ctx context.Context, actorID, planID string) error {
	if err := s.plans.Delete(ctx, planKeyPrefix+planID); err != nil {
		return mapPlanErr(err)
	}
	s.audit.Record(AuditEvent{
		ActorID:    actorID,
		Action:     models.AuditActionPromotionPlanCancel,
		Resource:   models.AuditResourcePromotion,
		ResourceID: planID,
	})
	return nil
}

// Commit applies a previewed plan. Once the plan is taken the batch runs to completion even if
// the caller goes away.
func (s *PromotionService) Commit(ctx context.Context, actorID string, req CommitRequest) (*models.CommitResult, error) {
	if err := s.validator.Check(req, appErrors.ErrValidation); err != nil {
		return nil, err
	}
	mode := models.CommitMode(req.Mode)
	if mode == "" {
		mode = models.CommitModeAtomic
	}

	var plan models.PromotionPlan
	if err := s.plans.Take(ctx, planKeyPrefix+req.PlanID, &plan); err != nil {
		return nil, mapPlanErr(err)
	}

	runCtx := context.WithoutCancel(ctx)
	result := &models.CommitResult{
		PlanID:   plan.ID,
		Mode:     mode,
		Applied:  []models.PromotionOutcome{},
		Excluded: []models.PromotionExclusion{},
		Failed:   []models.PromotionFailure{},
	}
	if mode == models.CommitModePartialOnError {
		s.commitEach(runCtx, plan, result)
	} else {
		s.commitAtomic(runCtx, plan, result)
	}
	result.Resolve()
	result.CommittedAt = s.now().UTC()

	if len(result.Applied) > 0 {
		s.stats.Invalidate(runCtx)
	}
	s.metrics.ObservePromotionCommit(result)
	s.logger.Info("promotion committed",
		zap.String("plan_id", plan.ID),
		zap.String("mode", string(mode)),
		zap.String("status", string(result.Status)),
		zap.Int("applied", len(result.Applied)),
		zap.Int("excluded", len(result.Excluded)),
		zap.Int("failed", len(result.Failed)),
		zap.String("actor", actorID),
	)
	s.audit.Record(AuditEvent{
		ActorID:    actorID,
		Action:     models.AuditActionPromotionCommit,
		Resource:   models.AuditResourcePromotion,
		ResourceID: plan.ID,
		Before:     plan.Entries,
		After:      result,
	})
	return result, nil
}

// commitAtomic writes every entry in one transaction. Any write error rolls back the batch and
// every non-excluded entry is reported as failed.
func (s *PromotionService) commitAtomic(ctx context.Context, plan models.PromotionPlan, result *models.CommitResult) {
	var (
		applied  []models.PromotionOutcome
		excluded []models.PromotionExclusion
		failedID string
	)
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		applied, excluded, failedID = nil, nil, ""
		current, err := s.lockPlanned(ctx, tx, plan.Entries)
		if err != nil {
			return err
		}
		for _, entry := range plan.Entries {
			next, exclusion := s.revalidate(entry, current[entry.StudentID])
			if exclusion != nil {
				excluded = append(excluded, *exclusion)
				continue
			}
			if err := s.registry.UpdateClassLabelTx(ctx, tx, entry.StudentID, next); err != nil {
				failedID = entry.StudentID
				return err
			}
			applied = append(applied, models.PromotionOutcome{
				StudentID:      entry.StudentID,
				FromClassLabel: entry.CurrentClassLabel,
				ToClassLabel:   next,
			})
		}
		return nil
	})
	if err == nil {
		result.Applied = append(result.Applied, applied...)
		result.Excluded = append(result.Excluded, excluded...)
		return
	}

	s.logger.Warn("atomic promotion rolled back", zap.String("plan_id", plan.ID), zap.Error(err))
	skipped := make(map[string]struct{}, len(excluded))
	for _, exclusion := range excluded {
		skipped[exclusion.StudentID] = struct{}{}
	}
	result.Excluded = append(result.Excluded, excluded...)
	for _, entry := range plan.Entries {
		if _, ok := skipped[entry.StudentID]; ok {
			continue
		}
		reason := "rolled back"
		if failedID == "" || entry.StudentID == failedID {
			reason = err.Error()
		}
		result.Failed = append(result.Failed, models.PromotionFailure{StudentID: entry.StudentID, Reason: reason})
	}
}

// commitEach writes every entry in its own transaction, so one failure does not undo the others.
func (s *PromotionService) commitEach(ctx context.Context, plan models.PromotionPlan, result *models.CommitResult) {
	for _, entry := range plan.Entries {
		var (
			next      string
			exclusion *models.PromotionExclusion
		)
		err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
			next, exclusion = "", nil
			current, err := s.lockPlanned(ctx, tx, []models.PromotionEntry{entry})
			if err != nil {
				return err
			}
			next, exclusion = s.revalidate(entry, current[entry.StudentID])
			if exclusion != nil {
				return nil
			}
			return s.registry.UpdateClassLabelTx(ctx, tx, entry.StudentID, next)
		})
		switch {
		case err != nil:
			s.logger.Warn("promotion entry failed", zap.String("plan_id", plan.ID), zap.String("student_id", entry.StudentID), zap.Error(err))
			result.Failed = append(result.Failed, models.PromotionFailure{StudentID: entry.StudentID, Reason: err.Error()})
		case exclusion != nil:
			result.Excluded = append(result.Excluded, *exclusion)
		default:
			result.Applied = append(result.Applied, models.PromotionOutcome{
				StudentID:      entry.StudentID,
				FromClassLabel: entry.CurrentClassLabel,
				ToClassLabel:   next,
			})
		}
	}
}

func (s *PromotionService) lockPlanned(ctx context.Context, tx *sqlx.Tx, entries []models.PromotionEntry) (map[string]*models.Student, error) {
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.StudentID)
	}
	students, err := s.registry.LockByIDs(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	current := make(map[string]*models.Student, len(students))
	for i := range students {
		current[students[i].ID] = &students[i]
	}
	return current, nil
}

// revalidate checks a planned entry against the locked row and returns the label to write, or the
// reason the entry must be skipped.
func (s *PromotionService) revalidate(entry models.PromotionEntry, current *models.Student) (string, *models.PromotionExclusion) {
	exclude := func(reason models.ExclusionReason, detail string) (string, *models.PromotionExclusion) {
		return "", &models.PromotionExclusion{StudentID: entry.StudentID, Reason: reason, Detail: detail}
	}
	if current == nil {
		return exclude(models.ExclusionNotFound, "student no longer exists")
	}
	if current.ClassLabel != entry.CurrentClassLabel {
		return exclude(models.ExclusionConcurrentModification,
			fmt.Sprintf("class label changed from %q to %q", entry.CurrentClassLabel, current.ClassLabel))
	}
	if current.Branch.Canonical() != entry.Branch.Canonical() {
		return exclude(models.ExclusionConcurrentModification,
			fmt.Sprintf("branch changed from %s to %s", entry.Branch, current.Branch))
	}
	label, ok := models.ParseClassLabel(current.ClassLabel)
	if !ok || !label.EligibleForPromotion(s.cfg.FinalSemester) {
		return exclude(models.ExclusionNotEligible, "student is no longer eligible for promotion")
	}
	return label.Next().String(), nil
}

func (s *PromotionService) planEntry(student models.Student, class *models.ClassLabel) (models.PromotionEntry, bool) {
	label, ok := models.ParseClassLabel(student.ClassLabel)
	if !ok {
		return models.PromotionEntry{}, false
	}
	if class != nil && !label.Matches(*class) {
		return models.PromotionEntry{}, false
	}
	if !label.EligibleForPromotion(s.cfg.FinalSemester) {
		return models.PromotionEntry{}, false
	}
	labelBranch, known := label.Branch()
	return models.PromotionEntry{
		StudentID:         student.ID,
		StudentName:       student.Name,
		RollNumber:        student.RollNumber,
		Branch:            student.Branch,
		CurrentClassLabel: student.ClassLabel,
		NextClassLabel:    label.Next().String(),
		BranchMismatch:    !known || labelBranch != student.Branch.Canonical(),
	}, true
}

func mapPlanErr(err error) error {
	if errors.Is(err, repository.ErrTokenNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, "promotion plan not found or expired")
	}
	return appErrors.Internal(err, "failed to access promotion plan")
}

func filterValue(value string) string {
	if value == "" {
		return models.FilterAll
	}
	return value
}

func classString(label *models.ClassLabel) string {
	if label == nil {
		return ""
	}
	return label.String()
}
