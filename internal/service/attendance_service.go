package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/internal/models"
	"github.com/noah-isme/college-portal-api/internal/repository"
	"github.com/noah-isme/college-portal-api/pkg/database"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

const resetTokenPrefix = "reset:"

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type attendanceLedger interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error)
	ListByStudentTx(ctx context.Context, tx *sqlx.Tx, studentID string) ([]models.AttendanceRecord, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	Create(ctx context.Context, record *models.AttendanceRecord) error
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, studentID, recordID string, status models.AttendanceStatus) (*models.AttendanceRecord, error)
	DeleteByStudentTx(ctx context.Context, tx *sqlx.Tx, studentID string) (int, error)
	DeleteAllTx(ctx context.Context, tx *sqlx.Tx) (int, error)
	Count(ctx context.Context) (int, error)
}

type studentLocker interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error)
}

type tokenStore interface {
	Save(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Load(ctx context.Context, key string, dest interface{}) error
	Take(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

type statisticsInvalidator interface {
	Invalidate(ctx context.Context)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context) {}

// AttendanceConfig tunes the ledger workflows.
type AttendanceConfig struct {
	ResetConfirmationTTL time.Duration
}

// AttendanceService owns the attendance ledger. Every mutation runs in a transaction holding the
// owning student's row lock so concurrent writers against one student are serialised.
type AttendanceService struct {
	ledger    attendanceLedger
	students  studentLocker
	tokens    tokenStore
	tx        txProvider
	stats     statisticsInvalidator
	audit     *AuditService
	metrics   *MetricsService
	validator *Validator
	logger    *zap.Logger
	cfg       AttendanceConfig
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(
	ledger attendanceLedger,
	students studentLocker,
	tokens tokenStore,
	tx txProvider,
	stats statisticsInvalidator,
	audit *AuditService,
	metrics *MetricsService,
	validate *Validator,
	logger *zap.Logger,
	cfg AttendanceConfig,
) *AttendanceService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if stats == nil {
		stats = noopInvalidator{}
	}
	if cfg.ResetConfirmationTTL <= 0 {
		cfg.ResetConfirmationTTL = 5 * time.Minute
	}
	return &AttendanceService{
		ledger:    ledger,
		students:  students,
		tokens:    tokens,
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

// AppendRecordRequest describes a new attendance entry.
type AppendRecordRequest struct {
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	Subject string `json:"subject" validate:"required,max=128"`
	Status  string `json:"status" validate:"required,attendance_status"`
}

// SetStatusRequest corrects a single record.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,attendance_status"`
}

// ResetAllRequest carries the confirmation token issued by PreviewResetAll.
type ResetAllRequest struct {
	ConfirmationToken string `json:"confirmation_token"`
}

type resetTicket struct {
	Token       string    `json:"token"`
	RecordCount int       `json:"record_count"`
	IssuedTo    string    `json:"issued_to"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RecordsFor returns a student's records ordered by date ascending.
func (s *AttendanceService) RecordsFor(ctx context.Context, studentID string) ([]models.AttendanceRecord, error) {
	if err := s.ensureStudent(ctx, studentID); err != nil {
		return nil, err
	}
	records, err := s.ledger.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance records")
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	return records, nil
}

// AppendRecord adds a record to a student's ledger.
func (s *AttendanceService) AppendRecord(ctx context.Context, studentID string, req AppendRecordRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Check(req, appErrors.ErrValidation); err != nil {
		return nil, err
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}
	status, _ := models.ParseAttendanceStatus(req.Status)
	if err := s.ensureStudent(ctx, studentID); err != nil {
		return nil, err
	}

	record := &models.AttendanceRecord{
		StudentID: studentID,
		Date:      date,
		Subject:   strings.TrimSpace(req.Subject),
		Status:    status,
	}
	if err := s.ledger.Create(ctx, record); err != nil {
		return nil, appErrors.Internal(err, "failed to store attendance record")
	}
	s.stats.Invalidate(ctx)
	return record, nil
}

// SetStatusByIndex corrects the record at a zero-based position in the student's date-ordered
// ledger. The position is resolved under the student's lock, so it cannot shift between lookup
// and update.
func (s *AttendanceService) SetStatusByIndex(ctx context.Context, actorID, studentID string, index int, req SetStatusRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Check(req, appErrors.ErrValidation); err != nil {
		return nil, err
	}
	status, _ := models.ParseAttendanceStatus(req.Status)

	var before, updated *models.AttendanceRecord
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.lockStudent(ctx, tx, studentID); err != nil {
			return err
		}
		records, err := s.ledger.ListByStudentTx(ctx, tx, studentID)
		if err != nil {
			return appErrors.Internal(err, "failed to load attendance records")
		}
		if index < 0 || index >= len(records) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		before = &records[index]
		updated, err = s.ledger.UpdateStatusTx(ctx, tx, studentID, before.ID, status)
		if err != nil {
			return mapRecordErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	s.afterStatusChange(ctx, actorID, before, updated)
	return updated, nil
}

// SetStatusByID corrects a record addressed by its stable ID.
func (s *AttendanceService) SetStatusByID(ctx context.Context, actorID, recordID string, req SetStatusRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Check(req, appErrors.ErrValidation); err != nil {
		return nil, err
	}
	status, _ := models.ParseAttendanceStatus(req.Status)

	before, err := s.ledger.FindByID(ctx, recordID)
	if err != nil {
		return nil, mapRecordErr(err)
	}

	var updated *models.AttendanceRecord
	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.lockStudent(ctx, tx, before.StudentID); err != nil {
			return err
		}
		updated, err = s.ledger.UpdateStatusTx(ctx, tx, before.StudentID, recordID, status)
		if err != nil {
			return mapRecordErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	s.afterStatusChange(ctx, actorID, before, updated)
	return updated, nil
}

// ResetStudent removes every record of one student. Resetting an empty ledger removes nothing and succeeds.
func (s *AttendanceService) ResetStudent(ctx context.Context, actorID, studentID string) (*models.ResetResult, error) {
	var removed int
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.lockStudent(ctx, tx, studentID); err != nil {
			return err
		}
		var err error
		removed, err = s.ledger.DeleteByStudentTx(ctx, tx, studentID)
		if err != nil {
			return appErrors.Internal(err, "failed to reset attendance")
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	result := &models.ResetResult{StudentID: studentID, Removed: removed}
	s.logger.Info("student attendance reset", zap.String("student_id", studentID), zap.Int("removed", removed), zap.String("actor", actorID))
	s.metrics.ObserveAttendanceReset("student", removed)
	s.stats.Invalidate(ctx)
	s.audit.Record(AuditEvent{
		ActorID:    actorID,
		Action:     models.AuditActionAttendanceResetOne,
		Resource:   models.AuditResourceAttendance,
		ResourceID: studentID,
		After:      result,
	})
	return result, nil
}

// PreviewResetAll counts the ledger and issues a single-use confirmation token for ResetAll.
func (s *AttendanceService) PreviewResetAll(ctx context.Context, actorID string) (*models.ResetConfirmation, error) {
	count, err := s.ledger.Count(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count attendance records")
	}
	ticket := resetTicket{
		Token:       uuid.NewString(),
		RecordCount: count,
		IssuedTo:    actorID,
		ExpiresAt:   s.now().UTC().Add(s.cfg.ResetConfirmationTTL),
	}
	if err := s.tokens.Save(ctx, resetTokenPrefix+ticket.Token, ticket, s.cfg.ResetConfirmationTTL); err != nil {
		return nil, appErrors.Internal(err, "failed to issue confirmation token")
	}
	return &models.ResetConfirmation{Token: ticket.Token, RecordCount: count, ExpiresAt: ticket.ExpiresAt}, nil
}

// ResetAll clears the whole ledger in one statement. It requires a live token from PreviewResetAll,
// presented by the same user who previewed. The token is consumed before anything is deleted, so
// a token can never authorise two resets; a token presented by someone else is left untouched.
func (s *AttendanceService) ResetAll(ctx context.Context, actorID string, req ResetAllRequest) (*models.ResetResult, error) {
	token := strings.TrimSpace(req.ConfirmationToken)
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrConfirmationRequired, "preview the reset and supply its confirmation_token")
	}
	var ticket resetTicket
	if err := s.tokens.Load(ctx, resetTokenPrefix+token, &ticket); err != nil {
		return nil, mapResetTokenErr(err)
	}
	if ticket.IssuedTo != actorID {
		s.logger.Warn("reset confirmation presented by another user", zap.String("actor", actorID), zap.String("issued_to", ticket.IssuedTo))
		return nil, appErrors.Clone(appErrors.ErrConfirmationRequired, "confirmation token was issued to a different user")
	}
	if err := s.tokens.Take(ctx, resetTokenPrefix+token, &ticket); err != nil {
		return nil, mapResetTokenErr(err)
	}

	var removed int
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		removed, err = s.ledger.DeleteAllTx(ctx, tx)
		if err != nil {
			return appErrors.Internal(err, "failed to reset attendance")
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	result := &models.ResetResult{Removed: removed}
	s.logger.Info("attendance ledger reset", zap.Int("removed", removed), zap.Int("previewed", ticket.RecordCount), zap.String("actor", actorID))
	s.metrics.ObserveAttendanceReset("all", removed)
	s.stats.Invalidate(ctx)
	s.audit.Record(AuditEvent{
		ActorID:  actorID,
		Action:   models.AuditActionAttendanceResetAll,
		Resource: models.AuditResourceAttendance,
		Before:   map[string]int{"previewed": ticket.RecordCount},
		After:    result,
	})
	return result, nil
}

func mapResetTokenErr(err error) error {
	if errors.Is(err, repository.ErrTokenNotFound) {
		return appErrors.Clone(appErrors.ErrConfirmationRequired, "confirmation token is invalid or expired")
	}
	return appErrors.Internal(err, "failed to verify confirmation token")
}

func (s *AttendanceService) ensureStudent(ctx context.Context, studentID string) error {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return mapStudentErr(err)
	}
	return nil
}

func (s *AttendanceService) lockStudent(ctx context.Context, tx *sqlx.Tx, studentID string) error {
	if _, err := s.students.LockByID(ctx, tx, studentID); err != nil {
		return mapStudentErr(err)
	}
	return nil
}

func (s *AttendanceService) afterStatusChange(ctx context.Context, actorID string, before, after *models.AttendanceRecord) {
	s.stats.Invalidate(ctx)
	s.audit.Record(AuditEvent{
		ActorID:    actorID,
		Action:     models.AuditActionAttendanceStatus,
		Resource:   models.AuditResourceAttendance,
		ResourceID: after.ID,
		Before:     map[string]models.AttendanceStatus{"status": before.Status},
		After:      map[string]models.AttendanceStatus{"status": after.Status},
	})
}

func mapStudentErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return appErrors.Internal(err, "failed to load student")
}

func mapRecordErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}
	return appErrors.Internal(err, "failed to update attendance record")
}
