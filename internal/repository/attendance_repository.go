package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-portal-api/internal/models"
)

const attendanceColumns = "ar.id, ar.student_id, ar.date, ar.subject, ar.status, ar.created_at, ar.updated_at"

// Records sort by date, then creation time and ID so positions stay stable between reads.
const attendanceOrder = "ORDER BY ar.date ASC, ar.created_at ASC, ar.id ASC"

// AttendanceRepository persists the attendance ledger.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListByStudent returns a student's records ordered by date ascending.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_records ar WHERE ar.student_id = $1 %s", attendanceColumns, attendanceOrder)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// ListByStudentTx is ListByStudent inside tx, used to resolve positional addresses under lock.
func (r *AttendanceRepository) ListByStudentTx(ctx context.Context, tx *sqlx.Tx, studentID string) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_records ar WHERE ar.student_id = $1 %s", attendanceColumns, attendanceOrder)
	var records []models.AttendanceRecord
	if err := tx.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// FindByID fetches a single record. sql.ErrNoRows is returned unwrapped when absent.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_records ar WHERE ar.id = $1", attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// Create appends a record to the ledger.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO attendance_records (id, student_id, date, subject, status, created_at, updated_at)
        VALUES (:id, :student_id, :date, :subject, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create attendance record: %w", err)
	}
	return nil
}

// UpdateStatusTx sets the status of a record owned by studentID and returns the updated row.
// sql.ErrNoRows is returned when the record does not belong to the student.
func (r *AttendanceRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, studentID, recordID string, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	const query = `UPDATE attendance_records ar SET status = $3, updated_at = $4
        WHERE ar.id = $1 AND ar.student_id = $2
        RETURNING ` + attendanceColumns
	var record models.AttendanceRecord
	if err := tx.GetContext(ctx, &record, query, recordID, studentID, status, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteByStudentTx removes every record for a student and reports how many were removed.
func (r *AttendanceRepository) DeleteByStudentTx(ctx context.Context, tx *sqlx.Tx, studentID string) (int, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM attendance_records WHERE student_id = $1`, studentID)
	if err != nil {
		return 0, fmt.Errorf("reset student attendance: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset student attendance: %w", err)
	}
	return int(removed), nil
}

// DeleteAllTx removes the whole ledger in a single statement.
func (r *AttendanceRepository) DeleteAllTx(ctx context.Context, tx *sqlx.Tx) (int, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM attendance_records`)
	if err != nil {
		return 0, fmt.Errorf("reset attendance: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset attendance: %w", err)
	}
	return int(removed), nil
}

// Count returns the number of records in the ledger.
func (r *AttendanceRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM attendance_records`); err != nil {
		return 0, fmt.Errorf("count attendance records: %w", err)
	}
	return total, nil
}
