package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-portal-api/internal/models"
)

const presentSum = "COALESCE(SUM(CASE WHEN ar.status = 'present' THEN 1 ELSE 0 END), 0)"

// StatisticsRepository exposes read-only aggregates over the attendance ledger. Records are bucketed
// by their owner's current branch and class label.
type StatisticsRepository struct {
	db *sqlx.DB
}

// NewStatisticsRepository builds the repository.
func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// Overall returns registry-wide tallies.
func (r *StatisticsRepository) Overall(ctx context.Context) (models.AttendanceCount, error) {
	query := fmt.Sprintf(`SELECT 'all' AS group_key, %s AS present, COUNT(ar.id) AS total
FROM attendance_records ar`, presentSum)
	var row models.AttendanceCount
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return models.AttendanceCount{}, fmt.Errorf("overall attendance: %w", err)
	}
	return row, nil
}

// ByBranch returns tallies keyed by the owning student's branch.
func (r *StatisticsRepository) ByBranch(ctx context.Context) ([]models.AttendanceCount, error) {
	return r.grouped(ctx, "s.branch", "attendance by branch")
}

// ByClass returns tallies keyed by the owning student's class label.
func (r *StatisticsRepository) ByClass(ctx context.Context) ([]models.AttendanceCount, error) {
	return r.grouped(ctx, "s.class_label", "attendance by class")
}

// ForStudent returns a single student's tallies.
func (r *StatisticsRepository) ForStudent(ctx context.Context, studentID string) (models.AttendanceCount, error) {
	query := fmt.Sprintf(`SELECT $1::text AS group_key, %s AS present, COUNT(ar.id) AS total
FROM attendance_records ar
WHERE ar.student_id = $1`, presentSum)
	var row models.AttendanceCount
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		return models.AttendanceCount{}, fmt.Errorf("student attendance: %w", err)
	}
	return row, nil
}

func (r *StatisticsRepository) grouped(ctx context.Context, column, label string) ([]models.AttendanceCount, error) {
	query := fmt.Sprintf(`SELECT %s AS group_key, %s AS present, COUNT(ar.id) AS total
FROM attendance_records ar
JOIN students s ON s.id = ar.student_id
GROUP BY %s
ORDER BY %s ASC`, column, presentSum, column, column)
	var rows []models.AttendanceCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return rows, nil
}
