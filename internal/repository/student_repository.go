package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/college-portal-api/internal/models"
)

const studentColumns = "s.id, s.name, s.roll_number, s.branch, s.class_label, s.created_at, s.updated_at"

// StudentRepository manages persistence for the student registry.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters together with the unpaginated total.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions, args := buildStudentConditions(filter)
	base := fmt.Sprintf("FROM students s WHERE %s", strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY s.roll_number ASC, s.id ASC LIMIT %d OFFSET %d", studentColumns, base, size, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListByBranch returns every student of a branch, or of all branches when branch is empty,
// in a stable roll-number order.
func (r *StudentRepository) ListByBranch(ctx context.Context, branch models.Branch) ([]models.Student, error) {
	conditions, args := buildStudentConditions(models.StudentFilter{Branch: branch})
	query := fmt.Sprintf("SELECT %s FROM students s WHERE %s ORDER BY s.roll_number ASC, s.id ASC", studentColumns, strings.Join(conditions, " AND "))
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students by branch: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID. sql.ErrNoRows is returned unwrapped when absent.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s WHERE s.id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// UpdateClassLabel sets a student's class label and returns the updated row.
func (r *StudentRepository) UpdateClassLabel(ctx context.Context, id, label string) (*models.Student, error) {
	const query = `UPDATE students s SET class_label = $2, updated_at = $3 WHERE s.id = $1
        RETURNING ` + studentColumns
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id, label, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &student, nil
}

// LockByIDs row-locks the given students inside tx. Rows are locked in ID order so concurrent
// batches acquire locks in the same sequence. Missing IDs are simply absent from the result.
func (r *StudentRepository) LockByIDs(ctx context.Context, tx *sqlx.Tx, ids []string) ([]models.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM students s WHERE s.id = ANY($1) ORDER BY s.id ASC FOR UPDATE", studentColumns)
	var students []models.Student
	if err := tx.SelectContext(ctx, &students, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("lock students: %w", err)
	}
	return students, nil
}

// LockByID row-locks a single student inside tx.
func (r *StudentRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s WHERE s.id = $1 FOR UPDATE", studentColumns)
	var student models.Student
	if err := tx.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// UpdateClassLabelTx sets a class label inside tx, failing when the row vanished.
func (r *StudentRepository) UpdateClassLabelTx(ctx context.Context, tx *sqlx.Tx, id, label string) error {
	res, err := tx.ExecContext(ctx, `UPDATE students SET class_label = $2, updated_at = $3 WHERE id = $1`, id, label, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update class label %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update class label %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("update class label %s: no rows updated", id)
	}
	return nil
}

func buildStudentConditions(filter models.StudentFilter) ([]string, []interface{}) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Branch != "" {
		args = append(args, pq.Array(filter.Branch.Spellings()))
		conditions = append(conditions, fmt.Sprintf("UPPER(s.branch) = ANY($%d)", len(args)))
	}
	if filter.ClassLabel != "" {
		if label, ok := models.ParseClassLabel(filter.ClassLabel); ok {
			args = append(args, classLabelPattern(label))
			conditions = append(conditions, fmt.Sprintf("s.class_label ~* $%d", len(args)))
		} else {
			args = append(args, strings.ToUpper(strings.TrimSpace(filter.ClassLabel)))
			conditions = append(conditions, fmt.Sprintf("UPPER(TRIM(s.class_label)) = $%d", len(args)))
		}
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(filter.Search))+"%")
		idx := len(args)
		conditions = append(conditions, fmt.Sprintf(
			`(LOWER(s.name) LIKE $%d ESCAPE '\' OR LOWER(s.roll_number) LIKE $%d ESCAPE '\' OR LOWER(s.class_label) LIKE $%d ESCAPE '\')`,
			idx, idx, idx))
	}
	return conditions, args
}

// classLabelPattern matches stored labels that parse to label: any spacing, any code case and
// zero-padded semesters ("cs  02" matches CS 2). Codes are letters only, so no quoting is needed.
func classLabelPattern(label models.ClassLabel) string {
	return fmt.Sprintf(`^\s*%s\s+\+?0*%d\s*$`, label.Code, label.Semester)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside a LIKE pattern.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
