package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-portal-api/internal/models"
	"github.com/noah-isme/college-portal-api/internal/repository"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

type ledgerStub struct {
	mu      sync.Mutex
	records []models.AttendanceRecord
	nextID  int
}

func (l *ledgerStub) forStudent(studentID string) []models.AttendanceRecord {
	var out []models.AttendanceRecord
	for _, r := range l.records {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out
}

func (l *ledgerStub) ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.forStudent(studentID), nil
}

func (l *ledgerStub) ListByStudentTx(ctx context.Context, tx *sqlx.Tx, studentID string) ([]models.AttendanceRecord, error) {
	return l.ListByStudent(ctx, studentID)
}

func (l *ledgerStub) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.ID == id {
			record := r
			return &record, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (l *ledgerStub) Create(ctx context.Context, record *models.AttendanceRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	record.ID = fmt.Sprintf("rec-%d", l.nextID)
	l.records = append(l.records, *record)
	return nil
}

func (l *ledgerStub) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, studentID, recordID string, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.records {
		if l.records[i].ID == recordID && l.records[i].StudentID == studentID {
			l.records[i].Status = status
			record := l.records[i]
			return &record, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (l *ledgerStub) DeleteByStudentTx(ctx context.Context, tx *sqlx.Tx, studentID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.records[:0]
	removed := 0
	for _, r := range l.records {
		if r.StudentID == studentID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	l.records = kept
	return removed, nil
}

func (l *ledgerStub) DeleteAllTx(ctx context.Context, tx *sqlx.Tx) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := len(l.records)
	l.records = nil
	return removed, nil
}

func (l *ledgerStub) Count(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records), nil
}

type studentLockerStub struct {
	students map[string]models.Student
}

func (s *studentLockerStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

func (s *studentLockerStub) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error) {
	return s.FindByID(ctx, id)
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func newAttendanceFixture(t *testing.T) (*AttendanceService, *ledgerStub, *invalidatorStub, func(outcomes ...bool)) {
	db, mock := newTxMock(t)
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	ledger := &ledgerStub{records: []models.AttendanceRecord{
		{ID: "r1", StudentID: "s1", Date: day(1), Subject: "Maths", Status: models.AttendanceStatusPresent},
		{ID: "r2", StudentID: "s1", Date: day(2), Subject: "Physics", Status: models.AttendanceStatusPresent},
		{ID: "r3", StudentID: "s2", Date: day(1), Subject: "Maths", Status: models.AttendanceStatusAbsent},
	}}
	students := &studentLockerStub{students: map[string]models.Student{
		"s1": {ID: "s1", Branch: models.BranchCS, ClassLabel: "CS 1"},
		"s2": {ID: "s2", Branch: models.BranchME, ClassLabel: "ME 1"},
		"s3": {ID: "s3", Branch: models.BranchEE, ClassLabel: "EE 1"},
	}}
	stats := &invalidatorStub{}
	svc := NewAttendanceService(ledger, students, repository.NewMemoryTokenStore(), db, stats, nil, nil, nil, nil, AttendanceConfig{})
	return svc, ledger, stats, func(outcomes ...bool) { expectTxs(mock, outcomes...) }
}

func TestAttendanceRecordsFor(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture(t)

	records, err := svc.RecordsFor(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = svc.RecordsFor(context.Background(), "s3")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	_, err = svc.RecordsFor(context.Background(), "ghost")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAttendanceSetStatusByIndex(t *testing.T) {
	svc, ledger, stats, expect := newAttendanceFixture(t)
	ctx := context.Background()

	expect(true, false, false)
	updated, err := svc.SetStatusByIndex(ctx, "admin", "s1", 1, SetStatusRequest{Status: "ABSENT"})
	require.NoError(t, err)
	assert.Equal(t, "r2", updated.ID)
	assert.Equal(t, models.AttendanceStatusAbsent, updated.Status)
	assert.Equal(t, models.AttendanceStatusAbsent, ledger.forStudent("s1")[1].Status)
	assert.Equal(t, 1, stats.calls)

	_, err = svc.SetStatusByIndex(ctx, "admin", "s1", 2, SetStatusRequest{Status: "present"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.SetStatusByIndex(ctx, "admin", "ghost", 0, SetStatusRequest{Status: "present"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.SetStatusByIndex(ctx, "admin", "s1", 0, SetStatusRequest{Status: "late"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAttendanceSetStatusByID(t *testing.T) {
	svc, _, _, expect := newAttendanceFixture(t)

	expect(true)
	updated, err := svc.SetStatusByID(context.Background(), "admin", "r3", SetStatusRequest{Status: "present"})
	require.NoError(t, err)
	assert.Equal(t, "s2", updated.StudentID)
	assert.Equal(t, models.AttendanceStatusPresent, updated.Status)

	_, err = svc.SetStatusByID(context.Background(), "admin", "missing", SetStatusRequest{Status: "present"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAttendanceAppendRecord(t *testing.T) {
	svc, ledger, stats, _ := newAttendanceFixture(t)

	record, err := svc.AppendRecord(context.Background(), "s3", AppendRecordRequest{Date: "2024-03-04", Subject: " Chemistry ", Status: "present"})
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "Chemistry", record.Subject)
	assert.Len(t, ledger.forStudent("s3"), 1)
	assert.Equal(t, 1, stats.calls)

	_, err = svc.AppendRecord(context.Background(), "s3", AppendRecordRequest{Date: "04/03/2024", Subject: "Chemistry", Status: "present"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAttendanceResetStudentIsIdempotent(t *testing.T) {
	svc, _, _, expect := newAttendanceFixture(t)
	ctx := context.Background()

	expect(true, true)
	result, err := svc.ResetStudent(ctx, "admin", "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Removed)

	records, err := svc.RecordsFor(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, records)

	result, err = svc.ResetStudent(ctx, "admin", "s1")
	require.NoError(t, err)
	assert.Zero(t, result.Removed)

	remaining, err := svc.RecordsFor(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestAttendanceResetAllRequiresConfirmation(t *testing.T) {
	svc, ledger, _, expect := newAttendanceFixture(t)
	ctx := context.Background()

	_, err := svc.ResetAll(ctx, "admin", ResetAllRequest{})
	assert.ErrorIs(t, err, appErrors.ErrConfirmationRequired)
	_, err = svc.ResetAll(ctx, "admin", ResetAllRequest{ConfirmationToken: "forged"})
	assert.ErrorIs(t, err, appErrors.ErrConfirmationRequired)
	assert.Len(t, ledger.records, 3)

	confirmation, err := svc.PreviewResetAll(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 3, confirmation.RecordCount)
	assert.NotEmpty(t, confirmation.Token)

	expect(true, true)
	result, err := svc.ResetAll(ctx, "admin", ResetAllRequest{ConfirmationToken: confirmation.Token})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Removed)

	_, err = svc.ResetAll(ctx, "admin", ResetAllRequest{ConfirmationToken: confirmation.Token})
	assert.ErrorIs(t, err, appErrors.ErrConfirmationRequired)

	second, err := svc.PreviewResetAll(ctx, "admin")
	require.NoError(t, err)
	result, err = svc.ResetAll(ctx, "admin", ResetAllRequest{ConfirmationToken: second.Token})
	require.NoError(t, err)
	assert.Zero(t, result.Removed)
}

func TestAttendanceResetAllRejectsTokenFromAnotherUser(t *testing.T) {
	svc, ledger, _, expect := newAttendanceFixture(t)
	ctx := context.Background()

	confirmation, err := svc.PreviewResetAll(ctx, "admin-a")
	require.NoError(t, err)

	_, err = svc.ResetAll(ctx, "admin-b", ResetAllRequest{ConfirmationToken: confirmation.Token})
	assert.ErrorIs(t, err, appErrors.ErrConfirmationRequired)
	assert.Len(t, ledger.records, 3)

	expect(true)
	result, err := svc.ResetAll(ctx, "admin-a", ResetAllRequest{ConfirmationToken: confirmation.Token})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Removed)
}
