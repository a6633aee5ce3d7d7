package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsRepositoryByBranchGroupsOnOwner(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStatisticsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN students s ON s.id = ar.student_id\nGROUP BY s.branch")).
		WillReturnRows(sqlmock.NewRows([]string{"group_key", "present", "total"}).
			AddRow("CS", 3, 4).
			AddRow("ME", 0, 2))

	rows, err := repo.ByBranch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 75, rows[0].Snapshot().Percentage)
	assert.Equal(t, 2, rows[1].Snapshot().Absent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatisticsRepositoryForStudentWithoutRecords(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStatisticsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE ar.student_id = $1")).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"group_key", "present", "total"}).AddRow("s-1", 0, 0))

	row, err := repo.ForStudent(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, 0, row.Snapshot().Percentage)
	assert.NoError(t, mock.ExpectationsWereMet())
}
