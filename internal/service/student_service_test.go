package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-portal-api/internal/models"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

type studentRegistryStub struct {
	students   map[string]models.Student
	lastFilter models.StudentFilter
}

func (s *studentRegistryStub) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	s.lastFilter = filter
	var out []models.Student
	for _, student := range s.students {
		if filter.Branch == "" || student.Branch == filter.Branch {
			out = append(out, student)
		}
	}
	return out, len(out), nil
}

func (s *studentRegistryStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

func (s *studentRegistryStub) UpdateClassLabel(ctx context.Context, id, label string) (*models.Student, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	student.ClassLabel = label
	s.students[id] = student
	return &student, nil
}

func newStudentFixture() (*StudentService, *studentRegistryStub, *invalidatorStub) {
	repo := &studentRegistryStub{students: map[string]models.Student{
		"s1": {ID: "s1", Name: "Asha", RollNumber: "CS001", Branch: models.BranchCS, ClassLabel: "CS 1"},
		"s2": {ID: "s2", Name: "Ravi", RollNumber: "ET001", Branch: models.BranchET, ClassLabel: "ET 3"},
	}}
	stats := &statisticsStub{students: map[string]models.AttendanceCount{"s1": {Present: 1, Total: 2}}}
	cache := &invalidatorStub{}
	return NewStudentService(repo, stats, cache, nil, nil), repo, cache
}

func TestStudentServiceListNormalisesFilters(t *testing.T) {
	svc, repo, _ := newStudentFixture()

	students, pagination, err := svc.List(context.Background(), StudentListRequest{Branch: "ec", Class: " et   3 ", Search: " ravi "})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, models.BranchET, repo.lastFilter.Branch)
	assert.Equal(t, "et 3", repo.lastFilter.ClassLabel)
	assert.Equal(t, "ravi", repo.lastFilter.Search)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, pagination)
}

func TestStudentServiceListRejectsMalformedFilters(t *testing.T) {
	svc, _, _ := newStudentFixture()

	_, _, err := svc.List(context.Background(), StudentListRequest{Branch: "Civil"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidFilter)

	_, _, err = svc.List(context.Background(), StudentListRequest{Class: "Freshman"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidFilter)
}

func TestStudentServiceGetIncludesSnapshot(t *testing.T) {
	svc, _, _ := newStudentFixture()

	detail, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", detail.Name)
	assert.Equal(t, models.AttendanceSnapshot{Total: 2, Present: 1, Absent: 1, Percentage: 50}, detail.Attendance)

	_, err = svc.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStudentServiceUpdateClassLabel(t *testing.T) {
	svc, repo, cache := newStudentFixture()

	student, err := svc.UpdateClassLabel(context.Background(), "s1", UpdateClassLabelRequest{ClassLabel: "  CS   4 "})
	require.NoError(t, err)
	assert.Equal(t, "CS 4", student.ClassLabel)
	assert.Equal(t, "CS 4", repo.students["s1"].ClassLabel)
	assert.Equal(t, 1, cache.calls)

	_, err = svc.UpdateClassLabel(context.Background(), "ghost", UpdateClassLabelRequest{ClassLabel: "CS 4"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.UpdateClassLabel(context.Background(), "s1", UpdateClassLabelRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
