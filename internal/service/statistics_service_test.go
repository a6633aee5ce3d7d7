package service

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-portal-api/internal/models"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

type statisticsStub struct {
	overall  models.AttendanceCount
	branches []models.AttendanceCount
	classes  []models.AttendanceCount
	students map[string]models.AttendanceCount
	calls    int
}

func (s *statisticsStub) Overall(ctx context.Context) (models.AttendanceCount, error) {
	s.calls++
	return s.overall, nil
}

func (s *statisticsStub) ByBranch(ctx context.Context) ([]models.AttendanceCount, error) {
	s.calls++
	return s.branches, nil
}

func (s *statisticsStub) ByClass(ctx context.Context) ([]models.AttendanceCount, error) {
	s.calls++
	return s.classes, nil
}

func (s *statisticsStub) ForStudent(ctx context.Context, studentID string) (models.AttendanceCount, error) {
	s.calls++
	return s.students[studentID], nil
}

type memoryCacheRepo struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.items, key)
		}
	}
	return nil
}

func newStatisticsFixture(stub *statisticsStub) *StatisticsService {
	students := &studentLockerStub{students: map[string]models.Student{
		"s1": {ID: "s1"},
		"s2": {ID: "s2"},
	}}
	cache := NewCacheService(newMemoryCacheRepo(), NewMetricsService(), time.Minute, nil, true)
	svc := NewStatisticsService(stub, students, cache, time.Minute, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestStatisticsOverallUsesCache(t *testing.T) {
	stub := &statisticsStub{overall: models.AttendanceCount{Present: 2, Total: 3}}
	svc := newStatisticsFixture(stub)
	ctx := context.Background()

	snapshot, hit, err := svc.Overall(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.AttendanceSnapshot{Total: 3, Present: 2, Absent: 1, Percentage: 67}, snapshot)

	_, hit, err = svc.Overall(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, stub.calls)

	svc.Invalidate(ctx)
	_, hit, err = svc.Overall(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, stub.calls)
}

func TestStatisticsByBranchFillsEveryBranch(t *testing.T) {
	stub := &statisticsStub{branches: []models.AttendanceCount{
		{Key: "CS", Present: 1, Total: 2},
		{Key: "ET", Present: 1, Total: 1},
		{Key: "EC", Present: 0, Total: 1},
	}}
	svc := newStatisticsFixture(stub)

	byBranch, _, err := svc.ByBranch(context.Background())
	require.NoError(t, err)
	require.Len(t, byBranch, 4)
	assert.Equal(t, 50, byBranch[models.BranchCS].Percentage)
	assert.Equal(t, models.AttendanceSnapshot{Total: 2, Present: 1, Absent: 1, Percentage: 50}, byBranch[models.BranchET])
	assert.Equal(t, models.AttendanceSnapshot{}, byBranch[models.BranchEE])
}

func TestStatisticsByClassKeyedByLabel(t *testing.T) {
	stub := &statisticsStub{classes: []models.AttendanceCount{
		{Key: "CS 2", Present: 3, Total: 4},
		{Key: "ME 6", Present: 1, Total: 3},
	}}
	svc := newStatisticsFixture(stub)

	byClass, hit, err := svc.ByClass(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, byClass, 2)
	assert.Equal(t, 75, byClass["CS 2"].Percentage)
	assert.Equal(t, 33, byClass["ME 6"].Percentage)
}

func TestStatisticsForStudent(t *testing.T) {
	stub := &statisticsStub{students: map[string]models.AttendanceCount{"s1": {Present: 0, Total: 0}}}
	svc := newStatisticsFixture(stub)

	snapshot, _, err := svc.ForStudent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.Percentage)
	assert.Equal(t, 0, snapshot.Absent)

	_, _, err = svc.ForStudent(context.Background(), "ghost")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStatisticsExportCSV(t *testing.T) {
	stub := &statisticsStub{classes: []models.AttendanceCount{
		{Key: "ME 2", Present: 1, Total: 4},
		{Key: "CS 1", Present: 3, Total: 4},
	}}
	svc := newStatisticsFixture(stub)

	file, err := svc.Export(context.Background(), ExportRequest{Group: "class", Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, "attendance-class-20240501.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Payload)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "class,total,present,absent,percentage", lines[0])
	assert.Equal(t, "CS 1,4,3,1,75", lines[1])
	assert.Equal(t, "ME 2,4,1,3,25", lines[2])
	assert.Equal(t, "TOTAL,8,4,4,50", lines[3])
}

func TestStatisticsExportPDF(t *testing.T) {
	svc := newStatisticsFixture(&statisticsStub{})

	file, err := svc.Export(context.Background(), ExportRequest{Group: "branch", Format: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Payload, []byte("%PDF")))

	_, err = svc.Export(context.Background(), ExportRequest{Group: "term"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

