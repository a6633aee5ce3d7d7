package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAttendanceSnapshot(t *testing.T) {
	assert.Equal(t, AttendanceSnapshot{}, NewAttendanceSnapshot(0, 0))
	assert.Equal(t, AttendanceSnapshot{Total: 3, Present: 1, Absent: 2, Percentage: 33}, NewAttendanceSnapshot(1, 3))
	assert.Equal(t, AttendanceSnapshot{Total: 8, Present: 7, Absent: 1, Percentage: 88}, NewAttendanceSnapshot(7, 8))
	assert.Equal(t, AttendanceSnapshot{Total: 2, Present: 1, Absent: 1, Percentage: 50}, NewAttendanceSnapshot(1, 2))
}

func TestCommitResultResolve(t *testing.T) {
	result := CommitResult{}
	result.Resolve()
	assert.Equal(t, CommitStatusApplied, result.Status)

	result = CommitResult{Applied: []PromotionOutcome{{StudentID: "a"}}, Failed: []PromotionFailure{{StudentID: "b"}}}
	result.Resolve()
	assert.Equal(t, CommitStatusPartial, result.Status)

	result = CommitResult{Failed: []PromotionFailure{{StudentID: "b"}}}
	result.Resolve()
	assert.Equal(t, CommitStatusRejected, result.Status)
}
