package models

import (
	"math"
	"strings"
	"time"
)

// AttendanceStatus is the outcome recorded for one session.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// ParseAttendanceStatus accepts either status regardless of case.
func ParseAttendanceStatus(raw string) (AttendanceStatus, bool) {
	status := AttendanceStatus(strings.ToLower(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent:
		return true
	default:
		return false
	}
}

// AttendanceRecord is one subject/session/date entry owned by a student.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Date      time.Time        `db:"date" json:"date"`
	Subject   string           `db:"subject" json:"subject"`
	Status    AttendanceStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceSnapshot is a derived aggregate over some grouping of records.
type AttendanceSnapshot struct {
	Total      int `json:"total"`
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Percentage int `json:"percentage"`
}

// NewAttendanceSnapshot derives absent and percentage from raw counts. An empty group yields zeros.
func NewAttendanceSnapshot(present, total int) AttendanceSnapshot {
	if total <= 0 {
		return AttendanceSnapshot{}
	}
	if present > total {
		present = total
	}
	if present < 0 {
		present = 0
	}
	return AttendanceSnapshot{
		Total:      total,
		Present:    present,
		Absent:     total - present,
		Percentage: int(math.Round(float64(present) / float64(total) * 100)),
	}
}

// AttendanceCount is a grouped present/total tally produced by the ledger.
type AttendanceCount struct {
	Key     string `db:"group_key"`
	Present int    `db:"present"`
	Total   int    `db:"total"`
}

// Snapshot converts the tally into a snapshot.
func (c AttendanceCount) Snapshot() AttendanceSnapshot {
	return NewAttendanceSnapshot(c.Present, c.Total)
}

// StatisticsGroup names the dimension used to bucket records.
type StatisticsGroup string

const (
	StatisticsGroupBranch StatisticsGroup = "branch"
	StatisticsGroupClass  StatisticsGroup = "class"
)

// ResetConfirmation is handed out before a registry-wide reset and must be echoed back to commit it.
type ResetConfirmation struct {
	Token       string    `json:"confirmation_token"`
	RecordCount int       `json:"record_count"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ResetResult reports how many records a reset removed.
type ResetResult struct {
	StudentID string `json:"student_id,omitempty"`
	Removed   int    `json:"removed"`
}
