package dto

import "github.com/noah-isme/college-portal-api/internal/models"

// GroupedStatisticsResponse carries one snapshot per group key.
type GroupedStatisticsResponse struct {
	Group     models.StatisticsGroup               `json:"group"`
	Snapshots map[string]models.AttendanceSnapshot `json:"snapshots"`
}

// StudentStatisticsResponse carries one student's snapshot.
type StudentStatisticsResponse struct {
	StudentID string                    `json:"student_id"`
	Snapshot  models.AttendanceSnapshot `json:"snapshot"`
}
