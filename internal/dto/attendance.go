package dto

import "github.com/noah-isme/college-portal-api/internal/models"

// IndexedAttendanceRecord pairs a record with its position in the student's date-ordered ledger,
// the position accepted by the index-addressed status endpoint.
type IndexedAttendanceRecord struct {
	Index int `json:"index"`
	models.AttendanceRecord
}

// AttendanceRecordsResponse lists one student's ledger.
type AttendanceRecordsResponse struct {
	StudentID string                    `json:"student_id"`
	Count     int                       `json:"count"`
	Records   []IndexedAttendanceRecord `json:"records"`
}

// NewAttendanceRecordsResponse numbers records in ledger order.
func NewAttendanceRecordsResponse(studentID string, records []models.AttendanceRecord) AttendanceRecordsResponse {
	indexed := make([]IndexedAttendanceRecord, len(records))
	for i, record := range records {
		indexed[i] = IndexedAttendanceRecord{Index: i, AttendanceRecord: record}
	}
	return AttendanceRecordsResponse{StudentID: studentID, Count: len(records), Records: indexed}
}
