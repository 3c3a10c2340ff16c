package storage

import "time"

// WipeOperation is the compliance archive row for one finished run.
type WipeOperation struct {
	ID                 string     `json:"id" db:"id"`
	RecordID           string     `json:"record_id" db:"record_id"`
	DevicePath         string     `json:"device_path" db:"device_path"`
	Model              string     `json:"model" db:"model"`
	Serial             string     `json:"serial" db:"serial"`
	Method             string     `json:"method" db:"method"`
	Phase              string     `json:"phase" db:"phase"`
	Success            bool       `json:"success" db:"success"`
	IOErrors           int        `json:"io_errors" db:"io_errors"`
	Warnings           int        `json:"warnings" db:"warnings"`
	VerificationStatus string     `json:"verification_status" db:"verification_status"`
	Duration           string     `json:"duration" db:"duration"`
	Technician         string     `json:"technician" db:"technician"`
	Hostname           string     `json:"hostname" db:"hostname"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// WipeFilter provides criteria for querying archived operations.
type WipeFilter struct {
	Serial string
	Method string
	Limit  int
	Offset int
}

// limit clamps the requested page size to a sane range.
func (f WipeFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return 100
	}
	return f.Limit
}
