// Package attendance ingests presence/absence records and derives follow-up
// message candidates. Repeated or re-uploaded rows sharing a dedup key
// collapse to a single newest-wins record before anything is computed.
package attendance

import "strings"

// Status of one attendance record.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// Entry is one presence/absence record.
type Entry struct {
	PatientID    string `json:"patient_id"`
	Phone        string `json:"phone"`
	ISODate      string `json:"iso_date"`
	Time         string `json:"time"`
	Professional string `json:"professional"`
	Service      string `json:"service,omitempty"`
	Location     string `json:"location,omitempty"`
	Status       Status `json:"status"`
	// UpdatedAt is epoch milliseconds; 0 when the source row carried none.
	UpdatedAt int64 `json:"updated_at"`
}

// Key is the composite identity of "the same underlying event" across
// repeated imports.
func (e *Entry) Key() string {
	return strings.Join([]string{e.PatientID, e.ISODate, e.Time, e.Professional}, "|")
}

// Valid reports whether the entry can participate in dedup and follow-ups.
func (e *Entry) Valid() bool {
	return e.PatientID != "" && e.ISODate != "" &&
		(e.Status == StatusPresent || e.Status == StatusAbsent)
}
