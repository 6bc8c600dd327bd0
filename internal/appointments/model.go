package appointments

import "time"

// Status tracks the lifecycle of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusDone      Status = "done"
	StatusNoShow    Status = "no_show"
)

// CancelReasonRemoved marks appointments cancelled because a newer upload no
// longer contained them.
const CancelReasonRemoved = "removed_from_upload"

// Appointment is one scheduled session. Its ID is the deterministic key
// derived from (phone, date, time, professional), so re-importing the same
// row merges instead of duplicating.
type Appointment struct {
	ID           string    `json:"id"`
	PatientName  string    `json:"patient_name"`
	Phone        string    `json:"phone"`
	PhoneE164    string    `json:"phone_e164"`
	ISODate      string    `json:"iso_date"`
	Time         string    `json:"time"`
	Professional string    `json:"professional"`
	ExternalID   string    `json:"external_id,omitempty"`
	Service      string    `json:"service,omitempty"`
	Location     string    `json:"location,omitempty"`
	Status       Status    `json:"status"`
	CancelReason string    `json:"cancel_reason,omitempty"`
	UploadID     string    `json:"upload_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StartsAt combines the ISO date and HH:MM time in the given location.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation("2006-01-02 15:04", a.ISODate+" "+a.Time, loc)
}
