package roster

import (
	"time"

	"github.com/clinicware/attend-platform/internal/appointments"
	"github.com/clinicware/attend-platform/internal/directory"
)

// Candidate is a computed, non-persisted view of an appointment annotated
// with its reminder classification and subscription status.
type Candidate struct {
	Appointment appointments.Appointment `json:"appointment"`
	HoursUntil  float64                  `json:"hours_until"`
	// Slot is the index into Settings.Offsets, or SlotNone / SlotPassed.
	Slot       int    `json:"slot"`
	SlotOffset int    `json:"slot_offset,omitempty"`
	Message    string `json:"message,omitempty"`
	Subscribed bool   `json:"subscribed"`
	HasToken   bool   `json:"has_token"`
}

// Due reports whether the candidate matched a reminder slot this evaluation.
func (c *Candidate) Due() bool {
	return c.Slot >= 0
}

// Classify annotates an appointment with its reminder window, rendered
// message and directory status as of "now". Window matching is recomputed on
// every call; nothing here is cached across pipeline runs.
func Classify(a appointments.Appointment, settings *Settings, snap *directory.Snapshot, now time.Time, loc *time.Location) Candidate {
	c := Candidate{Appointment: a, Slot: SlotNone}

	if starts, err := a.StartsAt(loc); err == nil {
		c.HoursUntil = starts.Sub(now).Hours()
		c.Slot = MatchSlot(c.HoursUntil, settings.Offsets)
	}
	if c.Slot >= 0 {
		c.SlotOffset = settings.Offsets[c.Slot]
		c.Message = Render(settings.TemplateFor(c.SlotOffset), Fields{
			Name:         a.PatientName,
			Date:         a.ISODate,
			Time:         a.Time,
			Professional: a.Professional,
			Service:      a.Service,
			Location:     a.Location,
		})
	}

	if snap != nil {
		if sub, ok := snap.Subscriber(a.Phone); ok {
			c.Subscribed = sub.Active
			c.HasToken = sub.PushToken != ""
		}
	}
	return c
}

// ClassifyAll maps Classify over a set of appointments.
func ClassifyAll(list []appointments.Appointment, settings *Settings, snap *directory.Snapshot, now time.Time, loc *time.Location) []Candidate {
	out := make([]Candidate, 0, len(list))
	for _, a := range list {
		out = append(out, Classify(a, settings, snap, now, loc))
	}
	return out
}
