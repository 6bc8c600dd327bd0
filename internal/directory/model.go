// Package directory resolves canonical phones to patient and push-subscriber
// records. Lookups are batched into fixed-size IN queries instead of one
// round trip per patient.
package directory

import "time"

// Subscriber is one push-notification registration keyed by canonical phone.
type Subscriber struct {
	Phone     string    `json:"phone"`
	Active    bool      `json:"active"`
	PushToken string    `json:"push_token,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patient is the clinic's patient master record.
type Patient struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Active bool   `json:"active"`
}

// Snapshot is the result of a batched directory resolution for a phone set.
type Snapshot struct {
	subscribers map[string]Subscriber
	patients    map[string]Patient
}

// NewSnapshot builds a snapshot from explicit records.
func NewSnapshot(subs []Subscriber, patients []Patient) *Snapshot {
	snap := &Snapshot{
		subscribers: make(map[string]Subscriber, len(subs)),
		patients:    make(map[string]Patient, len(patients)),
	}
	for _, s := range subs {
		snap.subscribers[s.Phone] = s
	}
	for _, p := range patients {
		snap.patients[p.Phone] = p
	}
	return snap
}

// Subscriber returns the subscriber for a canonical phone, if registered.
func (s *Snapshot) Subscriber(phone string) (Subscriber, bool) {
	sub, ok := s.subscribers[phone]
	return sub, ok
}

// Patient returns the patient for a canonical phone, if known.
func (s *Snapshot) Patient(phone string) (Patient, bool) {
	p, ok := s.patients[phone]
	return p, ok
}

// HasToken reports whether the phone maps to an active push token.
func (s *Snapshot) HasToken(phone string) bool {
	sub, ok := s.subscribers[phone]
	return ok && sub.PushToken != ""
}
