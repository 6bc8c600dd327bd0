// Package dispatch builds dry-run previews of reminder sends and fans out
// the actual push batch. A preview never mutates anything; a dispatch only
// ever runs against a preview generated for the exact same filters.
package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/clinicware/attend-platform/internal/appointments"
	"github.com/clinicware/attend-platform/internal/directory"
	"github.com/clinicware/attend-platform/internal/roster"
	"github.com/clinicware/attend-platform/pkg/logging"
)

// RollupCap bounds the per-bucket patient rollups carried in a preview.
const RollupCap = 25

// Filter selects the candidates a preview covers.
type Filter struct {
	FromDate     string `json:"from_date"`
	ToDate       string `json:"to_date"`
	Professional string `json:"professional,omitempty"`
}

// Fingerprint is the cache key of the filter parameters. Two previews are
// interchangeable exactly when their fingerprints match, which is how stale
// previews are detected.
func (f Filter) Fingerprint() string {
	h := sha256.Sum256([]byte(strings.Join([]string{f.FromDate, f.ToDate, f.Professional}, "|")))
	return hex.EncodeToString(h[:8])
}

// Blocked bucket reasons.
const (
	ReasonMissingPhone = "missing_phone"
	ReasonInactive     = "inactive"
	ReasonNoToken      = "no_token"
)

// Item is one will-send entry carrying everything the dispatcher needs.
type Item struct {
	AppointmentID string `json:"appointment_id"`
	Phone         string `json:"phone"`
	Name          string `json:"name"`
	Token         string `json:"token,omitempty"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Slot          int    `json:"slot"`
	SlotOffset    int    `json:"slot_offset"`
	Service       string `json:"service,omitempty"`
	Location      string `json:"location,omitempty"`
	Message       string `json:"message"`
}

// Rollup is one capped per-patient preview line.
type Rollup struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

// Counts aggregates the preview partition.
type Counts struct {
	Candidates   int `json:"candidates"`
	WillSend     int `json:"will_send"`
	NoToken      int `json:"blocked_no_token"`
	Inactive     int `json:"blocked_inactive"`
	MissingPhone int `json:"blocked_missing_phone"`
	NotDue       int `json:"not_due"`
}

// Preview is the ephemeral dispatch dry-run snapshot.
type Preview struct {
	Filter      Filter    `json:"filter"`
	Fingerprint string    `json:"fingerprint"`
	GeneratedAt time.Time `json:"generated_at"`
	Counts      Counts    `json:"counts"`
	WillSend    []Item    `json:"will_send"`
	// Capped rollups for operator display.
	WillSendSample     []Rollup `json:"will_send_sample"`
	NoTokenSample      []Rollup `json:"no_token_sample"`
	InactiveSample     []Rollup `json:"inactive_sample"`
	MissingPhoneSample []Rollup `json:"missing_phone_sample"`
}

type appointmentLister interface {
	ListScheduledRange(ctx context.Context, fromDate, toDate, professional string) ([]appointments.Appointment, error)
}

type directoryResolver interface {
	Resolve(ctx context.Context, phones []string) (*directory.Snapshot, error)
}

type settingsLoader interface {
	Get(ctx context.Context) (*roster.Settings, error)
}

// Builder produces previews from persisted appointments.
type Builder struct {
	appointments appointmentLister
	directory    directoryResolver
	settings     settingsLoader
	cache        *Cache
	logger       *logging.Logger
	now          func() time.Time
	location     *time.Location
}

// NewBuilder creates a preview builder.
func NewBuilder(apts appointmentLister, dir directoryResolver, settings settingsLoader, cache *Cache, logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Builder{
		appointments: apts,
		directory:    dir,
		settings:     settings,
		cache:        cache,
		logger:       logger,
		now:          time.Now,
		location:     time.Local,
	}
}

// WithClock injects the time source (tests).
func (b *Builder) WithClock(now func() time.Time) *Builder {
	if now != nil {
		b.now = now
	}
	return b
}

// WithLocation sets the clinic timezone used for session start times.
func (b *Builder) WithLocation(loc *time.Location) *Builder {
	if loc != nil {
		b.location = loc
	}
	return b
}

// Build computes the preview for a filter and stores it under the filter's
// fingerprint so a later dispatch can verify freshness. Reminder windows are
// re-evaluated here on every call; nothing is reused across runs.
func (b *Builder) Build(ctx context.Context, filter Filter) (*Preview, error) {
	settings, err := b.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	list, err := b.appointments.ListScheduledRange(ctx, filter.FromDate, filter.ToDate, filter.Professional)
	if err != nil {
		return nil, err
	}

	phones := make([]string, 0, len(list))
	for _, a := range list {
		phones = append(phones, a.Phone)
	}
	snap, err := b.directory.Resolve(ctx, phones)
	if err != nil {
		return nil, err
	}

	candidates := roster.ClassifyAll(list, settings, snap, b.now(), b.location)
	preview := Partition(candidates, snap, filter)
	preview.GeneratedAt = b.now()

	if b.cache != nil {
		if err := b.cache.Put(ctx, preview); err != nil {
			b.logger.Error("preview cache write failed", "error", err)
		}
	}
	return preview, nil
}

// Partition classifies due candidates into the four disjoint preview buckets.
// First match wins: missing phone, then inactive subscriber, then missing
// token; everything else will send. The buckets always sum to the due
// candidate count.
func Partition(candidates []roster.Candidate, snap *directory.Snapshot, filter Filter) *Preview {
	p := &Preview{Filter: filter, Fingerprint: filter.Fingerprint()}

	for _, c := range candidates {
		if !c.Due() {
			p.Counts.NotDue++
			continue
		}
		p.Counts.Candidates++
		a := c.Appointment
		roll := Rollup{Phone: a.Phone, Name: a.PatientName, Date: a.ISODate, Time: a.Time}

		sub, registered := lookupSubscriber(snap, a.Phone)
		switch {
		case a.Phone == "":
			p.Counts.MissingPhone++
			p.MissingPhoneSample = appendCapped(p.MissingPhoneSample, roll)
		case registered && !sub.Active:
			// Inactive means the subscriber opted out; an unregistered
			// phone is only missing a device token.
			p.Counts.Inactive++
			p.InactiveSample = appendCapped(p.InactiveSample, roll)
		case !registered || sub.PushToken == "":
			p.Counts.NoToken++
			p.NoTokenSample = appendCapped(p.NoTokenSample, roll)
		default:
			p.Counts.WillSend++
			p.WillSendSample = appendCapped(p.WillSendSample, roll)
			item := Item{
				AppointmentID: a.ID,
				Phone:         a.Phone,
				Name:          a.PatientName,
				Date:          a.ISODate,
				Time:          a.Time,
				Slot:          c.Slot,
				SlotOffset:    c.SlotOffset,
				Service:       a.Service,
				Location:      a.Location,
				Message:       c.Message,
			}
			item.Token = sub.PushToken
			p.WillSend = append(p.WillSend, item)
		}
	}
	return p
}

func lookupSubscriber(snap *directory.Snapshot, phone string) (directory.Subscriber, bool) {
	if snap == nil {
		return directory.Subscriber{}, false
	}
	return snap.Subscriber(phone)
}

func appendCapped(list []Rollup, r Rollup) []Rollup {
	if len(list) >= RollupCap {
		return list
	}
	return append(list, r)
}
