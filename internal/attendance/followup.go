package attendance

import (
	"context"

	"github.com/clinicware/attend-platform/internal/directory"
	"github.com/clinicware/attend-platform/internal/history"
	"github.com/clinicware/attend-platform/internal/push"
	"github.com/clinicware/attend-platform/internal/roster"
	"github.com/clinicware/attend-platform/pkg/logging"
)

// SampleCap bounds the rendered previews returned for a dry run.
const SampleCap = 8

// maxErrorSamples bounds the error list carried back to the caller.
const maxErrorSamples = 10

// Follow-up blocked reasons.
const (
	BlockInactivePatient    = "inactive_patient"
	BlockInactiveSubscriber = "inactive_subscriber"
	BlockMissingToken       = "missing_token"
	BlockMissingPhone       = "missing_phone"
)

type entryLister interface {
	ListRange(ctx context.Context, fromDate, toDate string) ([]Entry, error)
}

type directoryResolver interface {
	Resolve(ctx context.Context, phones []string) (*directory.Snapshot, error)
}

type settingsLoader interface {
	Get(ctx context.Context) (*roster.Settings, error)
}

type historyAppender interface {
	Append(ctx context.Context, e *history.Entry) error
}

// Candidate is one follow-up message candidate after dedup and resolution.
type Candidate struct {
	Entry       Entry  `json:"entry"`
	PatientName string `json:"patient_name"`
	Token       string `json:"-"`
	Message     string `json:"message,omitempty"`
	Blocked     string `json:"blocked,omitempty"`
}

// Result is the structured outcome of one follow-up run.
type Result struct {
	Range      [2]string      `json:"range"`
	DryRun     bool           `json:"dry_run"`
	Rows       int            `json:"rows"`
	Deduped    int            `json:"deduped"`
	Present    int            `json:"present"`
	Absent     int            `json:"absent"`
	Sendable   int            `json:"sendable"`
	Blocked    int            `json:"blocked"`
	Sent       int            `json:"sent"`
	Failed     int            `json:"failed"`
	Samples    []string       `json:"samples,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
	BlockedWhy map[string]int `json:"blocked_why,omitempty"`
}

// Selector derives follow-up candidates from the attendance log and, outside
// dry-run mode, sends them through the push deliverer.
type Selector struct {
	entries   entryLister
	directory directoryResolver
	settings  settingsLoader
	delivery  push.Deliverer
	history   historyAppender
	logger    *logging.Logger
}

// NewSelector creates a follow-up selector.
func NewSelector(entries entryLister, dir directoryResolver, settings settingsLoader, delivery push.Deliverer, hist historyAppender, logger *logging.Logger) *Selector {
	if logger == nil {
		logger = logging.Default()
	}
	return &Selector{
		entries:   entries,
		directory: dir,
		settings:  settings,
		delivery:  delivery,
		history:   hist,
		logger:    logger,
	}
}

// Run selects follow-up candidates for a date range. In dry-run mode nothing
// is sent; up to SampleCap rendered messages come back for display.
func (s *Selector) Run(ctx context.Context, fromDate, toDate string, dryRun bool) (*Result, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.entries.ListRange(ctx, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Range:      [2]string{fromDate, toDate},
		DryRun:     dryRun,
		Rows:       len(rows),
		BlockedWhy: map[string]int{},
	}

	deduped := Dedupe(rows)
	result.Deduped = len(deduped)
	present, absent := SplitByStatus(deduped)
	result.Present = len(present)
	result.Absent = len(absent)

	phones := make([]string, 0, len(deduped))
	for _, e := range deduped {
		phones = append(phones, e.Phone)
	}
	snap, err := s.directory.Resolve(ctx, phones)
	if err != nil {
		return nil, err
	}

	candidates := classify(deduped, snap, settings)
	for _, c := range candidates {
		if c.Blocked != "" {
			result.Blocked++
			result.BlockedWhy[c.Blocked]++
			continue
		}
		result.Sendable++
		if len(result.Samples) < SampleCap {
			result.Samples = append(result.Samples, c.Message)
		}
		if dryRun {
			continue
		}
		s.sendOne(ctx, c, result)
	}

	s.appendHistory(ctx, result)
	s.logger.Info("followup run complete",
		"from", fromDate, "to", toDate, "dry_run", dryRun,
		"sendable", result.Sendable, "blocked", result.Blocked,
		"sent", result.Sent, "failed", result.Failed,
	)
	return result, nil
}

func classify(rows []Entry, snap *directory.Snapshot, settings *roster.Settings) []Candidate {
	out := make([]Candidate, 0, len(rows))
	for _, e := range rows {
		c := Candidate{Entry: e}
		patient, hasPatient := snap.Patient(e.Phone)
		if hasPatient {
			c.PatientName = patient.Name
		}

		template := settings.PresentTemplate
		if e.Status == StatusAbsent {
			template = settings.AbsentTemplate
		}
		c.Message = roster.Render(template, roster.Fields{
			Name:         c.PatientName,
			Date:         e.ISODate,
			Time:         e.Time,
			Professional: e.Professional,
			Service:      e.Service,
			Location:     e.Location,
		})

		sub, hasSub := snap.Subscriber(e.Phone)
		switch {
		case e.Phone == "":
			c.Blocked = BlockMissingPhone
		case hasPatient && !patient.Active:
			c.Blocked = BlockInactivePatient
		case hasSub && !sub.Active:
			c.Blocked = BlockInactiveSubscriber
		case !hasSub || sub.PushToken == "":
			c.Blocked = BlockMissingToken
		default:
			c.Token = sub.PushToken
		}
		out = append(out, c)
	}
	return out
}

// sendOne delivers one follow-up, catching the failure so the batch continues.
func (s *Selector) sendOne(ctx context.Context, c Candidate, result *Result) {
	if s.delivery == nil {
		return
	}
	title := "Acompanhamento"
	receipt, err := s.delivery.SendOne(ctx, push.Message{
		Token: c.Token,
		Title: title,
		Body:  c.Message,
		Data: map[string]string{
			"patient_id": c.Entry.PatientID,
			"date":       c.Entry.ISODate,
			"status":     string(c.Entry.Status),
		},
	})
	if err != nil {
		receipt = push.Receipt{Error: err.Error()}
	}
	if receipt.OK {
		result.Sent++
		return
	}
	result.Failed++
	if len(result.Errors) < maxErrorSamples {
		result.Errors = append(result.Errors, c.Entry.Phone+": "+receipt.Error)
	}
}

func (s *Selector) appendHistory(ctx context.Context, result *Result) {
	if s.history == nil {
		return
	}
	entry := &history.Entry{
		Kind: history.KindFollowupRun,
		Counts: map[string]int{
			"rows":     result.Rows,
			"deduped":  result.Deduped,
			"present":  result.Present,
			"absent":   result.Absent,
			"sendable": result.Sendable,
			"blocked":  result.Blocked,
			"sent":     result.Sent,
			"failed":   result.Failed,
		},
		Detail: map[string]any{
			"from":    result.Range[0],
			"to":      result.Range[1],
			"dry_run": result.DryRun,
		},
	}
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Error("followup history append failed", "error", err)
	}
}
