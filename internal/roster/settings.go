// Package roster turns raw schedule uploads into reminder candidates: it
// parses the tabular input, classifies each row into a reminder window and
// renders the outbound message for the matched slot.
package roster

import (
	"sort"
)

// DefaultOffsets are the reminder lead times, in hours before the session,
// used when the clinic has not configured its own.
var DefaultOffsets = []int{48, 24, 12}

// DefaultTemplate is the fallback message when a slot has no template.
const DefaultTemplate = "Ola {name}, lembrete da sua sessao em {date} as {time} com {professional}."

// Settings carries the clinic's reminder configuration for one pipeline run.
// It is loaded once at the start of a run and never mutated mid-run.
type Settings struct {
	// Offsets in hours, kept sorted descending (longest lead time first).
	Offsets []int `json:"offsets"`
	// SlotTemplates maps an offset (hours) to its message template.
	SlotTemplates map[int]string `json:"slot_templates"`
	// Follow-up templates for the attendance pipeline.
	PresentTemplate string `json:"present_template"`
	AbsentTemplate  string `json:"absent_template"`
	// DefaultTemplate backs any slot without a template of its own.
	DefaultTemplate string `json:"default_template"`
	ContractVersion int    `json:"contract_version"`
}

// DefaultSettings returns a usable configuration when none is persisted.
func DefaultSettings() *Settings {
	return (&Settings{}).normalized()
}

// normalized sorts offsets descending and fills fallback templates.
func (s *Settings) normalized() *Settings {
	if len(s.Offsets) == 0 {
		s.Offsets = append([]int(nil), DefaultOffsets...)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(s.Offsets)))
	if s.SlotTemplates == nil {
		s.SlotTemplates = map[int]string{}
	}
	if s.DefaultTemplate == "" {
		s.DefaultTemplate = DefaultTemplate
	}
	if s.PresentTemplate == "" {
		s.PresentTemplate = "Oi {name}, obrigado por comparecer a sua sessao de {date}!"
	}
	if s.AbsentTemplate == "" {
		s.AbsentTemplate = "Oi {name}, sentimos sua falta na sessao de {date}. Vamos remarcar?"
	}
	return s
}

// TemplateFor returns the template for an offset, falling back to the default.
func (s *Settings) TemplateFor(offset int) string {
	if t, ok := s.SlotTemplates[offset]; ok && t != "" {
		return t
	}
	return s.DefaultTemplate
}
