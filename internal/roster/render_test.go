package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	msg := Render("Ola {name}, sessao {date} as {time} com {professional}.", Fields{
		Name:         "Ana",
		Date:         "2026-02-07",
		Time:         "14:00",
		Professional: "Dr. Paulo",
	})
	assert.Equal(t, "Ola Ana, sessao 2026-02-07 as 14:00 com Dr. Paulo.", msg)
}

func TestRenderDropsUnresolvedPlaceholders(t *testing.T) {
	msg := Render("Oi {name}, local {location} servico {service} extra {whatever}", Fields{Name: "Ana"})
	assert.NotContains(t, msg, "{")
	assert.NotContains(t, msg, "}")
	assert.Contains(t, msg, "Ana")
}

func TestSettingsTemplateFor(t *testing.T) {
	s := (&Settings{
		Offsets:       []int{12, 48, 24},
		SlotTemplates: map[int]string{24: "t24"},
	}).normalized()

	assert.Equal(t, []int{48, 24, 12}, s.Offsets, "offsets sort descending")
	assert.Equal(t, "t24", s.TemplateFor(24))
	assert.Equal(t, s.DefaultTemplate, s.TemplateFor(48))
}
