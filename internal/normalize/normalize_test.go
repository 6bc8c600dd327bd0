package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalPhone(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain mobile", "11999990000", "11999990000"},
		{"formatted", "(11) 99999-0000", "11999990000"},
		{"with country code", "5511999990000", "11999990000"},
		{"e164", "+5511999990000", "11999990000"},
		{"leading zero trunk", "011999990000", "11999990000"},
		{"landline", "1133334444", "1133334444"},
		{"empty", "", ""},
		{"letters only", "call me", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalPhone(tt.raw))
		})
	}
}

func TestCanonicalPhoneRoundTrip(t *testing.T) {
	for _, raw := range []string{"11999990000", "1133334444", "+5511988887777"} {
		canonical := CanonicalPhone(raw)
		assert.Equal(t, canonical, CanonicalPhone(ToE164(canonical)), "input %q", raw)
	}
}

func TestToE164(t *testing.T) {
	assert.Equal(t, "+5511999990000", ToE164("11999990000"))
	assert.Equal(t, "+5511999990000", ToE164("5511999990000"))
	assert.Equal(t, "", ToE164(""))
}

func TestDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2026-02-07", "2026-02-07"},
		{"07/02/2026", "2026-02-07"},
		{"7/2/2026", "2026-02-07"},
		{"07-02-2026", "2026-02-07"},
		{"2026/02/07", "2026-02-07"},
		{"02-07", ""},
		{"soon", ""},
		{"", ""},
		{"99/99/2026", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Date(tt.raw), "input %q", tt.raw)
	}
}

func TestTime(t *testing.T) {
	assert.Equal(t, "14:00", Time("14:00"))
	assert.Equal(t, "09:05", Time("9:5"))
	assert.Equal(t, "14:00", Time("14:00:30"))
	assert.Equal(t, "", Time("25:00"))
	assert.Equal(t, "", Time("noon"))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "dr-paulo", Slug("Dr. Paulo"))
	assert.Equal(t, "maria-jose", Slug("  Maria José "))
	assert.Equal(t, "ana", Slug("Ana!!!"))
	assert.Equal(t, "", Slug(""))
}

func TestAppointmentIDDeterministic(t *testing.T) {
	a := AppointmentID("11999990000", "2026-02-07", "14:00", "Dr. Paulo")
	b := AppointmentID("11999990000", "2026-02-07", "14:00", "Dr. Paulo")
	assert.Equal(t, a, b)
	assert.Equal(t, "11999990000_2026-02-07_1400_dr-paulo", a)

	c := AppointmentID("11999990000", "2026-02-07", "15:00", "Dr. Paulo")
	assert.NotEqual(t, a, c)
}
