package roster

import (
	"strings"
	"time"

	"github.com/clinicware/attend-platform/internal/appointments"
	"github.com/clinicware/attend-platform/internal/directory"
	"github.com/clinicware/attend-platform/internal/normalize"
)

// ParseResult is the outcome of one schedule parse.
type ParseResult struct {
	Candidates []Candidate `json:"candidates"`
	Skipped    int         `json:"skipped"`
}

// ParseInput bundles everything a parse run needs. The settings and the
// directory snapshot are loaded once by the caller; the clock is injected so
// window classification is deterministic under test.
type ParseInput struct {
	Raw       string
	Settings  *Settings
	Directory *directory.Snapshot
	Now       time.Time
	Location  *time.Location
	UploadID  string
	// CountryCode prefixes E.164 numbers and is stripped from raw phones.
	// Empty falls back to normalize.DefaultCountryCode.
	CountryCode string
}

// Parse turns raw tabular text into reminder candidates. Rows are comma or
// semicolon separated with columns name, phone, date, time, and optionally
// professional, service, location and external ID. Rows missing a name or a
// usable phone are skipped, never fatal.
func Parse(in ParseInput) ParseResult {
	var result ParseResult
	settings := in.Settings
	if settings == nil {
		settings = DefaultSettings()
	}
	country := in.CountryCode
	if country == "" {
		country = normalize.DefaultCountryCode
	}

	for _, line := range strings.Split(in.Raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isHeader(line) {
			continue
		}
		cols := splitRow(line)
		if len(cols) < 4 {
			result.Skipped++
			continue
		}

		name := strings.TrimSpace(cols[0])
		phone := normalize.CanonicalPhoneWithCountry(cols[1], country)
		isoDate := normalize.Date(cols[2])
		hhmm := normalize.Time(cols[3])
		if name == "" || phone == "" || isoDate == "" || hhmm == "" {
			result.Skipped++
			continue
		}

		a := appointments.Appointment{
			ID:           normalize.AppointmentID(phone, isoDate, hhmm, col(cols, 4)),
			PatientName:  name,
			Phone:        phone,
			PhoneE164:    normalize.ToE164WithCountry(phone, country),
			ISODate:      isoDate,
			Time:         hhmm,
			Professional: col(cols, 4),
			Service:      col(cols, 5),
			Location:     col(cols, 6),
			ExternalID:   col(cols, 7),
			Status:       appointments.StatusScheduled,
			UploadID:     in.UploadID,
		}
		result.Candidates = append(result.Candidates, Classify(a, settings, in.Directory, in.Now, in.Location))
	}
	return result
}

func splitRow(line string) []string {
	sep := ","
	if strings.Contains(line, ";") {
		sep = ";"
	}
	cols := strings.Split(line, sep)
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

func col(cols []string, i int) string {
	if i < len(cols) {
		return cols[i]
	}
	return ""
}

// isHeader matches a full header signature: a name word in the first column
// and a phone word in the second. A patient named "Paciente Silva" followed
// by a real phone number is data, not a header.
func isHeader(line string) bool {
	cols := splitRow(line)
	if len(cols) < 2 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(cols[0]))
	second := strings.ToLower(strings.TrimSpace(cols[1]))

	nameWord := strings.HasPrefix(first, "nome") || strings.HasPrefix(first, "name") ||
		strings.HasPrefix(first, "paciente") || strings.HasPrefix(first, "patient")
	phoneWord := strings.HasPrefix(second, "telefone") || strings.HasPrefix(second, "phone") ||
		strings.HasPrefix(second, "celular") || strings.HasPrefix(second, "fone") ||
		strings.HasPrefix(second, "contato")
	return nameWord && phoneWord
}
