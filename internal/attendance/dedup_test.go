package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(patientID, isoDate, tm, professional string, status Status, updatedAt int64) Entry {
	return Entry{
		PatientID:    patientID,
		Phone:        "11999990000",
		ISODate:      isoDate,
		Time:         tm,
		Professional: professional,
		Status:       status,
		UpdatedAt:    updatedAt,
	}
}

func TestDedupeNewestWins(t *testing.T) {
	rows := []Entry{
		entry("p1", "2026-02-07", "14:00", "Paulo", StatusAbsent, 100),
		entry("p1", "2026-02-07", "14:00", "Paulo", StatusPresent, 200),
	}

	out := Dedupe(rows)
	require.Len(t, out, 1)
	assert.Equal(t, StatusPresent, out[0].Status)
	assert.Equal(t, int64(200), out[0].UpdatedAt)

	present, absent := SplitByStatus(out)
	assert.Len(t, present, 1)
	assert.Empty(t, absent)
}

func TestDedupeNewestWinsRegardlessOfOrder(t *testing.T) {
	rows := []Entry{
		entry("p1", "2026-02-07", "14:00", "Paulo", StatusPresent, 200),
		entry("p1", "2026-02-07", "14:00", "Paulo", StatusAbsent, 100),
	}

	out := Dedupe(rows)
	require.Len(t, out, 1)
	assert.Equal(t, StatusPresent, out[0].Status)
}

func TestDedupeTieKeepsRightmost(t *testing.T) {
	rows := []Entry{
		entry("p1", "2026-02-07", "14:00", "Paulo", StatusAbsent, 100),
		entry("p1", "2026-02-07", "14:00", "Paulo", StatusPresent, 100),
	}

	out := Dedupe(rows)
	require.Len(t, out, 1)
	assert.Equal(t, StatusPresent, out[0].Status, "equal timestamps resolve to the later row")
}

func TestDedupeMissingTimestampLoses(t *testing.T) {
	rows := []Entry{
		entry("p1", "2026-02-07", "14:00", "Paulo", StatusPresent, 150),
		entry("p1", "2026-02-07", "14:00", "Paulo", StatusAbsent, 0),
	}

	out := Dedupe(rows)
	require.Len(t, out, 1)
	assert.Equal(t, StatusPresent, out[0].Status)
}

func TestDedupePreservesFirstSeenKeyOrder(t *testing.T) {
	rows := []Entry{
		entry("p2", "2026-02-07", "10:00", "Paulo", StatusPresent, 100),
		entry("p1", "2026-02-07", "14:00", "Paulo", StatusAbsent, 100),
		entry("p2", "2026-02-07", "10:00", "Paulo", StatusAbsent, 300),
		entry("p3", "2026-02-08", "09:00", "Ana", StatusPresent, 100),
	}

	out := Dedupe(rows)
	require.Len(t, out, 3)
	assert.Equal(t, "p2", out[0].PatientID)
	assert.Equal(t, StatusAbsent, out[0].Status)
	assert.Equal(t, "p1", out[1].PatientID)
	assert.Equal(t, "p3", out[2].PatientID)
}

func TestDedupeDistinctKeysSurvive(t *testing.T) {
	// Same patient, same day, different time slots are separate events.
	rows := []Entry{
		entry("p1", "2026-02-07", "14:00", "Paulo", StatusPresent, 100),
		entry("p1", "2026-02-07", "16:00", "Paulo", StatusAbsent, 100),
	}

	out := Dedupe(rows)
	assert.Len(t, out, 2)
}

func TestEntryValid(t *testing.T) {
	tests := []struct {
		name string
		e    Entry
		want bool
	}{
		{"complete", entry("p1", "2026-02-07", "14:00", "Paulo", StatusPresent, 1), true},
		{"no patient", entry("", "2026-02-07", "14:00", "Paulo", StatusPresent, 1), false},
		{"no date", entry("p1", "", "14:00", "Paulo", StatusAbsent, 1), false},
		{"bad status", entry("p1", "2026-02-07", "14:00", "Paulo", Status("maybe"), 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.e.Valid())
		})
	}
}
