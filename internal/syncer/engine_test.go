package syncer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicware/attend-platform/internal/appointments"
	"github.com/clinicware/attend-platform/internal/history"
	"github.com/clinicware/attend-platform/internal/normalize"
	"github.com/clinicware/attend-platform/internal/roster"
)

// fakeStore keeps appointments in memory with the store's soft-cancel semantics.
type fakeStore struct {
	mu       sync.Mutex
	byID     map[string]appointments.Appointment
	failIDs  map[string]bool
	listErr  error
	upserts  int
	cancels  int
	listCall int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: map[string]appointments.Appointment{}, failIDs: map[string]bool{}}
}

func (f *fakeStore) Upsert(_ context.Context, a *appointments.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[a.ID] {
		return errors.New("write refused")
	}
	f.upserts++
	stored := *a
	stored.CancelReason = ""
	stored.UpdatedAt = time.Now()
	f.byID[a.ID] = stored
	return nil
}

func (f *fakeStore) ListActiveByPhones(_ context.Context, phones []string, fromDate string) ([]appointments.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCall++
	if f.listErr != nil {
		return nil, f.listErr
	}
	inSet := map[string]bool{}
	for _, p := range phones {
		inSet[p] = true
	}
	var out []appointments.Appointment
	for _, a := range f.byID {
		if inSet[a.Phone] && a.ISODate >= fromDate &&
			a.Status != appointments.StatusCancelled && a.Status != appointments.StatusDone {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) Cancel(_ context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	a := f.byID[id]
	a.Status = appointments.StatusCancelled
	a.CancelReason = reason
	f.byID[id] = a
	return nil
}

type fakeHistory struct {
	entries []history.Entry
}

func (f *fakeHistory) Append(_ context.Context, e *history.Entry) error {
	f.entries = append(f.entries, *e)
	return nil
}

func candidate(name, phone, date, hhmm, professional, externalID string) roster.Candidate {
	return roster.Candidate{Appointment: appointments.Appointment{
		ID:           normalize.AppointmentID(phone, date, hhmm, professional),
		PatientName:  name,
		Phone:        phone,
		ISODate:      date,
		Time:         hhmm,
		Professional: professional,
		ExternalID:   externalID,
	}}
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 2, 6, 14, 5, 0, 0, time.UTC) }
}

func TestSyncIdempotent(t *testing.T) {
	store := newFakeStore()
	hist := &fakeHistory{}
	engine := NewEngine(store, hist, nil).WithClock(fixedClock())

	upload := []roster.Candidate{
		candidate("Ana", "11999990000", "2026-02-07", "14:00", "Dr. Paulo", ""),
		candidate("Bia", "11988887777", "2026-02-08", "10:00", "Dra. Rita", ""),
	}

	first, err := engine.Sync(context.Background(), upload, "up-1")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Upserted)
	assert.Equal(t, 0, first.Cancelled)

	snapshot := map[string]appointments.Appointment{}
	for id, a := range store.byID {
		a.UpdatedAt = time.Time{}
		snapshot[id] = a
	}

	second, err := engine.Sync(context.Background(), upload, "up-2")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Upserted)
	assert.Equal(t, 0, second.Cancelled, "identical re-upload must cancel nothing")

	require.Len(t, store.byID, 2, "no duplicates on re-import")
	for id, a := range store.byID {
		a.UpdatedAt = time.Time{}
		want := snapshot[id]
		want.UploadID = "up-2"
		assert.Equal(t, want, a)
	}
	assert.Len(t, hist.entries, 2)
	assert.Equal(t, history.KindScheduleSync, hist.entries[0].Kind)
}

func TestSyncConvergesOnRemovedRow(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, nil, nil).WithClock(fixedClock())

	upload1 := []roster.Candidate{
		candidate("Ana", "11999990000", "2026-02-07", "14:00", "Dr. Paulo", ""),
		candidate("Ana", "11999990000", "2026-02-09", "14:00", "Dr. Paulo", ""),
	}
	_, err := engine.Sync(context.Background(), upload1, "up-1")
	require.NoError(t, err)

	// Second upload drops the Feb 9 session.
	upload2 := upload1[:1]
	result, err := engine.Sync(context.Background(), upload2, "up-2")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cancelled)

	removedID := normalize.AppointmentID("11999990000", "2026-02-09", "14:00", "Dr. Paulo")
	removed := store.byID[removedID]
	assert.Equal(t, appointments.StatusCancelled, removed.Status)
	assert.Equal(t, appointments.CancelReasonRemoved, removed.CancelReason)
	// Original data preserved, not deleted.
	assert.Equal(t, "Ana", removed.PatientName)

	kept := store.byID[normalize.AppointmentID("11999990000", "2026-02-07", "14:00", "Dr. Paulo")]
	assert.Equal(t, appointments.StatusScheduled, kept.Status)
}

func TestSyncKeepsRowsReferencedByExternalID(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, nil, nil).WithClock(fixedClock())

	_, err := engine.Sync(context.Background(), []roster.Candidate{
		candidate("Ana", "11999990000", "2026-02-07", "14:00", "Dr. Paulo", "EXT1"),
	}, "up-1")
	require.NoError(t, err)

	// The second upload moves the session time, so the deterministic ID
	// changes, but the external ID still references the same event.
	result, err := engine.Sync(context.Background(), []roster.Candidate{
		candidate("Ana", "11999990000", "2026-02-07", "15:00", "Dr. Paulo", "EXT1"),
	}, "up-2")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Cancelled, "external-ID match must protect the old record")
}

func TestSyncFailedChunkSkipsCancelPhase(t *testing.T) {
	store := newFakeStore()
	badID := normalize.AppointmentID("11999990000", "2026-02-07", "14:00", "Dr. Paulo")
	store.failIDs[badID] = true

	// Pre-existing future appointment that would be diffed away if the
	// cancel phase ran despite the failed write.
	preexistingID := normalize.AppointmentID("11999990000", "2026-02-10", "09:00", "Dr. Paulo")
	store.byID[preexistingID] = appointments.Appointment{
		ID: preexistingID, Phone: "11999990000", ISODate: "2026-02-10",
		Time: "09:00", Status: appointments.StatusScheduled, PatientName: "Ana",
	}

	engine := NewEngine(store, nil, nil).WithClock(fixedClock())
	result, err := engine.Sync(context.Background(), []roster.Candidate{
		candidate("Ana", "11999990000", "2026-02-07", "14:00", "Dr. Paulo", ""),
	}, "up-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 0, result.Cancelled)
	assert.Equal(t, appointments.StatusScheduled, store.byID[preexistingID].Status,
		"cancel phase must not run for a chunk whose writes failed")
}

func TestSyncSkipsCandidatesWithoutPhoneOrDate(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, nil, nil).WithClock(fixedClock())

	bad := roster.Candidate{Appointment: appointments.Appointment{ID: "x", PatientName: "NoPhone"}}
	result, err := engine.Sync(context.Background(), []roster.Candidate{bad}, "up-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Upserted)
}

func TestSyncChunksPhones(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, nil, nil).WithClock(fixedClock()).WithChunkSize(1)

	_, err := engine.Sync(context.Background(), []roster.Candidate{
		candidate("Ana", "11999990000", "2026-02-07", "14:00", "Dr. Paulo", ""),
		candidate("Bia", "11988887777", "2026-02-08", "10:00", "Dra. Rita", ""),
	}, "up-1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.listCall, "one cancel-phase query per phone chunk")
}

func TestSyncListFailureRecordedNotFatal(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("store offline")
	engine := NewEngine(store, nil, nil).WithClock(fixedClock())

	result, err := engine.Sync(context.Background(), []roster.Candidate{
		candidate("Ana", "11999990000", "2026-02-07", "14:00", "Dr. Paulo", ""),
	}, "up-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Upserted)
	assert.Equal(t, 1, result.Failed)
}
