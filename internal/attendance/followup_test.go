package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicware/attend-platform/internal/directory"
	"github.com/clinicware/attend-platform/internal/history"
	"github.com/clinicware/attend-platform/internal/push"
	"github.com/clinicware/attend-platform/internal/roster"
)

type fakeEntries struct {
	rows []Entry
	err  error
}

func (f *fakeEntries) ListRange(_ context.Context, _, _ string) ([]Entry, error) {
	return f.rows, f.err
}

type fakeResolver struct {
	snap *directory.Snapshot
}

func (f *fakeResolver) Resolve(_ context.Context, _ []string) (*directory.Snapshot, error) {
	return f.snap, nil
}

type fakeSettings struct{}

func (fakeSettings) Get(_ context.Context) (*roster.Settings, error) {
	return roster.DefaultSettings(), nil
}

type fakeDeliverer struct {
	mu       sync.Mutex
	sent     []push.Message
	errFor   map[string]error
	rejected map[string]bool
}

func (f *fakeDeliverer) SendOne(_ context.Context, msg push.Message) (push.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if err, ok := f.errFor[msg.Token]; ok {
		return push.Receipt{}, err
	}
	if f.rejected[msg.Token] {
		return push.Receipt{Error: "DeviceNotRegistered"}, nil
	}
	return push.Receipt{OK: true, MessageID: fmt.Sprintf("m-%d", len(f.sent))}, nil
}

func (f *fakeDeliverer) SendBulk(_ context.Context, _ []push.Message) ([]push.Receipt, error) {
	return nil, push.ErrBulkUnsupported
}

type recordingHistory struct {
	entries []*history.Entry
}

func (r *recordingHistory) Append(_ context.Context, e *history.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func subscribedPhone(i int) string {
	return fmt.Sprintf("1199999%04d", i)
}

func activeDirectory(n int) *directory.Snapshot {
	var subs []directory.Subscriber
	var patients []directory.Patient
	for i := 0; i < n; i++ {
		phone := subscribedPhone(i)
		subs = append(subs, directory.Subscriber{Phone: phone, Active: true, PushToken: "tok-" + phone})
		patients = append(patients, directory.Patient{ID: fmt.Sprintf("p%d", i), Name: "Paciente", Phone: phone, Active: true})
	}
	return directory.NewSnapshot(subs, patients)
}

func TestRunDryRunCapsSamplesAndSendsNothing(t *testing.T) {
	var rows []Entry
	for i := 0; i < 12; i++ {
		e := entry(fmt.Sprintf("p%d", i), "2026-02-07", "14:00", "Paulo", StatusAbsent, 100)
		e.Phone = subscribedPhone(i)
		rows = append(rows, e)
	}
	delivery := &fakeDeliverer{}
	sel := NewSelector(&fakeEntries{rows: rows}, &fakeResolver{snap: activeDirectory(12)},
		fakeSettings{}, delivery, &recordingHistory{}, nil)

	result, err := sel.Run(context.Background(), "2026-02-01", "2026-02-28", true)
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, 12, result.Sendable)
	assert.Len(t, result.Samples, SampleCap)
	assert.Zero(t, result.Sent)
	assert.Zero(t, result.Failed)
	assert.Empty(t, delivery.sent, "dry run must not reach the gateway")
}

func TestRunClassifiesBlockedReasons(t *testing.T) {
	rows := []Entry{
		entry("p0", "2026-02-07", "09:00", "Paulo", StatusAbsent, 100), // sendable
		entry("p1", "2026-02-07", "10:00", "Paulo", StatusAbsent, 100), // missing phone
		entry("p2", "2026-02-07", "11:00", "Paulo", StatusAbsent, 100), // inactive patient
		entry("p3", "2026-02-07", "12:00", "Paulo", StatusAbsent, 100), // inactive subscriber
		entry("p4", "2026-02-07", "13:00", "Paulo", StatusAbsent, 100), // no token
	}
	rows[0].Phone = "11900000000"
	rows[1].Phone = ""
	rows[2].Phone = "11900000002"
	rows[3].Phone = "11900000003"
	rows[4].Phone = "11900000004"

	snap := directory.NewSnapshot(
		[]directory.Subscriber{
			{Phone: "11900000000", Active: true, PushToken: "tok-ok"},
			{Phone: "11900000002", Active: true, PushToken: "tok-x"},
			{Phone: "11900000003", Active: false, PushToken: "tok-y"},
			{Phone: "11900000004", Active: true},
		},
		[]directory.Patient{
			{ID: "p0", Name: "Ana", Phone: "11900000000", Active: true},
			{ID: "p2", Name: "Bia", Phone: "11900000002", Active: false},
			{ID: "p3", Name: "Ce", Phone: "11900000003", Active: true},
			{ID: "p4", Name: "Du", Phone: "11900000004", Active: true},
		},
	)
	sel := NewSelector(&fakeEntries{rows: rows}, &fakeResolver{snap: snap},
		fakeSettings{}, &fakeDeliverer{}, &recordingHistory{}, nil)

	result, err := sel.Run(context.Background(), "2026-02-01", "2026-02-28", true)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sendable)
	assert.Equal(t, 4, result.Blocked)
	assert.Equal(t, 1, result.BlockedWhy[BlockMissingPhone])
	assert.Equal(t, 1, result.BlockedWhy[BlockInactivePatient])
	assert.Equal(t, 1, result.BlockedWhy[BlockInactiveSubscriber])
	assert.Equal(t, 1, result.BlockedWhy[BlockMissingToken])
}

func TestRunSendsFollowupsAndRecordsFailures(t *testing.T) {
	var rows []Entry
	for i := 0; i < 3; i++ {
		e := entry(fmt.Sprintf("p%d", i), "2026-02-07", "14:00", "Paulo", StatusAbsent, 100)
		e.Phone = subscribedPhone(i)
		rows = append(rows, e)
	}
	rows[2].Status = StatusPresent

	delivery := &fakeDeliverer{
		errFor: map[string]error{"tok-" + subscribedPhone(1): errors.New("gateway timeout")},
	}
	hist := &recordingHistory{}
	sel := NewSelector(&fakeEntries{rows: rows}, &fakeResolver{snap: activeDirectory(3)},
		fakeSettings{}, delivery, hist, nil)

	result, err := sel.Run(context.Background(), "2026-02-01", "2026-02-28", false)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Absent)
	assert.Equal(t, 1, result.Present)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "gateway timeout")
	assert.Len(t, delivery.sent, 3)

	require.Len(t, hist.entries, 1)
	assert.Equal(t, history.KindFollowupRun, hist.entries[0].Kind)
	assert.Equal(t, 2, hist.entries[0].Counts["sent"])
}

func TestRunDedupesBeforeCounting(t *testing.T) {
	stale := entry("p1", "2026-02-07", "14:00", "Paulo", StatusAbsent, 100)
	fresh := entry("p1", "2026-02-07", "14:00", "Paulo", StatusPresent, 200)
	stale.Phone = subscribedPhone(0)
	fresh.Phone = subscribedPhone(0)

	sel := NewSelector(&fakeEntries{rows: []Entry{stale, fresh}}, &fakeResolver{snap: activeDirectory(1)},
		fakeSettings{}, &fakeDeliverer{}, &recordingHistory{}, nil)

	result, err := sel.Run(context.Background(), "2026-02-01", "2026-02-28", true)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, 1, result.Deduped)
	assert.Equal(t, 1, result.Present, "only the newest record contributes")
	assert.Zero(t, result.Absent)
}
