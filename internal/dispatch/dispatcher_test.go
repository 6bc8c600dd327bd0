package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicware/attend-platform/internal/history"
	"github.com/clinicware/attend-platform/internal/push"
)

// fakeDeliverer scripts the gateway's capabilities.
type fakeDeliverer struct {
	mu          sync.Mutex
	bulkErr     error
	oneErrFor   map[string]error
	inFlight    int
	maxInFlight int
	bulkCalls   int
	oneCalls    int
}

func (f *fakeDeliverer) SendBulk(_ context.Context, msgs []push.Message) ([]push.Receipt, error) {
	f.mu.Lock()
	f.bulkCalls++
	err := f.bulkErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	receipts := make([]push.Receipt, len(msgs))
	for i := range msgs {
		receipts[i] = push.Receipt{OK: true, MessageID: "bulk-" + msgs[i].Token}
	}
	return receipts, nil
}

func (f *fakeDeliverer) SendOne(_ context.Context, msg push.Message) (push.Receipt, error) {
	f.mu.Lock()
	f.oneCalls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	err := f.oneErrFor[msg.Token]
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err != nil {
		return push.Receipt{}, err
	}
	return push.Receipt{OK: true, MessageID: "one-" + msg.Token}, nil
}

type recordingHistory struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (r *recordingHistory) Append(_ context.Context, e *history.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *recordingHistory) countKind(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func previewWithItems(n int) *Preview {
	filter := Filter{FromDate: "2026-02-06", ToDate: "2026-02-08"}
	p := &Preview{Filter: filter, Fingerprint: filter.Fingerprint()}
	for i := 0; i < n; i++ {
		p.WillSend = append(p.WillSend, Item{
			AppointmentID: "apt-" + string(rune('a'+i)),
			Phone:         "119999900" + string(rune('0'+i%10)),
			Token:         "tok-" + string(rune('a'+i)),
			Message:       "lembrete",
			Date:          "2026-02-07",
			Time:          "14:00",
			SlotOffset:    24,
		})
	}
	p.Counts.WillSend = n
	p.Counts.Candidates = n
	return p
}

func TestRunPrefersBulk(t *testing.T) {
	delivery := &fakeDeliverer{}
	hist := &recordingHistory{}
	d := NewDispatcher(delivery, nil, hist, nil)

	result := d.Run(context.Background(), previewWithItems(3))
	assert.Equal(t, StrategyBulk, result.Strategy)
	assert.Equal(t, 3, result.Sent)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, delivery.bulkCalls)
	assert.Equal(t, 0, delivery.oneCalls, "bulk success must not also send per item")

	assert.Equal(t, 3, hist.countKind(history.KindDispatchItem))
	assert.Equal(t, 1, hist.countKind(history.KindDispatchRun))
}

func TestRunFallsBackToPerItemPool(t *testing.T) {
	delivery := &fakeDeliverer{bulkErr: push.ErrBulkUnsupported, oneErrFor: map[string]error{
		"tok-b": errors.New("gateway unreachable"),
	}}
	d := NewDispatcher(delivery, nil, nil, nil).WithWorkers(4)

	result := d.Run(context.Background(), previewWithItems(10))
	assert.Equal(t, StrategyPerItem, result.Strategy)
	assert.Equal(t, 9, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 10, delivery.oneCalls)
	assert.LessOrEqual(t, delivery.maxInFlight, 4, "worker pool must bound concurrency")

	// Each outcome sits at its original index regardless of completion order.
	for i, out := range result.Outcomes {
		assert.Equal(t, i, out.Index)
	}
	failed := result.Outcomes[1]
	assert.False(t, failed.Success)
	assert.Contains(t, failed.Error, "unreachable")
	assert.True(t, result.Outcomes[0].Success)
}

func TestRunBulkHardFailureDoesNotFallBack(t *testing.T) {
	delivery := &fakeDeliverer{bulkErr: errors.New("500 from gateway")}
	d := NewDispatcher(delivery, nil, nil, nil)

	result := d.Run(context.Background(), previewWithItems(2))
	assert.Equal(t, StrategyBulk, result.Strategy)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 0, delivery.oneCalls, "hard bulk failure must not double-send per item")
}

func TestDispatchRequiresFreshPreview(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	d := NewDispatcher(&fakeDeliverer{}, cache, nil, nil)

	filter := Filter{FromDate: "2026-02-06", ToDate: "2026-02-08"}
	_, err := d.Dispatch(context.Background(), filter)
	assert.True(t, errors.Is(err, ErrStalePreview))
}

func TestDispatchConsumesPreview(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	preview := previewWithItems(2)
	require.NoError(t, cache.Put(context.Background(), preview))

	d := NewDispatcher(&fakeDeliverer{}, cache, nil, nil)
	result, err := d.Dispatch(context.Background(), preview.Filter)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)

	// A second dispatch against the same filters needs a fresh preview.
	_, err = d.Dispatch(context.Background(), preview.Filter)
	assert.True(t, errors.Is(err, ErrStalePreview))
}

func TestRunEmptyPreview(t *testing.T) {
	d := NewDispatcher(&fakeDeliverer{}, nil, nil, nil)
	result := d.Run(context.Background(), previewWithItems(0))
	assert.Zero(t, result.Total)
	assert.Zero(t, result.Sent)
}
