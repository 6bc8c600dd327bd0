package dispatch

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/clinicware/attend-platform/internal/history"
	"github.com/clinicware/attend-platform/internal/observability/metrics"
	"github.com/clinicware/attend-platform/internal/push"
	"github.com/clinicware/attend-platform/pkg/logging"
)

// DefaultWorkers caps the in-flight sends on the per-item fallback path.
const DefaultWorkers = 20

// maxErrorSamples bounds the error list carried back to the caller.
const maxErrorSamples = 10

// Send strategies, in descending preference. The first available capability
// wins; a batch is never sent through more than one strategy.
const (
	StrategyBulk    = "bulk"
	StrategyPerItem = "per_item"
)

type historyAppender interface {
	Append(ctx context.Context, e *history.Entry) error
}

// Outcome is the per-item result at the item's original index.
type Outcome struct {
	Index         int    `json:"index"`
	AppointmentID string `json:"appointment_id"`
	Phone         string `json:"phone"`
	Success       bool   `json:"success"`
	MessageID     string `json:"message_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// RunResult is the structured outcome of one dispatch run.
type RunResult struct {
	Fingerprint string    `json:"fingerprint"`
	Strategy    string    `json:"strategy"`
	Total       int       `json:"total"`
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
	Outcomes    []Outcome `json:"outcomes"`
	Errors      []string  `json:"errors,omitempty"`
}

// Dispatcher fans the will-send list of a fresh preview out to the push
// gateway and owns the audit entries for dispatch outcomes.
type Dispatcher struct {
	delivery push.Deliverer
	cache    *Cache
	history  historyAppender
	metrics  *metrics.PipelineMetrics
	logger   *logging.Logger
	workers  int
	title    string
	now      func() time.Time
}

// NewDispatcher creates a batch dispatcher.
func NewDispatcher(delivery push.Deliverer, cache *Cache, hist historyAppender, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		delivery: delivery,
		cache:    cache,
		history:  hist,
		logger:   logger,
		workers:  DefaultWorkers,
		title:    "Lembrete de sessao",
		now:      time.Now,
	}
}

// WithWorkers overrides the per-item concurrency cap.
func (d *Dispatcher) WithWorkers(n int) *Dispatcher {
	if n > 0 {
		d.workers = n
	}
	return d
}

// WithTitle sets the push notification title.
func (d *Dispatcher) WithTitle(title string) *Dispatcher {
	if title != "" {
		d.title = title
	}
	return d
}

// WithMetrics attaches pipeline metrics.
func (d *Dispatcher) WithMetrics(m *metrics.PipelineMetrics) *Dispatcher {
	d.metrics = m
	return d
}

// Dispatch sends the will-send list of the preview generated for the given
// filters. The preview must still be cached under the filter fingerprint;
// changed filters or an expired preview yield ErrStalePreview before anything
// is sent. The consumed preview is invalidated afterwards.
func (d *Dispatcher) Dispatch(ctx context.Context, filter Filter) (*RunResult, error) {
	if d.cache == nil {
		return nil, errors.New("dispatch: preview cache not configured")
	}
	preview, err := d.cache.Get(ctx, filter.Fingerprint())
	if err != nil {
		return nil, err
	}
	result := d.Run(ctx, preview)
	if err := d.cache.Invalidate(ctx, preview.Fingerprint); err != nil {
		d.logger.Error("preview invalidation failed", "error", err)
	}
	return result, nil
}

// Run executes the send fan-out for an already validated preview.
func (d *Dispatcher) Run(ctx context.Context, preview *Preview) *RunResult {
	started := d.now()
	items := preview.WillSend
	result := &RunResult{
		Fingerprint: preview.Fingerprint,
		Total:       len(items),
		Outcomes:    make([]Outcome, len(items)),
	}
	for i, item := range items {
		result.Outcomes[i] = Outcome{Index: i, AppointmentID: item.AppointmentID, Phone: item.Phone}
	}
	if len(items) == 0 {
		result.Strategy = StrategyBulk
		d.appendRunHistory(ctx, preview, result)
		return result
	}

	msgs := make([]push.Message, len(items))
	for i, item := range items {
		msgs[i] = d.buildMessage(item)
	}

	receipts, err := d.delivery.SendBulk(ctx, msgs)
	switch {
	case err == nil:
		result.Strategy = StrategyBulk
		for i, r := range receipts {
			d.recordReceipt(result, i, r)
		}
	case errors.Is(err, push.ErrBulkUnsupported):
		result.Strategy = StrategyPerItem
		d.sendPerItem(ctx, msgs, result)
	default:
		// The bulk capability exists but the call failed as a whole; every
		// item is recorded as failed, nothing is retried through the
		// per-item path within this run.
		result.Strategy = StrategyBulk
		for i := range result.Outcomes {
			d.recordReceipt(result, i, push.Receipt{Error: err.Error()})
		}
	}

	d.metrics.ObserveDuration("dispatch", d.now().Sub(started).Seconds())
	d.appendItemHistory(ctx, preview, result)
	d.appendRunHistory(ctx, preview, result)

	d.logger.Info("dispatch run complete",
		"fingerprint", preview.Fingerprint,
		"strategy", result.Strategy,
		"total", result.Total,
		"sent", result.Sent,
		"failed", result.Failed,
	)
	return result
}

// sendPerItem fans the messages out through a bounded worker pool. Completion
// order is unspecified; each outcome lands at its original index.
func (d *Dispatcher) sendPerItem(ctx context.Context, msgs []push.Message, result *RunResult) {
	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex

	workers := d.workers
	if workers > len(msgs) {
		workers = len(msgs)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				receipt, err := d.delivery.SendOne(ctx, msgs[i])
				if err != nil {
					receipt = push.Receipt{Error: err.Error()}
				}
				mu.Lock()
				d.recordReceipt(result, i, receipt)
				mu.Unlock()
			}
		}()
	}
	for i := range msgs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

func (d *Dispatcher) buildMessage(item Item) push.Message {
	return push.Message{
		Token: item.Token,
		Title: d.title,
		Body:  item.Message,
		Data: map[string]string{
			"appointment_id": item.AppointmentID,
			"date":           item.Date,
			"time":           item.Time,
			"slot_offset":    strconv.Itoa(item.SlotOffset),
		},
	}
}

func (d *Dispatcher) recordReceipt(result *RunResult, i int, r push.Receipt) {
	out := &result.Outcomes[i]
	out.Success = r.OK
	out.MessageID = r.MessageID
	out.Error = r.Error
	if r.OK {
		result.Sent++
		d.metrics.ObserveDispatch("sent", result.Strategy)
		return
	}
	result.Failed++
	d.metrics.ObserveDispatch("failed", result.Strategy)
	if len(result.Errors) < maxErrorSamples {
		result.Errors = append(result.Errors, out.Phone+": "+r.Error)
	}
}

func (d *Dispatcher) appendItemHistory(ctx context.Context, preview *Preview, result *RunResult) {
	if d.history == nil {
		return
	}
	for _, out := range result.Outcomes {
		status := "sent"
		if !out.Success {
			status = "failed"
		}
		entry := &history.Entry{
			Kind: history.KindDispatchItem,
			Detail: map[string]any{
				"appointment_id": out.AppointmentID,
				"phone":          out.Phone,
				"status":         status,
				"message_id":     out.MessageID,
				"error":          out.Error,
				"fingerprint":    preview.Fingerprint,
			},
		}
		if err := d.history.Append(ctx, entry); err != nil {
			d.logger.Error("dispatch item history append failed", "error", err)
		}
	}
}

func (d *Dispatcher) appendRunHistory(ctx context.Context, preview *Preview, result *RunResult) {
	if d.history == nil {
		return
	}
	entry := &history.Entry{
		Kind: history.KindDispatchRun,
		Counts: map[string]int{
			"total":  result.Total,
			"sent":   result.Sent,
			"failed": result.Failed,
		},
		Detail: map[string]any{
			"fingerprint": preview.Fingerprint,
			"strategy":    result.Strategy,
		},
	}
	if err := d.history.Append(ctx, entry); err != nil {
		d.logger.Error("dispatch run history append failed", "error", err)
	}
}
