package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"farm-alert-service/internal/logging"
	"farm-alert-service/internal/models"
)

// SendFunc attempts delivery of one alert to one recipient over a single
// channel. A returned error marks the attempt failed; it is recorded, never
// retried here. Retry policy belongs to the channel integration.
type SendFunc func(ctx context.Context, alert models.Alert, sub models.Subscription) error

// Archive is an optional write-through sink for delivery records. Archive
// failures are logged and never affect dispatch outcomes.
type Archive interface {
	SaveDeliveryRecord(ctx context.Context, rec models.DeliveryRecord) error
}

type task struct {
	alert      models.Alert
	recipients []string
}

// Dispatcher matches recipients to alerts by subscription type and severity
// threshold, fans deliveries out across the requested channels, and keeps
// the append-only delivery history. The subscription store and history are
// owned exclusively by the Dispatcher; callers mutate them only through the
// documented operations.
type Dispatcher struct {
	logger   *logging.Logger
	channels map[models.Channel]SendFunc
	archive  Archive

	mu      sync.Mutex
	subs    map[string]models.Subscription
	order   []string // recipient ids in first-subscribe order
	history []models.DeliveryRecord

	tasks  chan task
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup

	queueSize  int
	maxWorkers int
}

// New constructs a Dispatcher with the given channel providers. archive may
// be nil to disable write-through.
func New(channels map[models.Channel]SendFunc, archive Archive, logger *logging.Logger, queueSize, maxWorkers int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 500
	}
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		logger:     logger,
		channels:   channels,
		archive:    archive,
		subs:       make(map[string]models.Subscription),
		tasks:      make(chan task, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		queueSize:  queueSize,
		maxWorkers: maxWorkers,
	}
}

// Start launches the worker pool draining queued alerts.
func (d *Dispatcher) Start(wg *sync.WaitGroup) {
	d.wg = wg
	for i := 0; i < d.maxWorkers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop cancels the workers. Pending queued tasks are dropped.
func (d *Dispatcher) Stop() {
	d.cancel()
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			d.logger.Infof("Dispatch worker %d stopped", id)
			return
		case t := <-d.tasks:
			d.SendAlert(d.ctx, t.alert, t.recipients)
		}
	}
}

// QueueAlert enqueues an alert for asynchronous fan-out to the given
// candidates. When the queue is full the alert is dropped and logged;
// delivery here is best-effort.
func (d *Dispatcher) QueueAlert(alert models.Alert, recipients []string) {
	select {
	case d.tasks <- task{alert: alert, recipients: recipients}:
		d.logger.Infof("Queued alert for dispatch: id=%s", alert.ID)
	default:
		d.logger.Errorf("Dispatch queue full, dropping alert: id=%s", alert.ID)
	}
}

// Subscribe upserts the recipient's subscription, last write wins.
func (d *Dispatcher) Subscribe(recipientID string, spec models.SubscriptionSpec) models.Subscription {
	now := time.Now()
	enabled := true
	if spec.Enabled != nil {
		enabled = *spec.Enabled
	}
	minSev := spec.MinSeverity
	if minSev == "" {
		minSev = models.SeverityLow
	}

	sub := models.Subscription{
		RecipientID: recipientID,
		AlertTypes:  spec.AlertTypes,
		Channels:    spec.Channels,
		MinSeverity: minSev,
		Enabled:     enabled,
		Config:      spec.Config,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	d.mu.Lock()
	if prev, ok := d.subs[recipientID]; ok {
		sub.CreatedAt = prev.CreatedAt
	} else {
		d.order = append(d.order, recipientID)
	}
	d.subs[recipientID] = sub
	d.mu.Unlock()

	d.logger.Infof("Subscription created: recipient=%s types=%v min=%s", recipientID, sub.AlertTypes, sub.MinSeverity)
	return sub
}

// Update applies a partial update to an existing subscription and returns
// the result, or nil when the recipient has none.
func (d *Dispatcher) Update(recipientID string, upd models.SubscriptionUpdate) *models.Subscription {
	d.mu.Lock()
	sub, ok := d.subs[recipientID]
	if !ok {
		d.mu.Unlock()
		return nil
	}
	if upd.AlertTypes != nil {
		sub.AlertTypes = upd.AlertTypes
	}
	if upd.Channels != nil {
		sub.Channels = upd.Channels
	}
	if upd.MinSeverity != nil {
		sub.MinSeverity = *upd.MinSeverity
	}
	if upd.Enabled != nil {
		sub.Enabled = *upd.Enabled
	}
	if upd.Config != nil {
		sub.Config = upd.Config
	}
	sub.UpdatedAt = time.Now()
	d.subs[recipientID] = sub
	d.mu.Unlock()

	d.logger.Infof("Subscription updated: recipient=%s", recipientID)
	return &sub
}

// Get returns the recipient's subscription, or nil when none exists.
func (d *Dispatcher) Get(recipientID string) *models.Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	sub, ok := d.subs[recipientID]
	if !ok {
		return nil
	}
	return &sub
}

// Recipients returns every subscribed recipient id in first-subscribe order.
func (d *Dispatcher) Recipients() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// SendAlert fans one alert out to the candidate recipients. A candidate is
// skipped when it has no subscription, the subscription is disabled, the
// alert type is not subscribed, or the alert severity ranks below the
// subscription's minimum. Each remaining (recipient, channel) pair gets one
// delivery attempt and one DeliveryRecord; a failure on one pair never
// aborts the others.
func (d *Dispatcher) SendAlert(ctx context.Context, alert models.Alert, recipients []string) models.DeliveryResult {
	var result models.DeliveryResult

	for _, rid := range recipients {
		d.mu.Lock()
		sub, ok := d.subs[rid]
		d.mu.Unlock()

		if !ok || !sub.Enabled {
			continue
		}
		if !sub.WantsType(alert.Type) {
			d.logger.Debugf("Recipient %s skipped (type %s not subscribed)", rid, alert.Type)
			continue
		}
		if alert.Severity.Rank() < sub.MinSeverity.Rank() {
			d.logger.Debugf("Recipient %s skipped (severity %s below %s)", rid, alert.Severity, sub.MinSeverity)
			continue
		}

		for _, ch := range sub.Channels {
			rec := models.DeliveryRecord{
				ID:          uuid.New().String(),
				AlertID:     alert.ID,
				RecipientID: rid,
				Channel:     ch,
				Status:      models.DeliverySent,
				SentAt:      time.Now(),
			}

			err := d.deliver(ctx, ch, alert, sub)
			if err != nil {
				rec.Status = models.DeliveryFailed
				rec.Error = err.Error()
				result.Failed++
				d.logger.Errorf("Delivery failed: alert=%s recipient=%s channel=%s: %v", alert.ID, rid, ch, err)
			} else {
				result.Sent++
			}

			d.mu.Lock()
			d.history = append(d.history, rec)
			d.mu.Unlock()

			if d.archive != nil {
				if aerr := d.archive.SaveDeliveryRecord(ctx, rec); aerr != nil {
					d.logger.Errorf("Archive write failed for record %s: %v", rec.ID, aerr)
				}
			}
		}
	}

	d.logger.Infof("Alert %s dispatched: sent=%d failed=%d", alert.ID, result.Sent, result.Failed)
	return result
}

// deliver isolates a single channel attempt, turning provider panics into
// recorded failures.
func (d *Dispatcher) deliver(ctx context.Context, ch models.Channel, alert models.Alert, sub models.Subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &providerPanicError{channel: ch, value: r}
		}
	}()

	fn, ok := d.channels[ch]
	if !ok {
		return &unknownChannelError{channel: ch}
	}
	return fn(ctx, alert, sub)
}

// MarkRead flips the most recent delivery record for (alertID, recipientID)
// to read. Calling it again is a no-op; no record is ever duplicated. It
// returns false when no matching record exists.
func (d *Dispatcher) MarkRead(alertID, recipientID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.history) - 1; i >= 0; i-- {
		rec := &d.history[i]
		if rec.AlertID != alertID || rec.RecipientID != recipientID {
			continue
		}
		if rec.Status != models.DeliveryRead {
			rec.Status = models.DeliveryRead
		}
		return true
	}
	return false
}

// History returns delivery records for an alert, optionally narrowed to one
// recipient, in append order.
func (d *Dispatcher) History(alertID, recipientID string) []models.DeliveryRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.DeliveryRecord
	for _, rec := range d.history {
		if rec.AlertID != alertID {
			continue
		}
		if recipientID != "" && rec.RecipientID != recipientID {
			continue
		}
		out = append(out, rec)
	}
	return out
}
