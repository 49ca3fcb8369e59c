package alerts

import (
	"time"

	"github.com/google/uuid"

	"farm-alert-service/internal/logging"
	"farm-alert-service/internal/models"
)

// Engine turns condition readings into typed, severity-ranked alerts and
// manages their lifecycle. It holds no timers of its own: condition
// evaluation happens per incoming reading and the expiry sweep is driven by
// an external scheduler.
type Engine struct {
	store  *Store
	logger *logging.Logger

	// OnCreated, when set, is invoked synchronously for every alert the
	// engine stores. Wiring decides what happens next (dispatch, broadcast).
	OnCreated func(models.Alert)
}

// NewEngine constructs an Engine over the given store.
func NewEngine(store *Store, logger *logging.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Create allocates and stores a new active alert for a farm. Pure append:
// an existing alert is never overwritten.
func (e *Engine) Create(farmID string, spec models.AlertSpec) models.Alert {
	now := time.Now()
	start := spec.StartTime
	if start.IsZero() {
		start = now
	}
	actions := spec.RecommendedActions
	if len(actions) == 0 {
		actions = Recommendations(spec.Type)
	}

	a := models.Alert{
		ID:                 uuid.New().String(),
		FarmID:             farmID,
		Type:               spec.Type,
		Severity:           spec.Severity,
		Title:              spec.Title,
		Description:        spec.Description,
		AffectedArea:       spec.AffectedArea,
		StartTime:          start,
		EndTime:            spec.EndTime,
		RecommendedActions: actions,
		Status:             models.StatusActive,
		CreatedAt:          now,
	}
	e.store.append(a)
	e.logger.Infof("Alert created: id=%s farm=%s type=%s severity=%s", a.ID, farmID, a.Type, a.Severity)

	if e.OnCreated != nil {
		e.OnCreated(a)
	}
	return a
}

// CreateFromReading runs the rule table against one reading and stores one
// alert per satisfied rule. Evaluation is synchronous and idempotent per
// call; callers control the cadence.
func (e *Engine) CreateFromReading(farmID string, r models.Reading) []models.Alert {
	var created []models.Alert
	for _, rl := range conditionRules {
		if !rl.applies(r) {
			continue
		}
		created = append(created, e.Create(farmID, rl.build(r)))
	}
	return created
}

// Resolve transitions an active alert to resolved and returns the updated
// copy. Unknown ids and alerts already resolved or expired return nil; both
// are harmless races, not failures.
func (e *Engine) Resolve(id string) *models.Alert {
	now := time.Now()
	a, ok := e.store.update(id, func(a *models.Alert) bool {
		if a.Status != models.StatusActive {
			return false
		}
		a.Status = models.StatusResolved
		a.ResolvedAt = &now
		return true
	})
	if !ok {
		return nil
	}
	e.logger.Infof("Alert resolved: id=%s", id)
	return &a
}

// SweepExpired transitions every active alert whose end time has passed to
// expired and returns the count changed. Invoked periodically from outside.
func (e *Engine) SweepExpired(now time.Time) int {
	expired := 0
	e.store.each(func(a *models.Alert) {
		if a.Status != models.StatusActive || a.EndTime == nil || a.EndTime.After(now) {
			return
		}
		a.Status = models.StatusExpired
		expired++
	})
	if expired > 0 {
		e.logger.Infof("Expired %d alerts", expired)
	}
	return expired
}

// Active returns a farm's active alerts in creation order.
func (e *Engine) Active(farmID string) []models.Alert {
	return e.store.snapshot(func(a models.Alert) bool {
		return a.FarmID == farmID && a.Status == models.StatusActive
	})
}

// Query returns a farm's alerts matching the filter, in creation order.
func (e *Engine) Query(farmID string, f models.AlertFilter) []models.Alert {
	return e.store.snapshot(func(a models.Alert) bool {
		if a.FarmID != farmID {
			return false
		}
		if f.Type != "" && a.Type != f.Type {
			return false
		}
		if f.Severity != "" && a.Severity != f.Severity {
			return false
		}
		if f.Status != "" && a.Status != f.Status {
			return false
		}
		return true
	})
}

// Get returns the alert by id, or nil if unknown.
func (e *Engine) Get(id string) *models.Alert {
	a, ok := e.store.get(id)
	if !ok {
		return nil
	}
	return &a
}

// Stats returns per-farm alert counts by type and severity.
func (e *Engine) Stats(farmID string) models.AlertStats {
	stats := models.AlertStats{
		ByType:     make(map[models.AlertType]int),
		BySeverity: make(map[models.Severity]int),
	}
	for _, a := range e.store.snapshot(func(a models.Alert) bool { return a.FarmID == farmID }) {
		stats.Total++
		if a.Status == models.StatusActive {
			stats.Active++
		}
		stats.ByType[a.Type]++
		stats.BySeverity[a.Severity]++
	}
	return stats
}
