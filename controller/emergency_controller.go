package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Nhashaamn/resq/models"
	"github.com/Nhashaamn/resq/services/countdown"
	"github.com/Nhashaamn/resq/utils"
)

// ActionHandler receives every resolved incident, escalated or suppressed.
type ActionHandler interface {
	Handle(ctx context.Context, inc models.Incident) error
}

// Deactivator is implemented by the monitor stage; confirm switches it off.
type Deactivator interface {
	Deactivate() bool
}

var (
	// ErrNoCountdown is returned by Confirm/Decline when nothing is pending.
	ErrNoCountdown = errors.New("no countdown pending")
	// ErrStopped is returned once the controller loop has exited.
	ErrStopped = errors.New("emergency controller stopped")
)

const handlerTimeout = 10 * time.Second

// Record is one entry of the emergency controller's output stream: either
// a shake (possibly suppressed because a countdown was already pending) or
// a resolved incident.
type Record struct {
	Shake      *models.ShakeEvent
	Suppressed bool
	Incident   *models.Incident
}

// CountdownStatus is what a confirmation screen needs to draw itself.
type CountdownStatus struct {
	Phase            string          `json:"phase"`
	IncidentID       string          `json:"incident_id,omitempty"`
	RemainingSeconds int             `json:"remaining_seconds"`
	DurationSeconds  int             `json:"duration_seconds"`
	Action           models.Action   `json:"action,omitempty"`
	ResolvedBy       models.Resolver `json:"resolved_by,omitempty"`
}

type signalReq struct {
	kind  models.Resolver
	reply chan signalResp
}

type signalResp struct {
	inc models.Incident
	err error
}

// EmergencyController turns shake events into confirmation countdowns and
// dispatches the outcome. Shakes, ticks and user signals are serialised on
// one goroutine, so at most one countdown is ever pending and a confirm
// that wins cannot be overtaken by a late tick.
type EmergencyController struct {
	cfg      utils.CountdownConfig
	handlers []ActionHandler
	monitor  Deactivator

	signals chan signalReq
	done    chan struct{}

	mu      sync.RWMutex
	timer   *countdown.Timer
	pending models.ShakeEvent

	handlersWG sync.WaitGroup

	opened        atomic.Uint64
	suppressedEvt atomic.Uint64
	escalated     atomic.Uint64
	cancelled     atomic.Uint64

	Out chan Record
}

// NewEmergencyController creates the countdown stage. monitor may be nil.
func NewEmergencyController(cfg utils.CountdownConfig, monitor Deactivator, handlers ...ActionHandler) *EmergencyController {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &EmergencyController{
		cfg:      cfg,
		handlers: handlers,
		monitor:  monitor,
		signals:  make(chan signalReq),
		done:     make(chan struct{}),
		Out:      make(chan Record, 64),
	}
}

// Start consumes shake events until ctx is done.
func (ec *EmergencyController) Start(ctx context.Context, shakes <-chan *models.ShakeEvent) {
	go ec.run(ctx, shakes)
	utils.L().Info("emergency controller started",
		"countdown", ec.cfg.Duration, "tick", ec.cfg.TickInterval)
}

func (ec *EmergencyController) run(ctx context.Context, shakes <-chan *models.ShakeEvent) {
	defer close(ec.done)
	defer close(ec.Out)
	defer ec.handlersWG.Wait()

	ticker := time.NewTicker(ec.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			utils.L().Info("emergency controller stopped")
			return

		case ev, ok := <-shakes:
			if !ok {
				shakes = nil
				continue
			}
			if ec.onShake(ctx, ev) {
				// align ticks with the start of the countdown
				ticker.Reset(ec.cfg.TickInterval)
			}

		case <-ticker.C:
			ec.onTick(ctx)

		case req := <-ec.signals:
			inc, err := ec.onSignal(ctx, req.kind)
			req.reply <- signalResp{inc: inc, err: err}
		}
	}
}

// onShake starts a countdown unless one is already running.
func (ec *EmergencyController) onShake(ctx context.Context, ev *models.ShakeEvent) bool {
	ec.mu.Lock()
	busy := ec.timer != nil && ec.timer.Phase() == countdown.Counting
	if !busy {
		t := countdown.New()
		t.Start(ec.cfg.Duration)
		ec.timer = t
		ec.pending = *ev
	}
	ec.mu.Unlock()

	if busy {
		ec.suppressedEvt.Add(1)
		utils.L().Info("shake ignored, countdown already pending", "event", ev.ID)
	} else {
		ec.opened.Add(1)
		utils.L().Warn("emergency countdown started", "incident", ev.ID, "duration", ec.cfg.Duration)
	}

	ec.emit(ctx, Record{Shake: ev, Suppressed: busy})
	return !busy
}

func (ec *EmergencyController) onTick(ctx context.Context) {
	ec.mu.RLock()
	t := ec.timer
	ec.mu.RUnlock()
	if t == nil {
		return
	}

	out, done := t.Tick(ec.cfg.TickInterval)
	if !done {
		if t.Phase() == countdown.Counting {
			utils.L().Debug("countdown", "remaining", t.RemainingSeconds())
		}
		return
	}
	ec.resolve(ctx, out)
}

func (ec *EmergencyController) onSignal(ctx context.Context, kind models.Resolver) (models.Incident, error) {
	ec.mu.RLock()
	t := ec.timer
	ec.mu.RUnlock()
	if t == nil {
		return models.Incident{}, ErrNoCountdown
	}

	var (
		out countdown.Outcome
		ok  bool
	)
	switch kind {
	case models.ResolvedByConfirm:
		out, ok = t.Confirm()
	case models.ResolvedByDecline:
		out, ok = t.Decline()
	}
	if !ok {
		return models.Incident{}, ErrNoCountdown
	}

	inc := ec.resolve(ctx, out)
	if kind == models.ResolvedByConfirm && ec.cfg.StopMonitorOnConfirm && ec.monitor != nil {
		ec.monitor.Deactivate()
	}
	return inc, nil
}

func (ec *EmergencyController) resolve(ctx context.Context, out countdown.Outcome) models.Incident {
	ec.mu.RLock()
	ev := ec.pending
	ec.mu.RUnlock()

	inc := models.Incident{
		ID:          ev.ID,
		DetectedNs:  ev.TimestampNs,
		Magnitude:   ev.Magnitude,
		CountdownMs: ec.cfg.Duration.Milliseconds(),
		Action:      out.Action,
		ResolvedBy:  out.ResolvedBy,
		ResolvedNs:  utils.NowNano(),
	}

	if inc.Escalated() {
		ec.escalated.Add(1)
	} else {
		ec.cancelled.Add(1)
	}
	utils.L().Warn("emergency countdown resolved",
		"incident", inc.ID, "action", inc.Action, "resolved_by", inc.ResolvedBy)

	ec.dispatch(ctx, inc)
	ec.emit(ctx, Record{Incident: &inc})
	return inc
}

// dispatch runs the handlers off the loop goroutine. The handler context
// outlives ctx so an escalation raised during shutdown still goes out.
func (ec *EmergencyController) dispatch(ctx context.Context, inc models.Incident) {
	for _, h := range ec.handlers {
		ec.handlersWG.Add(1)
		go func(h ActionHandler) {
			defer ec.handlersWG.Done()
			hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handlerTimeout)
			defer cancel()
			if err := h.Handle(hctx, inc); err != nil {
				utils.L().Error("action handler failed", "incident", inc.ID, "action", inc.Action, "error", err)
			}
		}(h)
	}
}

func (ec *EmergencyController) emit(ctx context.Context, r Record) {
	select {
	case ec.Out <- r:
	case <-ctx.Done():
	}
}

// Confirm cancels the pending countdown: the user is fine.
func (ec *EmergencyController) Confirm(ctx context.Context) (models.Incident, error) {
	return ec.signal(ctx, models.ResolvedByConfirm)
}

// Decline skips the rest of the countdown and escalates now.
func (ec *EmergencyController) Decline(ctx context.Context) (models.Incident, error) {
	return ec.signal(ctx, models.ResolvedByDecline)
}

func (ec *EmergencyController) signal(ctx context.Context, kind models.Resolver) (models.Incident, error) {
	req := signalReq{kind: kind, reply: make(chan signalResp, 1)}
	select {
	case ec.signals <- req:
	case <-ec.done:
		return models.Incident{}, ErrStopped
	case <-ctx.Done():
		return models.Incident{}, ctx.Err()
	}
	resp := <-req.reply
	return resp.inc, resp.err
}

// Status reports the current or most recent countdown.
func (ec *EmergencyController) Status() CountdownStatus {
	ec.mu.RLock()
	t := ec.timer
	id := ec.pending.ID
	ec.mu.RUnlock()

	if t == nil {
		return CountdownStatus{Phase: countdown.Idle.String()}
	}
	st := CountdownStatus{
		Phase:            t.Phase().String(),
		IncidentID:       id,
		RemainingSeconds: t.RemainingSeconds(),
		DurationSeconds:  int(t.Duration() / time.Second),
	}
	if out, ok := t.Outcome(); ok {
		st.Action = out.Action
		st.ResolvedBy = out.ResolvedBy
	}
	return st
}

// LogStats prints countdown counters.
func (ec *EmergencyController) LogStats() {
	utils.L().Info("emergency",
		"opened", ec.opened.Load(),
		"shakes_ignored", ec.suppressedEvt.Load(),
		"escalated", ec.escalated.Load(),
		"cancelled", ec.cancelled.Load())
}
