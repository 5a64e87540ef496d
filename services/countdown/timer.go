// Package countdown implements the confirmation countdown that runs between
// a detected shake and the emergency alert.
package countdown

import (
	"sync"
	"time"

	"github.com/Nhashaamn/resq/models"
)

// Phase is the timer's position in its lifecycle.
type Phase int

const (
	Idle Phase = iota
	Counting
	Resolved
)

var phaseNames = [...]string{"idle", "counting", "resolved"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Outcome is the terminal result of a countdown.
type Outcome struct {
	Action     models.Action
	ResolvedBy models.Resolver
}

// Timer is a single-use countdown. Idle → Counting on Start; Counting →
// Resolved on expiry, Confirm or Decline. Resolved is terminal: whichever
// call resolves first wins and every later call is ignored.
//
// All methods are safe for concurrent use.
type Timer struct {
	mu        sync.Mutex
	phase     Phase
	duration  time.Duration
	remaining time.Duration
	outcome   Outcome
}

// New returns an idle timer.
func New() *Timer {
	return &Timer{}
}

// Start begins counting down from d. It returns false, leaving the timer
// unchanged, if the timer is not idle or d is not positive.
func (t *Timer) Start(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != Idle || d <= 0 {
		return false
	}
	t.phase = Counting
	t.duration = d
	t.remaining = d
	return true
}

// Tick advances the countdown by dt. When the remaining time reaches zero
// the timer resolves to Escalate and Tick returns the outcome with true.
func (t *Timer) Tick(dt time.Duration) (Outcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != Counting || dt < 0 {
		return Outcome{}, false
	}
	t.remaining -= dt
	if t.remaining > 0 {
		return Outcome{}, false
	}
	t.remaining = 0
	return t.resolve(models.ActionEscalate, models.ResolvedByTimeout), true
}

// Confirm cancels the pending alert. It reports true only if this call
// resolved the timer.
func (t *Timer) Confirm() (Outcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != Counting {
		return Outcome{}, false
	}
	return t.resolve(models.ActionSuppress, models.ResolvedByConfirm), true
}

// Decline sends the alert now without waiting for the countdown.
func (t *Timer) Decline() (Outcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != Counting {
		return Outcome{}, false
	}
	return t.resolve(models.ActionEscalate, models.ResolvedByDecline), true
}

func (t *Timer) resolve(a models.Action, by models.Resolver) Outcome {
	t.phase = Resolved
	t.outcome = Outcome{Action: a, ResolvedBy: by}
	return t.outcome
}

// Phase returns the current phase.
func (t *Timer) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Duration returns the length the countdown was started with.
func (t *Timer) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

// Remaining returns the time left before the alert fires.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// RemainingSeconds returns the remaining time rounded up to whole seconds,
// the number a countdown screen shows.
func (t *Timer) RemainingSeconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int((t.remaining + time.Second - 1) / time.Second)
}

// Outcome returns the result once resolved.
func (t *Timer) Outcome() (Outcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome, t.phase == Resolved
}
