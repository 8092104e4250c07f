package sync

import (
	"sync"
	"time"
)

// Task runs fn once after delay. Re-arming cancels the pending run and
// restarts the delay, so only the last of a burst of Arm calls fires.
type Task struct {
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

func NewTask(delay time.Duration, fn func()) *Task {
	return &Task{delay: delay, fn: fn}
}

// Arm schedules fn, cancelling any pending run
func (t *Task) Arm() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		if gen != t.gen {
			// A later Arm or Disarm superseded this run after the timer fired.
			t.mu.Unlock()
			return
		}
		t.timer = nil
		t.mu.Unlock()
		t.fn()
	})
}

// Disarm cancels a pending run and reports whether one was pending
func (t *Task) Disarm() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	if t.timer == nil {
		return false
	}
	t.timer.Stop()
	t.timer = nil
	return true
}

// Pending reports whether a run is scheduled
func (t *Task) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
