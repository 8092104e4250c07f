package sync

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskRunsOnceAfterBurst(t *testing.T) {
	var calls atomic.Int32
	task := NewTask(30*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 10; i++ {
		task.Arm()
		time.Sleep(2 * time.Millisecond)
	}
	if !task.Pending() {
		t.Fatal("expected a pending run")
	}

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
	if task.Pending() {
		t.Error("expected no pending run after firing")
	}
}

func TestTaskDisarm(t *testing.T) {
	var calls atomic.Int32
	task := NewTask(20*time.Millisecond, func() { calls.Add(1) })

	if task.Disarm() {
		t.Error("Disarm on idle task reported a pending run")
	}

	task.Arm()
	if !task.Disarm() {
		t.Error("Disarm did not report the pending run")
	}

	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("expected disarmed task not to run, got %d calls", got)
	}
}

func TestTaskRearmAfterFire(t *testing.T) {
	var calls atomic.Int32
	task := NewTask(5*time.Millisecond, func() { calls.Add(1) })

	task.Arm()
	time.Sleep(40 * time.Millisecond)
	task.Arm()
	time.Sleep(40 * time.Millisecond)

	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}
