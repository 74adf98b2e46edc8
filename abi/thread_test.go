package abi

import (
	"sync"
	"testing"
)

func TestThreadStateTransitions(t *testing.T) {
	th := NewThread(1)

	if th.State() != StateIdle {
		t.Fatalf("new thread in state %v, want Idle", th.State())
	}

	if !th.Transition(StateIdle, StateRunnable) || !th.Transition(StateRunnable, StateRunning) {
		t.Fatal("legal transitions refused")
	}

	if th.Transition(StateIdle, StateRunning) {
		t.Error("transition from a stale state must fail")
	}
}

func TestSuspendFlagSurvivesTransition(t *testing.T) {
	th := NewThread(2)
	th.Transition(StateIdle, StateRunnable)
	th.Transition(StateRunnable, StateRunning)

	th.RequestSuspend()

	// The flag is OR-ed onto Running: the base state is still Running.
	if th.State() != StateRunning {
		t.Fatalf("state after suspend request = %v, want Running", th.State())
	}
}

func TestSafepointParksAndResumes(t *testing.T) {
	th := NewThread(3)
	th.Transition(StateIdle, StateRunnable)
	th.Transition(StateRunnable, StateRunning)
	th.RequestSuspend()

	cond := sync.NewCond(&sync.Mutex{})

	done := make(chan struct{})
	go func() {
		th.Safepoint(cond)
		close(done)
	}()

	// Spin until the thread parks, then resume it; only the requester
	// owns the Preempted -> Waiting edge.
	for th.State() != StatePreempted {
	}

	if !th.Resume(cond) {
		t.Fatal("requester failed to resume a preempted thread")
	}

	<-done

	if th.State() != StateWaiting {
		t.Errorf("state after resume = %v, want Waiting", th.State())
	}
}

func TestSafepointNoopWithoutRequest(t *testing.T) {
	th := NewThread(4)
	th.Transition(StateIdle, StateRunnable)
	th.Transition(StateRunnable, StateRunning)

	cond := sync.NewCond(&sync.Mutex{})
	th.Safepoint(cond) // must not block

	if th.State() != StateRunning {
		t.Errorf("safepoint without a request changed state to %v", th.State())
	}
}
