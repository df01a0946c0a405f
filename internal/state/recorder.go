package state

import "sync/atomic"

type recorderFunc func(from, to State)

var transitionRecorder atomic.Value

func init() {
	transitionRecorder.Store(recorderFunc(func(State, State) {}))
}

// RegisterTransitionRecorder allows external packages to observe dialog transitions.
func RegisterTransitionRecorder(recorder func(from, to State)) {
	if recorder == nil {
		recorder = func(State, State) {}
	}
	transitionRecorder.Store(recorderFunc(recorder))
}

// RecordTransition reports a transition to the registered recorder.
func RecordTransition(from, to State) {
	transitionRecorder.Load().(recorderFunc)(from, to)
}
