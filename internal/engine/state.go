package engine

import "fmt"

// RunState is the lifecycle state of an Engine.
type RunState int32

const (
	StateIdle RunState = iota
	StateMonitoring
	StateExecuting
	StateCompleted
	StateStopped
	StateError
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateMonitoring:
		return "Monitoring"
	case StateExecuting:
		return "Executing"
	case StateCompleted:
		return "Completed"
	case StateStopped:
		return "Stopped"
	case StateError:
		return "Error"
	default:
		return fmt.Sprintf("RunState(%d)", int32(s))
	}
}

// IsTerminal reports whether a run ends in s.
func (s RunState) IsTerminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateError
}

// WaitEndReason tells why the wait phase ended.
type WaitEndReason int

const (
	// ReasonNone means the wait phase never ended, e.g. the run failed first.
	ReasonNone WaitEndReason = iota
	// ReasonExpired: the countdown was read as zero.
	ReasonExpired
	// ReasonRecognitionExhausted: too many consecutive unreadable polls. The
	// countdown is assumed to have ended and the purchase still runs.
	ReasonRecognitionExhausted
	// ReasonCancelled: Stop was called or the context was cancelled.
	ReasonCancelled
)

func (r WaitEndReason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonRecognitionExhausted:
		return "recognition exhausted"
	case ReasonCancelled:
		return "cancelled"
	default:
		return "none"
	}
}
