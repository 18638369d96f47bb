package audiosink

import "errors"

// FlowResult is the render pipeline's non-exceptional result type: a small
// named-constant type rather than a generic error interface, so the
// caller can distinguish "drop silently" from "hard failure" without
// allocating.
type FlowResult int

const (
	// FlowOK is returned on a successful render (including a silent drop of
	// a buffer entirely outside the active segment).
	FlowOK FlowResult = iota
	// FlowNotNegotiated is returned when the ring buffer is not acquired.
	FlowNotNegotiated
	// FlowError is returned when the input buffer's byte size is not a
	// multiple of the configured bytes-per-sample.
	FlowError
	// FlowWrongState is returned when a blocking commit/preroll/drain wait
	// was cancelled by a flush or a PAUSED<->READY transition.
	FlowWrongState
)

// String implements fmt.Stringer for log messages.
func (f FlowResult) String() string {
	switch f {
	case FlowOK:
		return "ok"
	case FlowNotNegotiated:
		return "not-negotiated"
	case FlowError:
		return "error"
	case FlowWrongState:
		return "wrong-state"
	default:
		return "unknown"
	}
}

// ErrNotNegotiated is returned by SetFormat and EnablePull when no ring
// buffer has been created yet (the sink has not left NULL).
var ErrNotNegotiated = errors.New("audiosink: ring buffer not negotiated")

// ErrInvalidTransition is returned by SetState for a state that is not
// reachable from the current one.
var ErrInvalidTransition = errors.New("audiosink: invalid state transition")

// ErrOpenFailed wraps a device-open failure during NULL->READY.
var ErrOpenFailed = errors.New("audiosink: ring buffer open failed")

// ErrPullNotEnabled is returned by EnablePull when the sink was not
// constructed with WithPullEnabled(true).
var ErrPullNotEnabled = errors.New("audiosink: pull mode not enabled")

// MessageKind identifies the categories of out-of-band message the sink
// emits: warnings, errors, and end-of-stream notices.
type MessageKind int

const (
	// MessageResyncWarning corresponds to ELEMENT_WARNING(Core/Clock,
	// "Compensating for audio synchronisation problems").
	MessageResyncWarning MessageKind = iota
	// MessageNotNegotiatedError corresponds to ELEMENT_ERROR(Stream/Format,
	// "sink not negotiated").
	MessageNotNegotiatedError
	// MessageWrongSizeError corresponds to ELEMENT_ERROR(Stream/WrongType,
	// "wrong size").
	MessageWrongSizeError
	// MessageEos corresponds to post_message(Eos) from the pull-mode EOS
	// path.
	MessageEos
)

// String implements fmt.Stringer for log messages.
func (k MessageKind) String() string {
	switch k {
	case MessageResyncWarning:
		return "resync-warning"
	case MessageNotNegotiatedError:
		return "not-negotiated-error"
	case MessageWrongSizeError:
		return "wrong-size-error"
	case MessageEos:
		return "eos"
	default:
		return "unknown"
	}
}

// ElementMessage is the payload delivered to Sink.OnMessage.
type ElementMessage struct {
	Kind MessageKind
	Text string
}
