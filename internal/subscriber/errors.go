package subscriber

import "fmt"

// State indicates where the subscriber is in its session lifecycle.
type State int32

const (
	// Disconnected is the initial state before Start is called.
	Disconnected State = iota

	// Connecting means the network connection and CONNECT exchange are in
	// progress.
	Connecting

	// Connected means the broker acknowledged the connection; subscribe
	// requests are being issued.
	Connected

	// SubscribedAll means a subscribe request has been issued for every
	// registered topic and the message loop is running.
	SubscribedAll

	// Failed is terminal: the connection attempt was rejected or the
	// network could not be reached. The subscriber performs no retries;
	// restart policy belongs to the process supervisor.
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case SubscribedAll:
		return "subscribed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// AlreadyStartedError is returned by Start when the subscriber session was
// already started; a session runs at most once per process.
type AlreadyStartedError struct{}

func (*AlreadyStartedError) Error() string {
	return "the subscriber has already been started"
}

// ConnectionError indicates that the network connection to the broker could
// not be opened. It may wrap an underlying error using Go standard error
// wrapping.
type ConnectionError struct {
	wrapped error
	message string
}

func (e *ConnectionError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *ConnectionError) Unwrap() error {
	return e.wrapped
}

// ConnackError indicates that the broker answered the CONNECT with an error
// reason code. It is fatal to the session attempt.
type ConnackError struct {
	ReasonCode byte
}

func (e *ConnackError) Error() string {
	return fmt.Sprintf(
		"received CONNACK packet with error reason code %x",
		e.ReasonCode,
	)
}

// SettingsError indicates an invalid value in the subscriber settings.
type SettingsError struct {
	Property string
	Message  string
}

func (e *SettingsError) Error() string {
	return fmt.Sprintf("invalid setting %s: %s", e.Property, e.Message)
}
