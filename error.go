package synthflow

import (
	"errors"
	"strings"
)

var (
	// ErrNoSuchPort is returned when a node has no port with requested name.
	ErrNoSuchPort = errors.New("no such port")
	// ErrDuplicatePort is returned when a module declares the same stream twice.
	ErrDuplicatePort = errors.New("port already declared")
	// ErrDirection is returned when ports can't be connected because of
	// their direction or kind.
	ErrDirection = errors.New("incompatible ports")
	// ErrPortConnected is returned when an input already has a source.
	ErrPortConnected = errors.New("port is connected")
	// ErrNotConnected is returned when disconnecting ports which are not
	// connected to each other.
	ErrNotConnected = errors.New("port is not connected")
	// ErrAlreadyConnected is returned when the same producer is connected
	// to a multi port twice.
	ErrAlreadyConnected = errors.New("ports are already connected")
	// ErrSchedulerConfusion is returned when a schedule pass can't satisfy
	// sinks within the iteration limit.
	ErrSchedulerConfusion = errors.New("scheduler confusion: circle?")
	// ErrRemoteSource is returned when a connection is requested from an
	// object which has no node in this flow system.
	ErrRemoteSource = errors.New("remote source is not supported")
	// ErrRemoteAudio is returned when an audio stream is connected to a
	// remote object. Only async streams can cross the boundary.
	ErrRemoteAudio = errors.New("audio streams can't be connected to remote objects")
	// ErrNotSuspendable is returned when a node's module doesn't tolerate
	// suspension.
	ErrNotSuspendable = errors.New("not suspendable")
	// ErrUnknownNode is returned when a node doesn't belong to the flow system.
	ErrUnknownNode = errors.New("unknown node")
)

// execErrors wraps errors that might occure when multiple nodes
// are failing.
type execErrors []error

func (e execErrors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

// Is checks if any of errors match provided sentinel error.
func (e execErrors) Is(err error) bool {
	for _, se := range e {
		if errors.Is(se, err) {
			return true
		}
	}
	return false
}

// ret returns untyped nil if error is list is empty.
func (e execErrors) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
