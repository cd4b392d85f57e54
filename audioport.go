package synthflow

import "fmt"

// AudioPort is a sample stream endpoint. An output owns its buffer, an
// input borrows the buffer of its source and keeps its own read cursor.
// Unconnected inputs read a constant value from their private buffer.
type AudioPort struct {
	portBase
	// slot is where the module sees the current segment.
	slot      *[]float32
	source    *AudioPort
	buffer    *SynthBuffer
	own       *SynthBuffer
	position  int64
	destCount int
	// multi is set for dynamic legs of a multi port.
	multi *MultiPort
}

func newAudioPort(name string, flags Flags, node *ScheduleNode, slot *[]float32, size int) *AudioPort {
	own := NewSynthBuffer(0, size)
	return &AudioPort{
		portBase: portBase{
			name:  name,
			flags: flags,
			node:  node,
		},
		slot:   slot,
		buffer: own,
		own:    own,
	}
}

// Kind returns KindAudio.
func (a *AudioPort) Kind() Kind {
	return KindAudio
}

// Source returns the producing port or nil if the input reads a constant.
func (a *AudioPort) Source() *AudioPort {
	return a.source
}

// Buffer returns the buffer the port currently reads or writes.
func (a *AudioPort) Buffer() *SynthBuffer {
	return a.buffer
}

// Position returns the read cursor of an input.
func (a *AudioPort) Position() int64 {
	return a.position
}

// DestCount returns number of consumers of an output.
func (a *AudioPort) DestCount() int {
	return a.destCount
}

// HaveIn returns number of samples available to read. Constant inputs
// always have a full buffer.
func (a *AudioPort) HaveIn() int {
	if a.source == nil {
		return a.buffer.Size()
	}
	return int(a.buffer.position - a.position)
}

// OutRoom returns number of samples an output can write. When consumers
// share the buffer, every written sample is owed by each of them.
func (a *AudioPort) OutRoom() int {
	room := a.buffer.Room()
	if room < 0 {
		return 0
	}
	if a.destCount > 1 {
		room /= a.destCount
	}
	return room
}

// SetFloatValue sets the constant value of an unconnected input.
func (a *AudioPort) SetFloatValue(v float32) error {
	if !a.flags.Is(FlagIn) {
		return fmt.Errorf("set value of %v: %w", a.name, ErrDirection)
	}
	if a.source != nil {
		return fmt.Errorf("set value of %v: %w", a.name, ErrPortConnected)
	}
	a.own.SetValue(v)
	return nil
}

// Connect makes the input read from source.
func (a *AudioPort) Connect(source Port) error {
	if a.multi != nil {
		return a.multi.Connect(source)
	}
	src, ok := AsAudioPort(source)
	if !ok || !a.flags.Is(FlagIn) || !src.flags.Is(FlagOut) {
		return fmt.Errorf("connect %v to %v: %w", portName(source), a.name, ErrDirection)
	}
	if a.source != nil {
		return fmt.Errorf("connect %v to %v: %w", src.name, a.name, ErrPortConnected)
	}
	a.connectSource(src)
	return nil
}

// Disconnect stops reading from source.
func (a *AudioPort) Disconnect(source Port) error {
	if a.multi != nil {
		return a.multi.Disconnect(source)
	}
	src, ok := AsAudioPort(source)
	if !ok || a.source == nil || a.source != src {
		return fmt.Errorf("disconnect %v from %v: %w", portName(source), a.name, ErrNotConnected)
	}
	a.disconnectSource()
	return nil
}

// connectSource starts reading at the producer's write position, so a
// fresh consumer has nothing to read even if the producer has a backlog.
// The backlog stays owed to consumers which were connected when it was
// written; counting it for the new one too could push needRead above the
// buffer size.
func (a *AudioPort) connectSource(src *AudioPort) {
	a.source = src
	a.buffer = src.buffer
	a.position = src.buffer.position
	src.destCount++
	pair(a, src)
}

func (a *AudioPort) disconnectSource() {
	src := a.source
	// settle what was produced for us but never read
	a.read(int(a.buffer.position - a.position))
	src.destCount--
	a.source = nil
	a.buffer = a.own
	a.position = 0
	unpair(a, src)
}

func (a *AudioPort) readSegment(offset, n int) []float32 {
	return a.buffer.segment(a.position+int64(offset), n)
}

func (a *AudioPort) writeSegment(offset, n int) []float32 {
	return a.buffer.segment(a.buffer.position+int64(offset), n)
}

// install exposes the segment to the module.
func (a *AudioPort) install(segment []float32) {
	if a.slot != nil {
		*a.slot = segment
	}
}

func (a *AudioPort) read(n int) {
	a.position += int64(n)
	if a.source != nil {
		a.buffer.settle(n)
	}
}

func (a *AudioPort) write(n int) {
	a.buffer.position += int64(n)
	a.buffer.owe(n * a.destCount)
}

func portName(p Port) string {
	if p == nil {
		return "<nil>"
	}
	return p.Name()
}
