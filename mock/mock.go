// Package mock provides mocks for synthflow modules and allows to execute integration tests.
package mock

import (
	"github.com/dudk/synthflow"
)

// Generator mocks a module producing a constant signal on "out".
type Generator struct {
	counter
	Value float32
	out   []float32
	Hooks
}

// Declare implements synthflow.Module.
func (m *Generator) Declare(d synthflow.StreamDeclarer) error {
	if m.ErrorOnDeclare != nil {
		return m.ErrorOnDeclare
	}
	return d.AudioStream("out", &m.out, synthflow.FlagOut)
}

// CalculateBlock fills the output with Value.
func (m *Generator) CalculateBlock(n int) {
	for i := range m.out[:n] {
		m.out[i] = m.Value
	}
	m.advance(n)
}

// Processor mocks a module copying "in" to "out" multiplied by Gain.
// Zero gain passes the signal through.
type Processor struct {
	counter
	Gain float32
	in   []float32
	out  []float32
	Hooks
}

// Declare implements synthflow.Module.
func (m *Processor) Declare(d synthflow.StreamDeclarer) error {
	if m.ErrorOnDeclare != nil {
		return m.ErrorOnDeclare
	}
	if err := d.AudioStream("in", &m.in, synthflow.FlagIn); err != nil {
		return err
	}
	return d.AudioStream("out", &m.out, synthflow.FlagOut)
}

// CalculateBlock implements synthflow.Module.
func (m *Processor) CalculateBlock(n int) {
	gain := m.Gain
	if gain == 0 {
		gain = 1
	}
	for i := 0; i < n; i++ {
		m.out[i] = m.in[i] * gain
	}
	m.advance(n)
}

// Adder mocks a module summing "in1" and "in2" into "out". It's used to
// close feedback loops.
type Adder struct {
	counter
	in1 []float32
	in2 []float32
	out []float32
	Hooks
}

// Declare implements synthflow.Module.
func (m *Adder) Declare(d synthflow.StreamDeclarer) error {
	if err := d.AudioStream("in1", &m.in1, synthflow.FlagIn); err != nil {
		return err
	}
	if err := d.AudioStream("in2", &m.in2, synthflow.FlagIn); err != nil {
		return err
	}
	return d.AudioStream("out", &m.out, synthflow.FlagOut)
}

// CalculateBlock implements synthflow.Module.
func (m *Adder) CalculateBlock(n int) {
	for i := 0; i < n; i++ {
		m.out[i] = m.in1[i] + m.in2[i]
	}
	m.advance(n)
}

// Sink mocks a module consuming "in". Received signal is kept unless
// Discard is set.
type Sink struct {
	counter
	Discard bool
	in      []float32
	buffer  []float32
	Hooks
}

// Declare implements synthflow.Module.
func (m *Sink) Declare(d synthflow.StreamDeclarer) error {
	if m.ErrorOnDeclare != nil {
		return m.ErrorOnDeclare
	}
	return d.AudioStream("in", &m.in, synthflow.FlagIn)
}

// CalculateBlock implements synthflow.Module.
func (m *Sink) CalculateBlock(n int) {
	if !m.Discard {
		m.buffer = append(m.buffer, m.in[:n]...)
	}
	m.advance(n)
}

// Buffer returns sink's buffer.
func (m *Sink) Buffer() []float32 {
	return m.buffer
}

// Multi mocks a module consuming a multi input "in". Every call records
// how many slices the module saw.
type Multi struct {
	counter
	in     [][]float32
	Widths []int
	Hooks
}

// Declare implements synthflow.Module.
func (m *Multi) Declare(d synthflow.StreamDeclarer) error {
	return d.MultiStream("in", &m.in)
}

// CalculateBlock implements synthflow.Module.
func (m *Multi) CalculateBlock(n int) {
	m.Widths = append(m.Widths, len(m.in))
	m.advance(n)
}

// Inputs returns the slices currently registered for the multi input.
func (m *Multi) Inputs() [][]float32 {
	return m.in
}

// AsyncSource mocks a module sending a packet of Size bytes on "out" every
// block. If Pull is positive, the output works in pull mode with Pull
// packets and a block only sends packets requested before.
type AsyncSource struct {
	counter
	Size    int
	Pull    int
	Value   byte
	port    *synthflow.AsyncPort
	pending []*synthflow.Packet
	Hooks
}

// Declare implements synthflow.Module.
func (m *AsyncSource) Declare(d synthflow.StreamDeclarer) error {
	p, err := d.AsyncStream("out", synthflow.FlagOut)
	if err != nil {
		return err
	}
	m.port = p
	if m.Pull > 0 {
		p.SetPull(m.Pull, m.Size)
	}
	return nil
}

// CalculateBlock implements synthflow.Module.
func (m *AsyncSource) CalculateBlock(n int) {
	m.advance(n)
	if m.Pull > 0 {
		pending := m.pending
		m.pending = nil
		for _, p := range pending {
			m.fill(p)
		}
		return
	}
	m.fill(m.port.Allocate(m.Size))
}

// RequestPacket implements synthflow.PacketRequester.
func (m *AsyncSource) RequestPacket(port string, p *synthflow.Packet) {
	m.pending = append(m.pending, p)
}

// Requested returns number of empty packets waiting to be filled.
func (m *AsyncSource) Requested() int {
	return len(m.pending)
}

// Port returns the output port.
func (m *AsyncSource) Port() *synthflow.AsyncPort {
	return m.port
}

func (m *AsyncSource) fill(p *synthflow.Packet) {
	for i := range p.Contents {
		p.Contents[i] = m.Value
	}
	m.port.Send(p, m.Size)
}

// AsyncSink mocks a module receiving packets on "in". Packets are processed
// right away unless Hold is set.
type AsyncSink struct {
	counter
	Hold     bool
	Received [][]byte
	held     []*synthflow.Packet
	Hooks
}

// Declare implements synthflow.Module.
func (m *AsyncSink) Declare(d synthflow.StreamDeclarer) error {
	_, err := d.AsyncStream("in", synthflow.FlagIn)
	return err
}

// CalculateBlock implements synthflow.Module.
func (m *AsyncSink) CalculateBlock(n int) {
	m.advance(n)
}

// ProcessPacket implements synthflow.PacketProcessor.
func (m *AsyncSink) ProcessPacket(port string, p *synthflow.Packet) {
	m.Received = append(m.Received, append([]byte(nil), p.Data()...))
	if m.Hold {
		m.held = append(m.held, p)
		return
	}
	p.Processed()
}

// Release processes all held packets.
func (m *AsyncSink) Release() {
	held := m.held
	m.held = nil
	for _, p := range held {
		p.Processed()
	}
}

// Remote mocks an object on the other side of a process boundary.
type Remote struct {
	Received    map[string][][]byte
	ErrorOnCall error
}

// Node returns nil: remote objects have no local node.
func (r *Remote) Node() *synthflow.ScheduleNode {
	return nil
}

// Receive implements synthflow.Receiver.
func (r *Remote) Receive(port string, data []byte) error {
	if r.ErrorOnCall != nil {
		return r.ErrorOnCall
	}
	if r.Received == nil {
		r.Received = make(map[string][][]byte)
	}
	r.Received[port] = append(r.Received[port], data)
	return nil
}

// Hooks allows to mock module hooks.
type Hooks struct {
	Inited  bool
	Started int
	Ended   int
	Suspend synthflow.AutoSuspendState

	ErrorOnDeclare error
	ErrorOnInit    error
	ErrorOnStart   error
	ErrorOnEnd     error
}

// StreamInit implements synthflow.StreamIniter.
func (h *Hooks) StreamInit() error {
	h.Inited = true
	return h.ErrorOnInit
}

// StreamStart implements synthflow.StreamStarter.
func (h *Hooks) StreamStart() error {
	h.Started++
	return h.ErrorOnStart
}

// StreamEnd implements synthflow.StreamEnder.
func (h *Hooks) StreamEnd() error {
	h.Ended++
	return h.ErrorOnEnd
}

// AutoSuspend implements synthflow.AutoSuspender.
func (h *Hooks) AutoSuspend() synthflow.AutoSuspendState {
	return h.Suspend
}

// counter counts calls and samples.
type counter struct {
	calls   int
	samples int
}

// advance counter's metrics.
func (c *counter) advance(size int) {
	c.calls++
	c.samples = c.samples + size
}

// Count returns calls and samples metrics.
func (c *counter) Count() (int, int) {
	return c.calls, c.samples
}
