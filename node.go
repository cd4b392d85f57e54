package synthflow

import (
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/dudk/synthflow/internal/vport"
	"github.com/dudk/synthflow/metric"
)

// Stats are scheduling counters of a node.
type Stats struct {
	Requests int
	BusyHits int
	Calcs    int
	Samples  int
}

// ScheduleNode runs one module. It owns the module ports and pulls data
// from producers on request.
type ScheduleNode struct {
	id     string
	flow   *FlowSystem
	module Module
	ports  []Port
	byName map[string]Port
	// audio connections partitioned by direction, multi port legs included
	inConn  []*AudioPort
	outConn []*AudioPort

	initialized bool
	running     bool
	suspended   bool
	// stoppedBySuspend is set when suspension stopped the module.
	stoppedBySuspend bool

	busy       bool
	busyHit    bool
	needCycles int
	canPerform int

	stats Stats
	meter *metric.Meter
	log   logrus.FieldLogger
}

func newScheduleNode(f *FlowSystem, m Module) *ScheduleNode {
	id := xid.New().String()
	n := &ScheduleNode{
		id:     id,
		flow:   f,
		module: m,
		byName: make(map[string]Port),
		log: f.log.WithFields(logrus.Fields{
			"node":   id,
			"module": fmt.Sprintf("%T", m),
		}),
	}
	if f.metrics {
		n.meter = metric.New(m, f.sampleRate)
	}
	return n
}

// ID returns unique id of the node.
func (n *ScheduleNode) ID() string {
	return n.id
}

// Node returns the node itself, so it can be used as an Object.
func (n *ScheduleNode) Node() *ScheduleNode {
	return n
}

// Module returns the scheduled module.
func (n *ScheduleNode) Module() Module {
	return n.module
}

// Ports returns declared ports in declaration order.
func (n *ScheduleNode) Ports() []Port {
	return append([]Port(nil), n.ports...)
}

// Port returns the port with provided name.
func (n *ScheduleNode) Port(name string) (Port, error) {
	p, ok := n.byName[name]
	if !ok {
		return nil, fmt.Errorf("%v port %q: %w", n, name, ErrNoSuchPort)
	}
	return p, nil
}

// Stats returns scheduling counters.
func (n *ScheduleNode) Stats() Stats {
	return n.stats
}

// Running reports if the node was started.
func (n *ScheduleNode) Running() bool {
	return n.running
}

// Suspended reports if the node is suspended.
func (n *ScheduleNode) Suspended() bool {
	return n.suspended
}

func (n *ScheduleNode) String() string {
	return fmt.Sprintf("%T(%s)", n.module, n.id)
}

// AudioStream declares an audio port. Exactly one of FlagIn and FlagOut must
// be set.
func (n *ScheduleNode) AudioStream(name string, slot *[]float32, flags Flags) error {
	if flags.Is(FlagIn) == flags.Is(FlagOut) || flags.Is(FlagMulti) || flags.Is(FlagAsync) {
		return fmt.Errorf("declare %v %q as %v: %w", n, name, flags, ErrDirection)
	}
	p := newAudioPort(name, flags, n, slot, n.flow.bufferSize)
	if err := n.addPort(p); err != nil {
		return err
	}
	n.rebuildConnections()
	return nil
}

// MultiStream declares a multi input.
func (n *ScheduleNode) MultiStream(name string, slot *[][]float32) error {
	if err := n.addPort(newMultiPort(name, n, slot, n.flow.bufferSize)); err != nil {
		return err
	}
	n.rebuildConnections()
	return nil
}

// AsyncStream declares a packet port. Exactly one of FlagIn and FlagOut must
// be set.
func (n *ScheduleNode) AsyncStream(name string, flags Flags) (*AsyncPort, error) {
	if flags.Is(FlagIn) == flags.Is(FlagOut) || flags.Is(FlagMulti) {
		return nil, fmt.Errorf("declare %v %q as %v: %w", n, name, flags, ErrDirection)
	}
	p := newAsyncPort(name, flags, n, &n.flow.notify)
	if err := n.addPort(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (n *ScheduleNode) addPort(p Port) error {
	if _, ok := n.byName[p.Name()]; ok {
		return fmt.Errorf("declare %v %q: %w", n, p.Name(), ErrDuplicatePort)
	}
	dir := vport.Out
	if p.Flags().Is(FlagIn) {
		dir = vport.In
	}
	b := p.base()
	b.vid = n.flow.graph.Add(dir)
	n.flow.ports[b.vid] = p
	n.byName[p.Name()] = p
	n.ports = append(n.ports, p)
	return nil
}

// rebuildConnections partitions audio ports by direction. Called every time
// ports or multi port legs change.
func (n *ScheduleNode) rebuildConnections() {
	n.inConn = n.inConn[:0]
	n.outConn = n.outConn[:0]
	for _, p := range n.ports {
		switch p.Kind() {
		case KindAudio:
			a := p.(*AudioPort)
			if a.flags.Is(FlagIn) {
				n.inConn = append(n.inConn, a)
			} else {
				n.outConn = append(n.outConn, a)
			}
		case KindMulti:
			n.inConn = append(n.inConn, p.(*MultiPort).legs...)
		}
	}
}

// Start initializes the module on first start and starts it. Nodes
// removed from their flow system can't be started.
func (n *ScheduleNode) Start() error {
	if n.flow == nil {
		return fmt.Errorf("start %v: %w", n, ErrUnknownNode)
	}
	if n.running {
		return nil
	}
	if !n.initialized {
		if i, ok := n.module.(StreamIniter); ok {
			if err := i.StreamInit(); err != nil {
				return fmt.Errorf("init %v: %w", n, err)
			}
		}
		n.initialized = true
	}
	if s, ok := n.module.(StreamStarter); ok {
		if err := s.StreamStart(); err != nil {
			return fmt.Errorf("start %v: %w", n, err)
		}
	}
	n.running = true
	n.log.Debug("started")
	return nil
}

// Stop ends the module stream.
func (n *ScheduleNode) Stop() error {
	if !n.running {
		return nil
	}
	n.running = false
	n.needCycles = 0
	n.canPerform = 0
	if e, ok := n.module.(StreamEnder); ok {
		if err := e.StreamEnd(); err != nil {
			return fmt.Errorf("stop %v: %w", n, err)
		}
	}
	n.log.Debug("stopped")
	return nil
}

// Suspendable reports if the module tolerates suspension.
func (n *ScheduleNode) Suspendable() bool {
	return n.autoSuspend() != AutoSuspendNone
}

func (n *ScheduleNode) autoSuspend() AutoSuspendState {
	if s, ok := n.module.(AutoSuspender); ok {
		return s.AutoSuspend()
	}
	return AutoSuspendNone
}

// Suspend excludes the node from scheduling. Modules with AutoSuspendStop
// policy are stopped as well.
func (n *ScheduleNode) Suspend() error {
	state := n.autoSuspend()
	if state == AutoSuspendNone {
		return fmt.Errorf("suspend %v: %w", n, ErrNotSuspendable)
	}
	if n.suspended {
		return nil
	}
	n.suspended = true
	if state == AutoSuspendStop && n.running {
		n.stoppedBySuspend = true
		if err := n.Stop(); err != nil {
			return err
		}
	}
	n.log.WithField("policy", state).Debug("suspended")
	return nil
}

// Restart returns a suspended node to scheduling.
func (n *ScheduleNode) Restart() error {
	if !n.suspended {
		return nil
	}
	n.suspended = false
	if n.stoppedBySuspend {
		n.stoppedBySuspend = false
		if err := n.Start(); err != nil {
			return err
		}
	}
	n.log.Debug("restarted")
	return nil
}

// Request asks the node to produce amount samples and returns how many it
// produced. Producers of under-filled inputs are requested first. If the
// node is already processing a request, -1 is returned: the call came
// through a feedback loop and the outer request will retry.
//
// Request panics if the node is not running.
func (n *ScheduleNode) Request(amount int) int {
	if !n.running {
		panic(fmt.Sprintf("synthflow: request on %v which is not running", n))
	}
	n.stats.Requests++
	n.meter.Request()
	if n.busy {
		n.busyHit = true
		n.stats.BusyHits++
		n.meter.BusyHit()
		return -1
	}
	n.busy = true
	defer func() {
		n.busy = false
	}()
	if n.needCycles < amount {
		n.needCycles = amount
	}

	total := 0
	for i := 0; ; i++ {
		if i == n.flow.iterationLimit {
			n.log.WithField("need", n.needCycles).Warn("request iteration limit reached")
			break
		}
		n.busyHit = false
		n.canPerform = n.needCycles
		for _, in := range n.inConn {
			have := in.HaveIn()
			if have < n.needCycles && in.source != nil {
				if producer := in.source.node; producer != nil && producer.running {
					producer.Request(n.needCycles - have)
					have = in.HaveIn()
				}
			}
			if have < n.canPerform {
				n.canPerform = have
			}
		}
		done := n.calc(n.canPerform)
		total += done
		if !n.busyHit || n.needCycles == n.canPerform || done == 0 {
			break
		}
	}
	return total
}

// calc runs the module for at most cycles samples, limited by room of
// outputs, and commits positions of all connections.
func (n *ScheduleNode) calc(cycles int) int {
	for _, out := range n.outConn {
		if room := out.OutRoom(); room < cycles {
			cycles = room
		}
	}
	if cycles <= 0 {
		return 0
	}
	for done := 0; done < cycles; {
		run := cycles - done
		// segments can't cross the physical end of a buffer
		for _, in := range n.inConn {
			if l := len(in.readSegment(done, run)); l < run {
				run = l
			}
		}
		for _, out := range n.outConn {
			if l := len(out.writeSegment(done, run)); l < run {
				run = l
			}
		}
		for _, in := range n.inConn {
			in.install(in.readSegment(done, run))
		}
		for _, out := range n.outConn {
			out.install(out.writeSegment(done, run))
		}
		n.module.CalculateBlock(run)
		done += run
	}
	for _, in := range n.inConn {
		in.read(cycles)
	}
	for _, out := range n.outConn {
		out.write(cycles)
	}
	n.needCycles -= cycles
	n.canPerform -= cycles
	n.stats.Calcs++
	n.stats.Samples += cycles
	n.meter.Calc(cycles)
	return cycles
}

// SetFloatValue sets constant value of an unconnected audio input.
func (n *ScheduleNode) SetFloatValue(port string, v float32) error {
	p, err := n.Port(port)
	if err != nil {
		return err
	}
	a, ok := AsAudioPort(p)
	if !ok {
		return fmt.Errorf("set value of %v %q: %w", n, port, ErrDirection)
	}
	return a.SetFloatValue(v)
}

// QueryFlags returns flags of the port.
func (n *ScheduleNode) QueryFlags(port string) (Flags, error) {
	p, err := n.Port(port)
	if err != nil {
		return 0, err
	}
	return p.Flags(), nil
}

// Connect connects the port to the port of other node. Direction is
// resolved from port flags.
func (n *ScheduleNode) Connect(port string, other *ScheduleNode, otherPort string) error {
	a, b, err := n.portPair(port, other, otherPort)
	if err != nil {
		return err
	}
	if err := n.flow.graph.Connect(a.base().vid, b.base().vid); err != nil {
		return fmt.Errorf("connect %v %q to %v %q: %w", n, port, other, otherPort, graphError(err))
	}
	return nil
}

// Disconnect removes a connection made with Connect.
func (n *ScheduleNode) Disconnect(port string, other *ScheduleNode, otherPort string) error {
	a, b, err := n.portPair(port, other, otherPort)
	if err != nil {
		return err
	}
	if err := n.flow.graph.Disconnect(a.base().vid, b.base().vid); err != nil {
		return fmt.Errorf("disconnect %v %q from %v %q: %w", n, port, other, otherPort, graphError(err))
	}
	return nil
}

// Virtualize declares that the port is implemented by the port of impl.
// Ports of the same direction masquerade. An input and an output of the
// same node forward data straight through.
func (n *ScheduleNode) Virtualize(port string, impl *ScheduleNode, implPort string) error {
	a, b, err := n.portPair(port, impl, implPort)
	if err != nil {
		return err
	}
	if err := n.flow.graph.Virtualize(a.base().vid, b.base().vid); err != nil {
		return fmt.Errorf("virtualize %v %q with %v %q: %w", n, port, impl, implPort, graphError(err))
	}
	return nil
}

// Devirtualize removes a declaration made with Virtualize.
func (n *ScheduleNode) Devirtualize(port string, impl *ScheduleNode, implPort string) error {
	a, b, err := n.portPair(port, impl, implPort)
	if err != nil {
		return err
	}
	if err := n.flow.graph.Devirtualize(a.base().vid, b.base().vid); err != nil {
		return fmt.Errorf("devirtualize %v %q with %v %q: %w", n, port, impl, implPort, graphError(err))
	}
	return nil
}

func (n *ScheduleNode) portPair(port string, other *ScheduleNode, otherPort string) (Port, Port, error) {
	if other == nil || other.flow != n.flow {
		return nil, nil, fmt.Errorf("%v: %w", other, ErrUnknownNode)
	}
	a, err := n.Port(port)
	if err != nil {
		return nil, nil, err
	}
	b, err := other.Port(otherPort)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// graphError translates errors of the port graph into package errors.
func graphError(err error) error {
	var sentinel error
	switch {
	case errors.Is(err, vport.ErrDuplicate):
		sentinel = ErrAlreadyConnected
	case errors.Is(err, vport.ErrNoEdge):
		sentinel = ErrNotConnected
	case errors.Is(err, vport.ErrDirection):
		sentinel = ErrDirection
	default:
		return err
	}
	return fmt.Errorf("%v: %w", err, sentinel)
}

// sink reports if the node should be pulled directly by the scheduler.
func (n *ScheduleNode) sink() bool {
	if !n.running || n.suspended {
		return false
	}
	for _, out := range n.outConn {
		if out.destCount > 0 {
			return false
		}
	}
	return true
}
