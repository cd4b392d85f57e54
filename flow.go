package synthflow

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dudk/synthflow/internal/notify"
	"github.com/dudk/synthflow/internal/vport"
	"github.com/dudk/synthflow/log"
)

const (
	defaultBufferSize     = 1024
	defaultSampleRate     = 44100
	defaultIterationLimit = 10000
)

// Pass is the result of a schedule pass.
type Pass struct {
	// Done is number of samples produced by every pulled sink.
	Done map[*ScheduleNode]int
	// Iterations is number of scans over nodes.
	Iterations int
}

// FlowSystem owns nodes and schedules them. It is not safe for concurrent
// use, see driver package for real-time use.
type FlowSystem struct {
	nodes   []*ScheduleNode
	graph   *vport.Graph
	ports   map[vport.ID]Port
	notify  notify.Manager
	remotes map[remoteKey]*netSender

	bufferSize     int
	sampleRate     int
	iterationLimit int
	metrics        bool
	log            logrus.FieldLogger
}

type remoteKey struct {
	port   *AsyncPort
	remote RemoteObject
	name   string
}

// New returns a flow system with applied options.
func New(options ...Option) *FlowSystem {
	f := &FlowSystem{
		ports:          make(map[vport.ID]Port),
		remotes:        make(map[remoteKey]*netSender),
		bufferSize:     defaultBufferSize,
		sampleRate:     defaultSampleRate,
		iterationLimit: defaultIterationLimit,
		log:            log.GetLogger(),
	}
	f.graph = vport.New(transporter{f})
	for _, option := range options {
		option(f)
	}
	return f
}

// BufferSize returns ring buffer size of audio ports.
func (f *FlowSystem) BufferSize() int {
	return ringSize(f.bufferSize)
}

// SampleRate returns the sample rate modules are scheduled with.
func (f *FlowSystem) SampleRate() int {
	return f.sampleRate
}

// Nodes returns all nodes in the order they were added.
func (f *FlowSystem) Nodes() []*ScheduleNode {
	return append([]*ScheduleNode(nil), f.nodes...)
}

// AddObject creates a node for the module and lets it declare its streams.
func (f *FlowSystem) AddObject(m Module) (*ScheduleNode, error) {
	n := newScheduleNode(f, m)
	f.nodes = append(f.nodes, n)
	if err := m.Declare(n); err != nil {
		if rerr := f.RemoveObject(n); rerr != nil {
			n.log.WithError(rerr).Warn("remove after failed declare")
		}
		return nil, fmt.Errorf("declare %v: %w", n, err)
	}
	n.log.WithField("ports", len(n.ports)).Debug("added")
	return n, nil
}

// RemoveObject stops the node and disconnects all its ports.
func (f *FlowSystem) RemoveObject(o Object) error {
	n, err := f.node(o)
	if err != nil {
		return err
	}
	var errs execErrors
	if err := n.Stop(); err != nil {
		errs = append(errs, err)
	}
	for _, p := range n.ports {
		if a, ok := AsAsyncPort(p); ok {
			for key, s := range f.remotes {
				if key.port == a {
					a.unsubscribe(s)
					delete(f.remotes, key)
				}
			}
		}
		vid := p.base().vid
		if err := f.graph.Remove(vid); err != nil {
			errs = append(errs, err)
		}
		delete(f.ports, vid)
		// transports owned by other declarations are gone with the vertex,
		// whatever is still paired was connected outside of the graph
		if err := disconnectAll(p); err != nil {
			errs = append(errs, err)
		}
		if r, ok := p.(notify.Receiver); ok {
			for _, pending := range f.notify.Remove(r) {
				if pk, ok := pending.Data.(*Packet); ok && pending.ID == notifyPacket {
					pk.Processed()
				}
			}
		}
	}
	for i := range f.nodes {
		if f.nodes[i] == n {
			f.nodes = append(f.nodes[:i], f.nodes[i+1:]...)
			break
		}
	}
	n.flow = nil
	n.log.Debug("removed")
	return errs.ret()
}

// StartObject starts the node.
func (f *FlowSystem) StartObject(o Object) error {
	n, err := f.node(o)
	if err != nil {
		return err
	}
	return n.Start()
}

// StopObject stops the node.
func (f *FlowSystem) StopObject(o Object) error {
	n, err := f.node(o)
	if err != nil {
		return err
	}
	return n.Stop()
}

// ConnectObject connects sourcePort of source with destPort of dest. If
// dest has no node in this flow system, it must be a RemoteObject and the
// source port an async output: packets are passed to the remote receiver.
func (f *FlowSystem) ConnectObject(source Object, sourcePort string, dest Object, destPort string) error {
	src, err := f.node(source)
	if err != nil {
		return fmt.Errorf("connect %q: %w", sourcePort, ErrRemoteSource)
	}
	if dst, err := f.node(dest); err == nil {
		return src.Connect(sourcePort, dst, destPort)
	}
	a, remote, err := f.remotePair(src, sourcePort, dest)
	if err != nil {
		return err
	}
	key := remoteKey{port: a, remote: remote, name: destPort}
	if _, ok := f.remotes[key]; ok {
		return fmt.Errorf("connect %v %q to remote %q: %w", src, sourcePort, destPort, ErrAlreadyConnected)
	}
	s := &netSender{receiver: remote, port: destPort, flow: f}
	f.remotes[key] = s
	a.subscribe(s)
	src.log.WithFields(logrus.Fields{"port": sourcePort, "remote": destPort}).Debug("connected remote")
	return nil
}

// DisconnectObject removes a connection made with ConnectObject.
func (f *FlowSystem) DisconnectObject(source Object, sourcePort string, dest Object, destPort string) error {
	src, err := f.node(source)
	if err != nil {
		return fmt.Errorf("disconnect %q: %w", sourcePort, ErrRemoteSource)
	}
	if dst, err := f.node(dest); err == nil {
		return src.Disconnect(sourcePort, dst, destPort)
	}
	a, remote, err := f.remotePair(src, sourcePort, dest)
	if err != nil {
		return err
	}
	key := remoteKey{port: a, remote: remote, name: destPort}
	s, ok := f.remotes[key]
	if !ok {
		return fmt.Errorf("disconnect %v %q from remote %q: %w", src, sourcePort, destPort, ErrNotConnected)
	}
	a.unsubscribe(s)
	delete(f.remotes, key)
	return nil
}

func (f *FlowSystem) remotePair(src *ScheduleNode, sourcePort string, dest Object) (*AsyncPort, RemoteObject, error) {
	remote, ok := dest.(RemoteObject)
	if !ok {
		return nil, nil, fmt.Errorf("connect %v %q: %w", src, sourcePort, ErrUnknownNode)
	}
	p, err := src.Port(sourcePort)
	if err != nil {
		return nil, nil, err
	}
	a, ok := AsAsyncPort(p)
	if !ok {
		return nil, nil, fmt.Errorf("connect %v %q: %w", src, sourcePort, ErrRemoteAudio)
	}
	if !a.flags.Is(FlagOut) {
		return nil, nil, fmt.Errorf("connect %v %q: %w", src, sourcePort, ErrDirection)
	}
	return a, remote, nil
}

// VirtualizeObject declares that port of o is implemented by implPort of impl.
func (f *FlowSystem) VirtualizeObject(o Object, port string, impl Object, implPort string) error {
	n, err := f.node(o)
	if err != nil {
		return err
	}
	in, err := f.node(impl)
	if err != nil {
		return err
	}
	return n.Virtualize(port, in, implPort)
}

// DevirtualizeObject removes a declaration made with VirtualizeObject.
func (f *FlowSystem) DevirtualizeObject(o Object, port string, impl Object, implPort string) error {
	n, err := f.node(o)
	if err != nil {
		return err
	}
	in, err := f.node(impl)
	if err != nil {
		return err
	}
	return n.Devirtualize(port, in, implPort)
}

// QueryFlags returns flags of the port.
func (f *FlowSystem) QueryFlags(o Object, port string) (Flags, error) {
	n, err := f.node(o)
	if err != nil {
		return 0, err
	}
	return n.QueryFlags(port)
}

// SetFloatValue sets constant value of an unconnected audio input.
func (f *FlowSystem) SetFloatValue(o Object, port string, v float32) error {
	n, err := f.node(o)
	if err != nil {
		return err
	}
	return n.SetFloatValue(port, v)
}

// Suspendable reports if the node tolerates suspension.
func (f *FlowSystem) Suspendable(o Object) bool {
	n, err := f.node(o)
	if err != nil {
		return false
	}
	return n.Suspendable()
}

// Suspend excludes the node from scheduling.
func (f *FlowSystem) Suspend(o Object) error {
	n, err := f.node(o)
	if err != nil {
		return err
	}
	return n.Suspend()
}

// Restart returns a suspended node to scheduling.
func (f *FlowSystem) Restart(o Object) error {
	n, err := f.node(o)
	if err != nil {
		return err
	}
	return n.Restart()
}

// Schedule pulls samples from every sink: running, not suspended nodes
// without consumers on their outputs. Sinks are scanned until all of them
// produced samples or the iteration limit is reached. In the latter case
// ErrSchedulerConfusion is returned along with what was done. Pending
// packets are delivered before and after the pass. Packets sent or
// recycled during delivery wait for the next one.
func (f *FlowSystem) Schedule(samples int) (Pass, error) {
	pass := Pass{Done: make(map[*ScheduleNode]int)}
	f.DeliverPackets()
	defer f.DeliverPackets()
	for {
		if pass.Iterations == f.iterationLimit {
			f.log.WithFields(logrus.Fields{
				"samples":    samples,
				"iterations": pass.Iterations,
			}).Warn(ErrSchedulerConfusion.Error())
			return pass, ErrSchedulerConfusion
		}
		pass.Iterations++
		pending := false
		for _, n := range f.nodes {
			if !n.sink() || pass.Done[n] >= samples {
				continue
			}
			if done := n.Request(samples - pass.Done[n]); done > 0 {
				pass.Done[n] += done
			}
			if pass.Done[n] < samples {
				pending = true
			}
		}
		if !pending {
			return pass, nil
		}
	}
}

// DeliverPackets delivers async notifications pending at the call and
// returns their number.
func (f *FlowSystem) DeliverPackets() int {
	return f.notify.Run()
}

// Transports returns compiled connections as pairs of output and input ports.
func (f *FlowSystem) Transports() [][2]Port {
	pairs := f.graph.Transports()
	ports := make([][2]Port, 0, len(pairs))
	for _, p := range pairs {
		ports = append(ports, [2]Port{f.ports[p.Source], f.ports[p.Dest]})
	}
	return ports
}

func (f *FlowSystem) node(o Object) (*ScheduleNode, error) {
	if o == nil {
		return nil, ErrUnknownNode
	}
	n := o.Node()
	if n == nil || n.flow != f {
		return nil, ErrUnknownNode
	}
	return n, nil
}

// transporter applies compiled graph edges to real ports.
type transporter struct {
	f *FlowSystem
}

func (t transporter) Connect(source, dest vport.ID) error {
	src, dst, err := t.ports(source, dest)
	if err != nil {
		return err
	}
	t.f.log.WithFields(logrus.Fields{
		"source": src.Name(),
		"dest":   dst.Name(),
	}).Debug("connect transport")
	return dst.Connect(src)
}

func (t transporter) Disconnect(source, dest vport.ID) error {
	src, dst, err := t.ports(source, dest)
	if err != nil {
		return err
	}
	t.f.log.WithFields(logrus.Fields{
		"source": src.Name(),
		"dest":   dst.Name(),
	}).Debug("disconnect transport")
	return dst.Disconnect(src)
}

func (t transporter) ports(source, dest vport.ID) (Port, Port, error) {
	src, ok := t.f.ports[source]
	if !ok {
		return nil, nil, fmt.Errorf("transport source %d: %w", source, ErrNoSuchPort)
	}
	dst, ok := t.f.ports[dest]
	if !ok {
		return nil, nil, fmt.Errorf("transport dest %d: %w", dest, ErrNoSuchPort)
	}
	return src, dst, nil
}
