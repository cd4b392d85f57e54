package synthflow

import (
	"fmt"

	"github.com/dudk/synthflow/internal/notify"
)

// notification ids of async ports.
const (
	// packet delivered to a consumer
	notifyPacket = iota + 1
	// empty packet handed to a pull mode producer
	notifyRequest
)

// Packet is a block of async data. It's alive until every subscriber
// that got it called Processed.
type Packet struct {
	Contents []byte
	// Size is the number of valid bytes in Contents.
	Size     int
	port     *AsyncPort
	useCount int
}

// Data returns valid bytes of the packet.
func (p *Packet) Data() []byte {
	return p.Contents[:p.Size]
}

// UseCount returns number of subscribers which didn't process the packet.
func (p *Packet) UseCount() int {
	return p.useCount
}

// Processed releases the packet for one subscriber.
func (p *Packet) Processed() {
	if p.useCount <= 0 {
		panic("synthflow: packet processed more times than sent")
	}
	p.useCount--
	if p.useCount == 0 {
		p.port.free(p)
	}
}

// AsyncStats counts packets of an async output.
type AsyncStats struct {
	Allocated int
	Sent      int
	Freed     int
	Recycled  int
}

// AsyncPort is a packet stream endpoint. Packets are delivered to
// subscribers with notifications instead of shared ring buffers.
type AsyncPort struct {
	portBase
	manager     *notify.Manager
	subscribers []notify.Receiver
	// pull mode keeps a fixed pool of packets cycling through the producer
	pull     bool
	capacity int
	stats    AsyncStats
}

func newAsyncPort(name string, flags Flags, node *ScheduleNode, manager *notify.Manager) *AsyncPort {
	return &AsyncPort{
		portBase: portBase{
			name:  name,
			flags: flags | FlagAsync,
			node:  node,
		},
		manager: manager,
	}
}

// Kind returns KindAsync.
func (a *AsyncPort) Kind() Kind {
	return KindAsync
}

// Stats returns packet counters of an output.
func (a *AsyncPort) Stats() AsyncStats {
	return a.stats
}

// Subscribers returns number of receivers of an output.
func (a *AsyncPort) Subscribers() int {
	return len(a.subscribers)
}

// Allocate returns a new packet with capacity bytes.
func (a *AsyncPort) Allocate(capacity int) *Packet {
	a.stats.Allocated++
	return &Packet{
		Contents: make([]byte, capacity),
		port:     a,
	}
}

// Send delivers size bytes of the packet to every subscriber. A packet
// without subscribers is released immediately.
func (a *AsyncPort) Send(p *Packet, size int) {
	if size > len(p.Contents) {
		size = len(p.Contents)
	}
	p.Size = size
	p.useCount = len(a.subscribers)
	a.stats.Sent++
	if p.useCount == 0 {
		a.free(p)
		return
	}
	for _, s := range a.subscribers {
		a.manager.Send(notify.Notification{Receiver: s, ID: notifyPacket, Data: p})
	}
}

// SetPull switches the output to pull mode: packets packets of capacity
// bytes are allocated once and handed to the producing module every time
// they are free.
func (a *AsyncPort) SetPull(packets, capacity int) {
	a.pull = true
	a.capacity = capacity
	for i := 0; i < packets; i++ {
		a.recycle(a.Allocate(capacity))
	}
}

func (a *AsyncPort) free(p *Packet) {
	if a.pull {
		a.recycle(p)
		return
	}
	a.stats.Freed++
}

func (a *AsyncPort) recycle(p *Packet) {
	a.stats.Recycled++
	p.Size = 0
	a.manager.Send(notify.Notification{Receiver: a, ID: notifyRequest, Data: p})
}

// Notify hands packets to the module. Inputs get delivered packets,
// pull mode outputs get empty packets to fill.
func (a *AsyncPort) Notify(n notify.Notification) {
	p, ok := n.Data.(*Packet)
	if !ok {
		return
	}
	var module Module
	if a.node != nil {
		module = a.node.module
	}
	switch n.ID {
	case notifyPacket:
		if pp, ok := module.(PacketProcessor); ok {
			pp.ProcessPacket(a.name, p)
			return
		}
		p.Processed()
	case notifyRequest:
		if pr, ok := module.(PacketRequester); ok {
			pr.RequestPacket(a.name, p)
		}
	}
}

// Connect subscribes the input to source.
func (a *AsyncPort) Connect(source Port) error {
	src, ok := AsAsyncPort(source)
	if !ok || !a.flags.Is(FlagIn) || !src.flags.Is(FlagOut) {
		return fmt.Errorf("connect %v to %v: %w", portName(source), a.name, ErrDirection)
	}
	for _, s := range src.subscribers {
		if s == notify.Receiver(a) {
			return fmt.Errorf("connect %v to %v: %w", src.name, a.name, ErrAlreadyConnected)
		}
	}
	src.subscribe(a)
	pair(a, src)
	return nil
}

// Disconnect unsubscribes the input from source. Packets which weren't
// delivered yet are released.
func (a *AsyncPort) Disconnect(source Port) error {
	src, ok := AsAsyncPort(source)
	if !ok || !src.unsubscribe(a) {
		return fmt.Errorf("disconnect %v from %v: %w", portName(source), a.name, ErrNotConnected)
	}
	unpair(a, src)
	return nil
}

func (a *AsyncPort) subscribe(r notify.Receiver) {
	a.subscribers = append(a.subscribers, r)
}

func (a *AsyncPort) unsubscribe(r notify.Receiver) bool {
	for i, s := range a.subscribers {
		if s != r {
			continue
		}
		a.subscribers = append(a.subscribers[:i], a.subscribers[i+1:]...)
		removed := a.manager.RemoveFunc(func(n notify.Notification) bool {
			p, ok := n.Data.(*Packet)
			return ok && n.Receiver == r && n.ID == notifyPacket && p.port == a
		})
		for _, n := range removed {
			n.Data.(*Packet).Processed()
		}
		return true
	}
	return false
}

// Receiver accepts packet data on the other side of a process boundary.
type Receiver interface {
	Receive(port string, data []byte) error
}

// netSender subscribes a remote receiver to an async output.
type netSender struct {
	receiver Receiver
	port     string
	flow     *FlowSystem
}

// Notify passes a copy of the packet data to the remote side.
func (s *netSender) Notify(n notify.Notification) {
	p, ok := n.Data.(*Packet)
	if !ok {
		return
	}
	data := make([]byte, p.Size)
	copy(data, p.Data())
	if err := s.receiver.Receive(s.port, data); err != nil {
		s.flow.log.WithError(err).WithField("port", s.port).Warn("remote receive failed")
	}
	p.Processed()
}
