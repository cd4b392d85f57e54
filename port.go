package synthflow

import (
	"strings"

	"github.com/dudk/synthflow/internal/vport"
)

// Flags describe a port.
type Flags uint

const (
	// FlagIn marks an input.
	FlagIn Flags = 1 << iota
	// FlagOut marks an output.
	FlagOut
	// FlagMulti marks an input accepting any number of sources.
	FlagMulti
	// FlagAsync marks a packet stream.
	FlagAsync
)

// Is reports if all flags in o are set.
func (f Flags) Is(o Flags) bool {
	return f&o == o
}

func (f Flags) String() string {
	var s []string
	if f.Is(FlagIn) {
		s = append(s, "in")
	}
	if f.Is(FlagOut) {
		s = append(s, "out")
	}
	if f.Is(FlagMulti) {
		s = append(s, "multi")
	}
	if f.Is(FlagAsync) {
		s = append(s, "async")
	}
	return strings.Join(s, "|")
}

// Kind tags the port variant.
type Kind uint8

const (
	// KindAudio is an AudioPort.
	KindAudio Kind = iota + 1
	// KindMulti is a MultiPort.
	KindMulti
	// KindAsync is an AsyncPort.
	KindAsync
)

// Port is an endpoint owned by a node. Connect and Disconnect are called on
// the consuming port with the producing one.
type Port interface {
	Name() string
	Flags() Flags
	Kind() Kind
	Node() *ScheduleNode
	// Connections returns ports this port is connected to.
	Connections() []Port
	Connect(source Port) error
	Disconnect(source Port) error
	base() *portBase
}

// AsAudioPort returns the port as an AudioPort if it is one.
func AsAudioPort(p Port) (*AudioPort, bool) {
	if p == nil || p.Kind() != KindAudio {
		return nil, false
	}
	a, ok := p.(*AudioPort)
	return a, ok
}

// AsMultiPort returns the port as a MultiPort if it is one.
func AsMultiPort(p Port) (*MultiPort, bool) {
	if p == nil || p.Kind() != KindMulti {
		return nil, false
	}
	m, ok := p.(*MultiPort)
	return m, ok
}

// AsAsyncPort returns the port as an AsyncPort if it is one.
func AsAsyncPort(p Port) (*AsyncPort, bool) {
	if p == nil || p.Kind() != KindAsync {
		return nil, false
	}
	a, ok := p.(*AsyncPort)
	return a, ok
}

// portBase keeps what all ports share. Every connection is registered on
// both ends in peers, so either side can tear it down.
type portBase struct {
	name  string
	flags Flags
	node  *ScheduleNode
	vid   vport.ID
	peers []Port
}

// Name returns the port name.
func (b *portBase) Name() string {
	return b.name
}

// Flags returns the port flags.
func (b *portBase) Flags() Flags {
	return b.flags
}

// Node returns the owning node.
func (b *portBase) Node() *ScheduleNode {
	return b.node
}

// Connections returns connected ports.
func (b *portBase) Connections() []Port {
	return append([]Port(nil), b.peers...)
}

func (b *portBase) base() *portBase {
	return b
}

func (b *portBase) addPeer(p Port) {
	b.peers = append(b.peers, p)
}

func (b *portBase) removePeer(p Port) bool {
	for i := range b.peers {
		if b.peers[i] == p {
			b.peers = append(b.peers[:i], b.peers[i+1:]...)
			return true
		}
	}
	return false
}

// pair registers a connection on both ends.
func pair(consumer, producer Port) {
	consumer.base().addPeer(producer)
	producer.base().addPeer(consumer)
}

// unpair removes a connection from both ends.
func unpair(consumer, producer Port) {
	consumer.base().removePeer(producer)
	producer.base().removePeer(consumer)
}

// disconnectAll tears down every connection of the port.
func disconnectAll(p Port) error {
	var errs execErrors
	for _, peer := range p.Connections() {
		var err error
		if p.Flags().Is(FlagIn) {
			err = p.Disconnect(peer)
		} else {
			err = peer.Disconnect(p)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs.ret()
}
