package synthflow

// Module is the computation scheduled by a node. Declare is called once when
// the module is added to a flow system. CalculateBlock computes n samples
// into the slots previously declared; slots are valid only for the duration
// of the call.
type Module interface {
	Declare(StreamDeclarer) error
	CalculateBlock(n int)
}

// StreamDeclarer creates ports of a node.
type StreamDeclarer interface {
	// AudioStream declares an input or output sample stream. The current
	// segment is installed into slot before every CalculateBlock call.
	AudioStream(name string, slot *[]float32, flags Flags) error
	// MultiStream declares an input accepting any number of sources. One
	// slice per connected source is installed into slot.
	MultiStream(name string, slot *[][]float32) error
	// AsyncStream declares a packet stream.
	AsyncStream(name string, flags Flags) (*AsyncPort, error)
}

// StreamIniter is called when the node is started for the first time.
type StreamIniter interface {
	StreamInit() error
}

// StreamStarter is called every time the node is started.
type StreamStarter interface {
	StreamStart() error
}

// StreamEnder is called every time the node is stopped.
type StreamEnder interface {
	StreamEnd() error
}

// AutoSuspendState tells how a module tolerates suspension.
type AutoSuspendState int

const (
	// AutoSuspendNone modules can't be suspended.
	AutoSuspendNone AutoSuspendState = iota
	// AutoSuspendStop modules are stopped when suspended and started on restart.
	AutoSuspendStop
	// AutoSuspendInPlace modules are skipped by the scheduler, but keep running.
	AutoSuspendInPlace
)

func (s AutoSuspendState) String() string {
	switch s {
	case AutoSuspendStop:
		return "stop"
	case AutoSuspendInPlace:
		return "in place"
	default:
		return "none"
	}
}

// AutoSuspender reports suspension policy of a module. Modules which don't
// implement it are never suspended.
type AutoSuspender interface {
	AutoSuspend() AutoSuspendState
}

// PacketProcessor receives packets of async inputs. Module must call
// Processed on every packet it got. Packets of modules without this
// interface are released right away.
type PacketProcessor interface {
	ProcessPacket(port string, p *Packet)
}

// PacketRequester fills empty packets of pull mode async outputs.
type PacketRequester interface {
	RequestPacket(port string, p *Packet)
}

// Object is anything connections can be made to.
type Object interface {
	Node() *ScheduleNode
}

// RemoteObject lives behind a process boundary. It has no node in this flow
// system and only accepts async packets.
type RemoteObject interface {
	Object
	Receiver
}
