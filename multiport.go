package synthflow

import "fmt"

// MultiPort is an input accepting any number of sources. Every source gets
// a private leg AudioPort and the module sees one slice per leg.
type MultiPort struct {
	portBase
	slot *[][]float32
	legs []*AudioPort
	data [][]float32
	size int
	// seq numbers legs, so their names stay unique.
	seq int
}

func newMultiPort(name string, node *ScheduleNode, slot *[][]float32, size int) *MultiPort {
	m := &MultiPort{
		portBase: portBase{
			name:  name,
			flags: FlagIn | FlagMulti,
			node:  node,
		},
		slot: slot,
		size: size,
	}
	m.register()
	return m
}

// Kind returns KindMulti.
func (m *MultiPort) Kind() Kind {
	return KindMulti
}

// Legs returns the dynamic ports in connection order.
func (m *MultiPort) Legs() []*AudioPort {
	return append([]*AudioPort(nil), m.legs...)
}

// Connections returns sources of all legs.
func (m *MultiPort) Connections() []Port {
	sources := make([]Port, 0, len(m.legs))
	for _, leg := range m.legs {
		sources = append(sources, leg.source)
	}
	return sources
}

// Connect adds a leg reading from source.
func (m *MultiPort) Connect(source Port) error {
	src, ok := AsAudioPort(source)
	if !ok || !src.flags.Is(FlagOut) {
		return fmt.Errorf("connect %v to %v: %w", portName(source), m.name, ErrDirection)
	}
	for _, leg := range m.legs {
		if leg.source == src {
			return fmt.Errorf("connect %v to %v: %w", src.name, m.name, ErrAlreadyConnected)
		}
	}
	m.seq++
	leg := newAudioPort(fmt.Sprintf("%s_%d", m.name, m.seq), FlagIn, m.node, nil, m.size)
	leg.multi = m
	leg.connectSource(src)
	m.legs = append(m.legs, leg)
	m.register()
	if m.node != nil {
		m.node.rebuildConnections()
	}
	return nil
}

// Disconnect removes the leg reading from source.
func (m *MultiPort) Disconnect(source Port) error {
	src, ok := AsAudioPort(source)
	if ok {
		for i, leg := range m.legs {
			if leg.source != src {
				continue
			}
			leg.disconnectSource()
			m.legs = append(m.legs[:i], m.legs[i+1:]...)
			m.register()
			if m.node != nil {
				m.node.rebuildConnections()
			}
			return nil
		}
	}
	return fmt.Errorf("disconnect %v from %v: %w", portName(source), m.name, ErrNotConnected)
}

// register rebuilds the slices exposed to the module and points every leg
// to its element.
func (m *MultiPort) register() {
	m.data = make([][]float32, len(m.legs))
	for i, leg := range m.legs {
		leg.slot = &m.data[i]
	}
	if m.slot != nil {
		*m.slot = m.data
	}
}
