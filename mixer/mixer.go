// Package mixer provides a module which mixes any number of signals.
package mixer

import (
	"github.com/viterin/vek/vek32"

	"github.com/dudk/synthflow"
)

// Mixer averages signals connected to "in" into "out". Every connection to
// "in" adds a new signal, so the number of mixed signals changes with the
// graph.
type Mixer struct {
	// Sum disables averaging.
	Sum bool
	in  [][]float32
	out []float32
}

// Declare implements synthflow.Module.
func (m *Mixer) Declare(d synthflow.StreamDeclarer) error {
	if err := d.MultiStream("in", &m.in); err != nil {
		return err
	}
	return d.AudioStream("out", &m.out, synthflow.FlagOut)
}

// CalculateBlock implements synthflow.Module.
func (m *Mixer) CalculateBlock(n int) {
	out := m.out[:n]
	if len(m.in) == 0 {
		for i := range out {
			out[i] = 0
		}
		return
	}
	copy(out, m.in[0][:n])
	for _, in := range m.in[1:] {
		vek32.Add_Inplace(out, in[:n])
	}
	if !m.Sum && len(m.in) > 1 {
		vek32.MulNumber_Inplace(out, 1/float32(len(m.in)))
	}
}

// Signals returns number of currently mixed signals.
func (m *Mixer) Signals() int {
	return len(m.in)
}
