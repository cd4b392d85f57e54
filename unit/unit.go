// Package unit provides stock synthflow modules.
package unit

import (
	"github.com/chewxy/math32"
	"github.com/viterin/vek/vek32"

	"github.com/dudk/synthflow"
)

// Constant produces Value on "out".
type Constant struct {
	Value float32
	out   []float32
}

// Declare implements synthflow.Module.
func (c *Constant) Declare(d synthflow.StreamDeclarer) error {
	return d.AudioStream("out", &c.out, synthflow.FlagOut)
}

// CalculateBlock implements synthflow.Module.
func (c *Constant) CalculateBlock(n int) {
	for i := range c.out[:n] {
		c.out[i] = c.Value
	}
}

// Sine is an oscillator. Frequency is read from "freq" input, so it can be
// either set with SetFloatValue or modulated by another module.
type Sine struct {
	SampleRate int
	Amplitude  float32
	phase      float32
	freq       []float32
	out        []float32
}

// Declare implements synthflow.Module.
func (s *Sine) Declare(d synthflow.StreamDeclarer) error {
	if err := d.AudioStream("freq", &s.freq, synthflow.FlagIn); err != nil {
		return err
	}
	return d.AudioStream("out", &s.out, synthflow.FlagOut)
}

// StreamStart resets the phase.
func (s *Sine) StreamStart() error {
	s.phase = 0
	return nil
}

// CalculateBlock implements synthflow.Module.
func (s *Sine) CalculateBlock(n int) {
	amplitude := s.Amplitude
	if amplitude == 0 {
		amplitude = 1
	}
	step := 2 * math32.Pi / float32(s.SampleRate)
	for i := 0; i < n; i++ {
		s.out[i] = amplitude * math32.Sin(s.phase)
		s.phase += step * s.freq[i]
		if s.phase >= 2*math32.Pi {
			s.phase -= 2 * math32.Pi
		}
	}
}

// Gain multiplies "in" by "gain".
type Gain struct {
	in   []float32
	gain []float32
	out  []float32
}

// Declare implements synthflow.Module.
func (g *Gain) Declare(d synthflow.StreamDeclarer) error {
	if err := d.AudioStream("in", &g.in, synthflow.FlagIn); err != nil {
		return err
	}
	if err := d.AudioStream("gain", &g.gain, synthflow.FlagIn); err != nil {
		return err
	}
	return d.AudioStream("out", &g.out, synthflow.FlagOut)
}

// CalculateBlock implements synthflow.Module.
func (g *Gain) CalculateBlock(n int) {
	vek32.Mul_Into(g.out[:n], g.in[:n], g.gain[:n])
}

// AutoSuspend allows to stop gain stages nobody listens to.
func (g *Gain) AutoSuspend() synthflow.AutoSuspendState {
	return synthflow.AutoSuspendStop
}

// Bypass passes "in" to "out" without any processing. It's useful as a
// virtual port holder: forward its input to its output and connect it in
// place of a module which is not there yet.
type Bypass struct {
	in  []float32
	out []float32
}

// Declare implements synthflow.Module.
func (b *Bypass) Declare(d synthflow.StreamDeclarer) error {
	if err := d.AudioStream("in", &b.in, synthflow.FlagIn); err != nil {
		return err
	}
	return d.AudioStream("out", &b.out, synthflow.FlagOut)
}

// CalculateBlock implements synthflow.Module.
func (b *Bypass) CalculateBlock(n int) {
	copy(b.out[:n], b.in[:n])
}
