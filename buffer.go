package synthflow

import "fmt"

// SynthBuffer is a fixed size ring of samples shared by one producer and
// its consumers. Position counts samples ever written and never wraps,
// only indexing is masked.
type SynthBuffer struct {
	data     []float32
	mask     int
	position int64
	// needRead is the sum of samples every consumer still has to read.
	needRead int
}

// NewSynthBuffer returns a buffer filled with value. Size is rounded up to
// the next power of two.
func NewSynthBuffer(value float32, size int) *SynthBuffer {
	actual := ringSize(size)
	b := &SynthBuffer{
		data: make([]float32, actual),
		mask: actual - 1,
	}
	b.SetValue(value)
	return b
}

// ringSize rounds size up to the next power of two.
func ringSize(size int) int {
	actual := 1
	for actual < size {
		actual <<= 1
	}
	return actual
}

// SetValue fills the whole buffer with value.
func (b *SynthBuffer) SetValue(value float32) {
	for i := range b.data {
		b.data[i] = value
	}
}

// Size returns capacity of the buffer.
func (b *SynthBuffer) Size() int {
	return len(b.data)
}

// Position returns number of samples ever written.
func (b *SynthBuffer) Position() int64 {
	return b.position
}

// NeedRead returns outstanding read obligation of all consumers.
func (b *SynthBuffer) NeedRead() int {
	return b.needRead
}

// Room returns number of samples which can be written without overrun.
func (b *SynthBuffer) Room() int {
	return len(b.data) - b.needRead
}

// segment returns the contiguous run of at most n samples starting at
// the logical position. The run never crosses the physical end.
func (b *SynthBuffer) segment(pos int64, n int) []float32 {
	start := int(pos & int64(b.mask))
	if start+n > len(b.data) {
		n = len(b.data) - start
	}
	return b.data[start : start+n]
}

func (b *SynthBuffer) owe(n int) {
	b.needRead += n
	if b.needRead > len(b.data) {
		panic(fmt.Sprintf("synthflow: buffer overrun: need read %d of %d", b.needRead, len(b.data)))
	}
}

func (b *SynthBuffer) settle(n int) {
	b.needRead -= n
	if b.needRead < 0 {
		panic(fmt.Sprintf("synthflow: buffer underrun: need read %d", b.needRead))
	}
}
