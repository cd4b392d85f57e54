// Package signal provides helpers to convert sample blocks. It allows to:
// 	- convert interleaved int data to non-interleaved float32 channels
//	- convert float32 channels to interleaved int data of given bit depth
//	- calculate duration of a number of samples
package signal

import (
	"math"
	"time"
)

// Float32 is a non-interleaved float32 signal.
type Float32 [][]float32

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// InterInt is an interleaved int signal.
type InterInt struct {
	Data        []int
	NumChannels int
	BitDepth
}

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// devider is used when int to float conversion is done.
func (bitDepth BitDepth) devider() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return 1<<23 - 1
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float to int conversion is done.
func (bitDepth BitDepth) multiplier() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8 - 1
	case BitDepth16:
		return math.MaxInt16 - 1
	case BitDepth24:
		return 1<<23 - 2
	case BitDepth32:
		return math.MaxInt32 - 1
	default:
		return 1
	}
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// SamplesIn returns number of samples in duration for this sample rate.
func SamplesIn(sampleRate int, d time.Duration) int {
	return int(math.Round(d.Seconds() * float64(sampleRate)))
}

// AsFloat32 converts interleaved int signal to float32.
func (ints InterInt) AsFloat32() Float32 {
	if ints.Data == nil || ints.NumChannels == 0 {
		return nil
	}
	floats := make([][]float32, ints.NumChannels)
	bufSize := int(math.Ceil(float64(len(ints.Data)) / float64(ints.NumChannels)))

	// determine the devider for bit depth conversion
	devider := float32(ints.BitDepth.devider())

	for i := range floats {
		floats[i] = make([]float32, bufSize)
		pos := 0
		for j := i; j < len(ints.Data); j = j + ints.NumChannels {
			floats[i][pos] = float32(ints.Data[j]) / devider
			pos++
		}
	}
	return floats
}

// AsInterInt converts float32 signal to interleaved int. Values outside of
// [-1, 1] are clipped.
func (floats Float32) AsInterInt(bitDepth BitDepth) []int {
	var numChannels int
	if numChannels = len(floats); numChannels == 0 {
		return nil
	}

	// determine the multiplier for bit depth conversion
	multiplier := float32(bitDepth.multiplier())

	ints := make([]int, floats.Size()*numChannels)
	for j := range floats {
		for i := 0; i < floats.Size() && i < len(floats[j]); i++ {
			v := floats[j][i]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			ints[i*numChannels+j] = int(v * multiplier)
		}
	}
	return ints
}

// EmptyFloat32 returns an empty buffer of specified dimentions.
func EmptyFloat32(numChannels int, bufferSize int) Float32 {
	result := make([][]float32, numChannels)
	for i := range result {
		result[i] = make([]float32, bufferSize)
	}
	return result
}

// NumChannels returns number of channels in this sample slice
func (floats Float32) NumChannels() int {
	return len(floats)
}

// Size returns number of samples in single block in this sample slice
func (floats Float32) Size() int {
	if floats.NumChannels() == 0 {
		return 0
	}
	return len(floats[0])
}

// Append buffers set to existing one one
// new buffer is returned if b is nil
func (floats Float32) Append(source Float32) Float32 {
	if floats == nil {
		floats = make([][]float32, source.NumChannels())
		for i := range floats {
			floats[i] = make([]float32, 0, source.Size())
		}
	}
	for i := range source {
		floats[i] = append(floats[i], source[i]...)
	}
	return floats
}
