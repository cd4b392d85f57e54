// Package wav provides modules reading and writing wav files.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/dudk/synthflow"
	"github.com/dudk/synthflow/signal"
)

// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
var ErrUnsupportedBitDepth = errors.New("only 16 and 32 bit depth is supported")

// ChannelPort returns the name of the port for channel.
func ChannelPort(channel int) string {
	return fmt.Sprintf("ch%d", channel)
}

type (
	// Source reads wav file and produces one output per channel. Once the
	// file is read, outputs produce silence.
	Source struct {
		file        *os.File
		decoder     *wav.Decoder
		buffer      *audio.IntBuffer
		numChannels int
		sampleRate  int
		bitDepth    signal.BitDepth
		out         [][]float32
		pending     signal.Float32
		read        int
		done        bool
		err         error
	}

	// Sink saves signal of its inputs, one per channel, to wav file.
	Sink struct {
		path        string
		numChannels int
		sampleRate  int
		bitDepth    signal.BitDepth
		file        *os.File
		encoder     *wav.Encoder
		in          [][]float32
		written     int
		err         error
	}
)

// NewSource opens wav file.
func NewSource(path string) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		if err := file.Close(); err != nil {
			return nil, fmt.Errorf("wav %v is not valid, failed to close the file: %w", path, err)
		}
		return nil, fmt.Errorf("wav %v is not valid", path)
	}
	bitDepth := signal.BitDepth(decoder.BitDepth)
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth32 {
		if err := file.Close(); err != nil {
			return nil, err
		}
		return nil, ErrUnsupportedBitDepth
	}
	numChannels := decoder.Format().NumChannels
	return &Source{
		file:        file,
		decoder:     decoder,
		numChannels: numChannels,
		sampleRate:  int(decoder.SampleRate),
		bitDepth:    bitDepth,
		out:         make([][]float32, numChannels),
		pending:     signal.EmptyFloat32(numChannels, 0),
		buffer: &audio.IntBuffer{
			Format:         decoder.Format(),
			SourceBitDepth: int(decoder.BitDepth),
		},
	}, nil
}

// NumChannels returns number of channels in the file.
func (s *Source) NumChannels() int {
	return s.numChannels
}

// SampleRate returns sample rate of the file.
func (s *Source) SampleRate() int {
	return s.sampleRate
}

// Done reports if the whole file was read.
func (s *Source) Done() bool {
	return s.done
}

// Read returns number of samples read from the file.
func (s *Source) Read() int {
	return s.read
}

// Err returns the first error occurred while reading.
func (s *Source) Err() error {
	return s.err
}

// Declare implements synthflow.Module.
func (s *Source) Declare(d synthflow.StreamDeclarer) error {
	for i := range s.out {
		if err := d.AudioStream(ChannelPort(i), &s.out[i], synthflow.FlagOut); err != nil {
			return err
		}
	}
	return nil
}

// CalculateBlock implements synthflow.Module.
func (s *Source) CalculateBlock(n int) {
	if !s.done && s.pending.Size() < n {
		s.decode(n - s.pending.Size())
	}
	got := s.pending.Size()
	if got > n {
		got = n
	}
	for c := range s.out {
		out := s.out[c][:n]
		if got > 0 {
			copy(out, s.pending[c][:got])
			s.pending[c] = s.pending[c][got:]
		}
		for i := got; i < n; i++ {
			out[i] = 0
		}
	}
	s.read += got
}

func (s *Source) decode(samples int) {
	if cap(s.buffer.Data) < samples*s.numChannels {
		s.buffer.Data = make([]int, samples*s.numChannels)
	}
	s.buffer.Data = s.buffer.Data[:samples*s.numChannels]
	read, err := s.decoder.PCMBuffer(s.buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		s.err = err
		s.done = true
		return
	}
	if read == 0 {
		s.done = true
		return
	}
	b := signal.InterInt{
		Data:        s.buffer.Data[:read],
		NumChannels: s.numChannels,
		BitDepth:    s.bitDepth,
	}.AsFloat32()
	s.pending = s.pending.Append(b)
}

// StreamEnd closes the file.
func (s *Source) StreamEnd() error {
	return s.file.Close()
}

// NewSink creates new wav sink.
func NewSink(path string, sampleRate, numChannels int, bitDepth signal.BitDepth) (*Sink, error) {
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth32 {
		return nil, ErrUnsupportedBitDepth
	}
	return &Sink{
		path:        path,
		sampleRate:  sampleRate,
		numChannels: numChannels,
		bitDepth:    bitDepth,
		in:          make([][]float32, numChannels),
	}, nil
}

// Declare implements synthflow.Module.
func (s *Sink) Declare(d synthflow.StreamDeclarer) error {
	for i := range s.in {
		if err := d.AudioStream(ChannelPort(i), &s.in[i], synthflow.FlagIn); err != nil {
			return err
		}
	}
	return nil
}

// StreamInit creates the file.
func (s *Sink) StreamInit() error {
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	s.file = f
	s.encoder = wav.NewEncoder(f, s.sampleRate, int(s.bitDepth), s.numChannels, 1)
	return nil
}

// CalculateBlock implements synthflow.Module.
func (s *Sink) CalculateBlock(n int) {
	if s.err != nil || s.encoder == nil {
		return
	}
	floats := make(signal.Float32, len(s.in))
	for i := range s.in {
		floats[i] = s.in[i][:n]
	}
	s.err = s.encoder.Write(&audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: s.numChannels,
			SampleRate:  s.sampleRate,
		},
		Data:           floats.AsInterInt(s.bitDepth),
		SourceBitDepth: int(s.bitDepth),
	})
	s.written += n
}

// Written returns number of samples written to the file.
func (s *Sink) Written() int {
	return s.written
}

// Err returns the first error occurred while writing.
func (s *Sink) Err() error {
	return s.err
}

// StreamEnd flushes encoder and closes the file.
func (s *Sink) StreamEnd() error {
	if s.encoder == nil {
		return nil
	}
	err := s.encoder.Close()
	s.encoder = nil
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = s.err
	}
	return err
}
