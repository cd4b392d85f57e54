package wav_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/synthflow"
	"github.com/dudk/synthflow/log"
	"github.com/dudk/synthflow/mock"
	"github.com/dudk/synthflow/signal"
	"github.com/dudk/synthflow/unit"
	"github.com/dudk/synthflow/wav"
)

func start(t *testing.T, f *synthflow.FlowSystem) {
	t.Helper()
	for _, n := range f.Nodes() {
		require.NoError(t, n.Start())
	}
}

func stop(t *testing.T, f *synthflow.FlowSystem) {
	t.Helper()
	for _, n := range f.Nodes() {
		require.NoError(t, n.Stop())
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		bitDepth signal.BitDepth
		values   []float32
		samples  int
		block    int
	}{
		{
			bitDepth: signal.BitDepth16,
			values:   []float32{0.5, -0.5},
			samples:  1000,
			block:    256,
		},
		{
			bitDepth: signal.BitDepth32,
			values:   []float32{0.25},
			samples:  300,
			block:    100,
		},
	}
	for _, test := range tests {
		path := filepath.Join(t.TempDir(), "out.wav")
		numChannels := len(test.values)

		// render constants to file
		f := synthflow.New(synthflow.WithLogger(log.Silent()))
		sink, err := wav.NewSink(path, 44100, numChannels, test.bitDepth)
		require.NoError(t, err)
		s, err := f.AddObject(sink)
		require.NoError(t, err)
		for i, v := range test.values {
			c, err := f.AddObject(&unit.Constant{Value: v})
			require.NoError(t, err)
			require.NoError(t, f.ConnectObject(c, "out", s, wav.ChannelPort(i)))
		}
		start(t, f)
		for done := 0; done < test.samples; done += test.block {
			_, err := f.Schedule(test.block)
			require.NoError(t, err)
		}
		written := sink.Written()
		stop(t, f)
		assert.NoError(t, sink.Err())

		// read it back
		source, err := wav.NewSource(path)
		require.NoError(t, err)
		assert.Equal(t, numChannels, source.NumChannels())
		assert.Equal(t, 44100, source.SampleRate())
		f = synthflow.New(synthflow.WithLogger(log.Silent()))
		src, err := f.AddObject(source)
		require.NoError(t, err)
		sinks := make([]*mock.Sink, numChannels)
		for i := range sinks {
			sinks[i] = &mock.Sink{}
			n, err := f.AddObject(sinks[i])
			require.NoError(t, err)
			require.NoError(t, f.ConnectObject(src, wav.ChannelPort(i), n, "in"))
		}
		start(t, f)
		_, err = f.Schedule(written + 10)
		require.NoError(t, err)
		stop(t, f)

		assert.True(t, source.Done())
		assert.NoError(t, source.Err())
		assert.Equal(t, written, source.Read())
		for i, v := range test.values {
			buf := sinks[i].Buffer()
			require.Len(t, buf, written+10)
			for _, got := range buf[:written] {
				assert.InDelta(t, v, got, 1e-3)
			}
			for _, got := range buf[written:] {
				assert.Equal(t, float32(0), got)
			}
		}
	}
}

func TestUnsupportedBitDepth(t *testing.T) {
	_, err := wav.NewSink("out.wav", 44100, 1, signal.BitDepth8)
	assert.Equal(t, wav.ErrUnsupportedBitDepth, err)
	_, err = wav.NewSource(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}
