package mock_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/synthflow"
	"github.com/dudk/synthflow/log"
	"github.com/dudk/synthflow/mock"
)

var errTest = errors.New("test error")

func TestChain(t *testing.T) {
	tests := []struct {
		value  float32
		gain   float32
		blocks int
		block  int
		want   float32
	}{
		{
			value:  0.5,
			blocks: 1,
			block:  10,
			want:   0.5,
		},
		{
			value:  0.25,
			gain:   2,
			blocks: 10,
			block:  100,
			want:   0.5,
		},
	}
	for _, test := range tests {
		flow := synthflow.New(synthflow.WithLogger(log.Silent()), synthflow.WithBufferSize(256))
		gen := &mock.Generator{Value: test.value}
		proc := &mock.Processor{Gain: test.gain}
		sink := &mock.Sink{}
		g, err := flow.AddObject(gen)
		require.NoError(t, err)
		p, err := flow.AddObject(proc)
		require.NoError(t, err)
		s, err := flow.AddObject(sink)
		require.NoError(t, err)
		require.NoError(t, flow.ConnectObject(g, "out", p, "in"))
		require.NoError(t, flow.ConnectObject(p, "out", s, "in"))
		for _, n := range flow.Nodes() {
			require.NoError(t, n.Start())
		}

		for i := 0; i < test.blocks; i++ {
			_, err := flow.Schedule(test.block)
			assert.NoError(t, err)
		}

		samples := test.blocks * test.block
		_, count := gen.Count()
		assert.Equal(t, samples, count)
		_, count = proc.Count()
		assert.Equal(t, samples, count)
		_, count = sink.Count()
		assert.Equal(t, samples, count)
		assert.Len(t, sink.Buffer(), samples)
		for _, v := range sink.Buffer() {
			assert.Equal(t, test.want, v)
		}
	}
}

func TestHooks(t *testing.T) {
	flow := synthflow.New(synthflow.WithLogger(log.Silent()))
	gen := &mock.Generator{}
	n, err := flow.AddObject(gen)
	require.NoError(t, err)

	require.NoError(t, n.Start())
	require.NoError(t, n.Stop())
	require.NoError(t, n.Start())
	assert.True(t, gen.Inited)
	assert.Equal(t, 2, gen.Started)
	assert.Equal(t, 1, gen.Ended)

	gen.ErrorOnEnd = errTest
	assert.True(t, errors.Is(n.Stop(), errTest))

	_, err = flow.AddObject(&mock.Sink{Hooks: mock.Hooks{ErrorOnDeclare: errTest}})
	assert.True(t, errors.Is(err, errTest))
	assert.Len(t, flow.Nodes(), 1)
}

func TestRemote(t *testing.T) {
	r := &mock.Remote{}
	assert.Nil(t, r.Node())
	assert.NoError(t, r.Receive("in", []byte{1}))
	r.ErrorOnCall = errTest
	assert.Equal(t, errTest, r.Receive("in", []byte{2}))
	assert.Equal(t, [][]byte{{1}}, r.Received["in"])
}
