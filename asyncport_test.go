package synthflow_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/synthflow"
	"github.com/dudk/synthflow/mock"
)

func TestAsyncPush(t *testing.T) {
	f := newFlow()
	source := &mock.AsyncSource{Size: 4, Value: 7}
	holder := &mock.AsyncSink{Hold: true}
	eager := &mock.AsyncSink{}
	src := add(t, f, source)
	h := add(t, f, holder)
	e := add(t, f, eager)
	require.NoError(t, f.ConnectObject(src, "out", h, "in"))
	require.NoError(t, f.ConnectObject(e, "in", src, "out"))
	startAll(t, f)
	assert.Equal(t, 2, source.Port().Subscribers())

	_, err := f.Schedule(16)
	require.NoError(t, err)
	expected := [][]byte{{7, 7, 7, 7}}
	assert.Equal(t, expected, holder.Received)
	assert.Equal(t, expected, eager.Received)
	stats := source.Port().Stats()
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 0, stats.Freed)

	holder.Release()
	stats = source.Port().Stats()
	assert.Equal(t, 1, stats.Allocated)
	assert.Equal(t, 1, stats.Freed)
}

func TestAsyncPull(t *testing.T) {
	f := newFlow()
	source := &mock.AsyncSource{Size: 2, Pull: 2, Value: 1}
	sink := &mock.AsyncSink{}
	src := add(t, f, source)
	s := add(t, f, sink)
	require.NoError(t, f.ConnectObject(src, "out", s, "in"))
	assert.Equal(t, 2, f.DeliverPackets())
	assert.Equal(t, 2, source.Requested())
	startAll(t, f)

	for i := 0; i < 3; i++ {
		_, err := f.Schedule(8)
		require.NoError(t, err)
		// recycled packets are handed back on the next delivery
		assert.Equal(t, 0, source.Requested())
		assert.Len(t, sink.Received, 2*(i+1))
	}
	assert.Equal(t, 2, f.DeliverPackets())
	assert.Equal(t, 2, source.Requested())
	stats := source.Port().Stats()
	assert.Equal(t, 2, stats.Allocated)
	assert.Equal(t, 6, stats.Sent)
	assert.Equal(t, 8, stats.Recycled)
	assert.Equal(t, 0, stats.Freed)
}

// eagerSource fills packets as soon as they are requested.
type eagerSource struct {
	port   *synthflow.AsyncPort
	filled int
}

func (m *eagerSource) Declare(d synthflow.StreamDeclarer) error {
	p, err := d.AsyncStream("out", synthflow.FlagOut)
	if err != nil {
		return err
	}
	m.port = p
	p.SetPull(1, 4)
	return nil
}

func (m *eagerSource) CalculateBlock(int) {}

func (m *eagerSource) RequestPacket(port string, p *synthflow.Packet) {
	m.filled++
	m.port.Send(p, 4)
}

func TestAsyncEagerPull(t *testing.T) {
	f := newFlow()
	source := &eagerSource{}
	sink := &mock.AsyncSink{}
	src := add(t, f, source)
	s := add(t, f, sink)
	require.NoError(t, f.ConnectObject(src, "out", s, "in"))
	startAll(t, f)

	// every pass moves the packet once around the producer and consumer
	for i := 1; i <= 3; i++ {
		_, err := f.Schedule(4)
		require.NoError(t, err)
		assert.Equal(t, i, source.filled)
		assert.Len(t, sink.Received, i)
	}
	stats := source.port.Stats()
	assert.Equal(t, 1, stats.Allocated)
	assert.Equal(t, 3, stats.Sent)
	assert.Equal(t, 4, stats.Recycled)
}

// recorder logs packets of all its instances in delivery order.
type recorder struct {
	name string
	log  *[]string
}

func (m *recorder) Declare(d synthflow.StreamDeclarer) error {
	_, err := d.AsyncStream("in", synthflow.FlagIn)
	return err
}

func (m *recorder) CalculateBlock(int) {}

func (m *recorder) ProcessPacket(port string, p *synthflow.Packet) {
	*m.log = append(*m.log, fmt.Sprintf("%s:%d", m.name, p.Data()[0]))
	p.Processed()
}

func TestAsyncDisconnectKeepsOrder(t *testing.T) {
	f := newFlow()
	var delivered []string
	first := &mock.AsyncSource{Size: 1, Value: 1}
	second := &mock.AsyncSource{Size: 1, Value: 2}
	n1 := add(t, f, first)
	n2 := add(t, f, second)
	s := add(t, f, &recorder{name: "sink", log: &delivered})
	o := add(t, f, &recorder{name: "other", log: &delivered})
	require.NoError(t, f.ConnectObject(n1, "out", s, "in"))
	require.NoError(t, f.ConnectObject(n2, "out", s, "in"))
	require.NoError(t, f.ConnectObject(n1, "out", o, "in"))
	startAll(t, f)

	assert.Equal(t, 1, n2.Request(1))
	assert.Equal(t, 1, n1.Request(1))
	second.Value = 3
	assert.Equal(t, 1, n2.Request(1))
	// only packets of the first source addressed to sink are dropped
	require.NoError(t, f.DisconnectObject(n1, "out", s, "in"))
	assert.Equal(t, 3, f.DeliverPackets())
	assert.Equal(t, []string{"sink:2", "other:1", "sink:3"}, delivered)
	assert.Equal(t, 1, first.Port().Stats().Freed)
}

func TestAsyncDisconnectReleases(t *testing.T) {
	f := newFlow()
	source := &mock.AsyncSource{Size: 1}
	sink := &mock.AsyncSink{}
	src := add(t, f, source)
	s := add(t, f, sink)
	require.NoError(t, f.ConnectObject(src, "out", s, "in"))
	startAll(t, f)

	assert.Equal(t, 4, src.Request(4))
	require.NoError(t, f.DisconnectObject(src, "out", s, "in"))
	assert.Equal(t, 0, f.DeliverPackets())
	assert.Empty(t, sink.Received)
	assert.Equal(t, 1, source.Port().Stats().Freed)
	assert.Equal(t, 0, source.Port().Subscribers())
}

func TestAsyncRemote(t *testing.T) {
	f := newFlow()
	source := &mock.AsyncSource{Size: 3, Value: 9}
	src := add(t, f, source)
	g := add(t, f, &mock.Generator{})
	remote := &mock.Remote{}
	require.NoError(t, f.ConnectObject(src, "out", remote, "in"))
	assert.ErrorIs(t, f.ConnectObject(src, "out", remote, "in"), synthflow.ErrAlreadyConnected)
	assert.ErrorIs(t, f.ConnectObject(g, "out", remote, "in"), synthflow.ErrRemoteAudio)
	assert.ErrorIs(t, f.ConnectObject(remote, "out", src, "in"), synthflow.ErrRemoteSource)
	startAll(t, f)

	_, err := f.Schedule(4)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{9, 9, 9}}, remote.Received["in"])
	assert.Equal(t, 1, source.Port().Stats().Freed)

	// remote failures are logged, the packet is still released
	remote.ErrorOnCall = errors.New("network is down")
	_, err = f.Schedule(4)
	require.NoError(t, err)
	assert.Equal(t, 2, source.Port().Stats().Freed)

	require.NoError(t, f.DisconnectObject(src, "out", remote, "in"))
	assert.ErrorIs(t, f.DisconnectObject(src, "out", remote, "in"), synthflow.ErrNotConnected)
	assert.Equal(t, 0, source.Port().Subscribers())
}

func TestUnsentPacket(t *testing.T) {
	f := newFlow()
	source := &mock.AsyncSource{Size: 1}
	add(t, f, source)

	p := source.Port().Allocate(4)
	assert.Equal(t, 0, p.UseCount())
	assert.Len(t, p.Contents, 4)
	assert.Empty(t, p.Data())
	assert.Panics(t, p.Processed)

	// a packet without subscribers is released on send
	source.Port().Send(p, 8)
	assert.Equal(t, 4, p.Size)
	assert.Equal(t, 1, source.Port().Stats().Freed)
}
