package driver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/synthflow"
	"github.com/dudk/synthflow/driver"
	"github.com/dudk/synthflow/log"
	"github.com/dudk/synthflow/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func chain(t *testing.T, options ...synthflow.Option) (*synthflow.FlowSystem, *mock.Sink) {
	t.Helper()
	f := synthflow.New(append([]synthflow.Option{synthflow.WithLogger(log.Silent())}, options...)...)
	g, err := f.AddObject(&mock.Generator{Value: 1})
	require.NoError(t, err)
	sink := &mock.Sink{}
	s, err := f.AddObject(sink)
	require.NoError(t, err)
	require.NoError(t, f.ConnectObject(g, "out", s, "in"))
	for _, n := range f.Nodes() {
		require.NoError(t, n.Start())
	}
	return f, sink
}

func TestBlockLimit(t *testing.T) {
	f, sink := chain(t)
	d := driver.Run(context.Background(), f,
		driver.WithBlockSize(64),
		driver.WithBlockLimit(10),
		driver.WithLogger(log.Silent()),
	)
	require.NoError(t, d.Wait())
	assert.Equal(t, 10, d.Blocks())
	assert.Len(t, sink.Buffer(), 640)
	assert.Equal(t, driver.ErrClosed, d.Do(func(*synthflow.FlowSystem) error { return nil }))
	assert.Equal(t, driver.ErrClosed, d.Pause())
}

func TestPause(t *testing.T) {
	f, sink := chain(t)
	d := driver.Run(context.Background(), f,
		driver.WithBlockSize(16),
		driver.WithPeriod(time.Millisecond),
		driver.WithLogger(log.Silent()),
	)
	require.NoError(t, d.Pause())
	var paused int
	require.NoError(t, d.Do(func(*synthflow.FlowSystem) error {
		paused = len(sink.Buffer())
		return nil
	}))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, d.Do(func(*synthflow.FlowSystem) error {
		assert.Equal(t, paused, len(sink.Buffer()))
		return nil
	}))
	assert.Equal(t, 0, paused%16)

	require.NoError(t, d.Resume())
	assert.Eventually(t, func() bool {
		var samples int
		err := d.Do(func(*synthflow.FlowSystem) error {
			samples = len(sink.Buffer())
			return nil
		})
		return err == nil && samples > paused
	}, time.Second, time.Millisecond)
	require.NoError(t, d.Close())
}

func TestDo(t *testing.T) {
	f, sink := chain(t)
	ctx, cancelFn := context.WithCancel(context.Background())
	d := driver.Run(ctx, f,
		driver.WithBlockSize(8),
		driver.WithPeriod(time.Millisecond),
		driver.WithLogger(log.Silent()),
	)

	proc := &mock.Processor{Gain: 0.5}
	err := d.Do(func(f *synthflow.FlowSystem) error {
		p, err := f.AddObject(proc)
		if err != nil {
			return err
		}
		nodes := f.Nodes()
		g, s := nodes[0], nodes[1]
		if err := f.DisconnectObject(g, "out", s, "in"); err != nil {
			return err
		}
		if err := f.ConnectObject(g, "out", p, "in"); err != nil {
			return err
		}
		if err := f.ConnectObject(p, "out", s, "in"); err != nil {
			return err
		}
		return p.Start()
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		var calls int
		err := d.Do(func(*synthflow.FlowSystem) error {
			calls, _ = proc.Count()
			return nil
		})
		return err == nil && calls > 0
	}, time.Second, time.Millisecond)
	err = d.Do(func(*synthflow.FlowSystem) error {
		return synthflow.ErrNotConnected
	})
	assert.Equal(t, synthflow.ErrNotConnected, err)

	cancelFn()
	require.NoError(t, d.Wait())
	buf := sink.Buffer()
	assert.Equal(t, float32(0.5), buf[len(buf)-1])
}

func TestScheduleError(t *testing.T) {
	f := synthflow.New(synthflow.WithLogger(log.Silent()), synthflow.WithIterationLimit(3))
	adder, err := f.AddObject(&mock.Adder{})
	require.NoError(t, err)
	loop, err := f.AddObject(&mock.Processor{})
	require.NoError(t, err)
	sink, err := f.AddObject(&mock.Sink{})
	require.NoError(t, err)
	require.NoError(t, f.ConnectObject(adder, "out", loop, "in"))
	require.NoError(t, f.ConnectObject(loop, "out", adder, "in2"))
	require.NoError(t, f.ConnectObject(adder, "out", sink, "in"))
	for _, n := range f.Nodes() {
		require.NoError(t, n.Start())
	}

	d := driver.Run(context.Background(), f, driver.WithLogger(log.Silent()))
	assert.ErrorIs(t, d.Wait(), synthflow.ErrSchedulerConfusion)
	assert.Equal(t, 0, d.Blocks())
}
