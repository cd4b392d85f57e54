// Package driver runs a flow system in real time. The flow system is owned
// by a single goroutine: it's scheduled block by block and all mutations
// are executed between blocks.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dudk/synthflow"
	"github.com/dudk/synthflow/log"
)

// ErrClosed is returned when the driver doesn't run anymore.
var ErrClosed = errors.New("driver is closed")

const defaultBlockSize = 512

// Option configures a Driver.
type Option func(*Driver)

// WithBlockSize sets number of samples scheduled per block.
func WithBlockSize(size int) Option {
	return func(d *Driver) {
		if size > 0 {
			d.blockSize = size
		}
	}
}

// WithPeriod sets interval between blocks. Without period blocks are
// scheduled as fast as possible.
func WithPeriod(period time.Duration) Option {
	return func(d *Driver) {
		d.period = period
	}
}

// WithBlockLimit stops the driver after limit blocks.
func WithBlockLimit(limit int) Option {
	return func(d *Driver) {
		d.blockLimit = limit
	}
}

// WithLogger sets logger of the driver.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Driver) {
		d.log = l
	}
}

type mutation struct {
	fn   func(*synthflow.FlowSystem) error
	errc chan error
}

// Driver schedules a flow system in its own goroutine.
type Driver struct {
	flow       *synthflow.FlowSystem
	blockSize  int
	period     time.Duration
	blockLimit int
	log        logrus.FieldLogger

	cancelFn  context.CancelFunc
	mutations chan mutation
	pause     chan bool
	done      chan struct{}
	blocks    int
	err       error
}

// Run starts the driver. It runs until context is done, Close is called,
// block limit is reached or a schedule pass fails.
func Run(ctx context.Context, flow *synthflow.FlowSystem, options ...Option) *Driver {
	ctx, cancelFn := context.WithCancel(ctx)
	d := &Driver{
		flow:      flow,
		blockSize: defaultBlockSize,
		log:       log.GetLogger(),
		cancelFn:  cancelFn,
		mutations: make(chan mutation),
		pause:     make(chan bool),
		done:      make(chan struct{}),
	}
	for _, option := range options {
		option(d)
	}
	go d.loop(ctx)
	return d
}

func (d *Driver) loop(ctx context.Context) {
	defer close(d.done)
	defer d.cancelFn()
	var tick <-chan time.Time
	if d.period > 0 {
		ticker := time.NewTicker(d.period)
		defer ticker.Stop()
		tick = ticker.C
	}
	paused := false
	for {
		// without period, blocks are scheduled whenever nothing else happens
		var next <-chan time.Time
		ready := false
		if !paused {
			if tick != nil {
				next = tick
			} else {
				ready = true
			}
		}
		if ready {
			select {
			case <-ctx.Done():
				return
			case m := <-d.mutations:
				m.errc <- m.fn(d.flow)
				continue
			case paused = <-d.pause:
				continue
			default:
			}
			if !d.block() {
				return
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case m := <-d.mutations:
			m.errc <- m.fn(d.flow)
		case paused = <-d.pause:
		case <-next:
			if !d.block() {
				return
			}
		}
	}
}

// block schedules one block and reports if the driver should continue.
func (d *Driver) block() bool {
	if _, err := d.flow.Schedule(d.blockSize); err != nil {
		d.err = fmt.Errorf("block %d: %w", d.blocks, err)
		d.log.WithError(err).Warn("schedule failed")
		return false
	}
	d.blocks++
	return d.blockLimit <= 0 || d.blocks < d.blockLimit
}

// Do executes fn in the driver goroutine between blocks.
func (d *Driver) Do(fn func(*synthflow.FlowSystem) error) error {
	m := mutation{fn: fn, errc: make(chan error, 1)}
	select {
	case d.mutations <- m:
		return <-m.errc
	case <-d.done:
		return ErrClosed
	}
}

// Pause stops scheduling blocks. Mutations are still executed.
func (d *Driver) Pause() error {
	return d.setPaused(true)
}

// Resume continues scheduling blocks.
func (d *Driver) Resume() error {
	return d.setPaused(false)
}

func (d *Driver) setPaused(paused bool) error {
	select {
	case d.pause <- paused:
		return nil
	case <-d.done:
		return ErrClosed
	}
}

// Close stops the driver and waits for its goroutine to exit.
func (d *Driver) Close() error {
	d.cancelFn()
	return d.Wait()
}

// Wait blocks until the driver is done and returns the schedule error if
// there was one.
func (d *Driver) Wait() error {
	<-d.done
	return d.err
}

// Blocks returns number of scheduled blocks. It must be called after the
// driver is done or from a function passed to Do.
func (d *Driver) Blocks() int {
	return d.blocks
}
