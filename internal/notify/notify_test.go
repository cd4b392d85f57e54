package notify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/synthflow/internal/notify"
)

type receiver struct {
	m      *notify.Manager
	got    []int
	resend bool
}

func (r *receiver) Notify(n notify.Notification) {
	r.got = append(r.got, n.ID)
	if r.resend && n.ID < 3 {
		r.m.Send(notify.Notification{Receiver: r, ID: n.ID + 10})
	}
}

func TestRun(t *testing.T) {
	var m notify.Manager
	r1 := &receiver{m: &m, resend: true}
	r2 := &receiver{m: &m}
	m.Send(notify.Notification{Receiver: r1, ID: 1})
	m.Send(notify.Notification{Receiver: r2, ID: 2})
	m.Send(notify.Notification{Receiver: r1, ID: 3})
	assert.Equal(t, 3, m.Pending())

	delivered := m.Run()
	assert.Equal(t, 3, delivered)
	assert.Equal(t, []int{1, 3}, r1.got)
	assert.Equal(t, []int{2}, r2.got)
	// sent during delivery, waits for the next run
	assert.Equal(t, 1, m.Pending())

	assert.Equal(t, 1, m.Run())
	assert.Equal(t, []int{1, 3, 11}, r1.got)
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, 0, m.Run())
}

// echo sends a notification back to itself every time it gets one.
type echo struct {
	m   *notify.Manager
	got int
}

func (e *echo) Notify(n notify.Notification) {
	e.got++
	e.m.Send(n)
}

func TestRunBounded(t *testing.T) {
	var m notify.Manager
	e := &echo{m: &m}
	m.Send(notify.Notification{Receiver: e})
	for i := 1; i <= 3; i++ {
		assert.Equal(t, 1, m.Run())
		assert.Equal(t, i, e.got)
		assert.Equal(t, 1, m.Pending())
	}
}

func TestRemove(t *testing.T) {
	var m notify.Manager
	r1 := &receiver{m: &m}
	r2 := &receiver{m: &m}
	for i := 0; i < 4; i++ {
		m.Send(notify.Notification{Receiver: r1, ID: i})
		m.Send(notify.Notification{Receiver: r2, ID: i})
	}
	removed := m.Remove(r1)
	assert.Len(t, removed, 4)
	for i, n := range removed {
		assert.Equal(t, i, n.ID)
	}
	assert.Equal(t, 4, m.Pending())
	m.Run()
	assert.Empty(t, r1.got)
	assert.Equal(t, []int{0, 1, 2, 3}, r2.got)
}

func TestRemoveFunc(t *testing.T) {
	var m notify.Manager
	r1 := &receiver{m: &m}
	r2 := &receiver{m: &m}
	for i := 0; i < 4; i++ {
		m.Send(notify.Notification{Receiver: r1, ID: i})
		m.Send(notify.Notification{Receiver: r2, ID: i})
	}
	removed := m.RemoveFunc(func(n notify.Notification) bool {
		return n.Receiver == r1 && n.ID%2 == 0
	})
	assert.Len(t, removed, 2)
	assert.Equal(t, 6, m.Pending())
	m.Run()
	assert.Equal(t, []int{1, 3}, r1.got)
	assert.Equal(t, []int{0, 1, 2, 3}, r2.got)
}

// remover drops notifications of target when notified and sends one more.
type remover struct {
	m      *notify.Manager
	target notify.Receiver
}

func (r *remover) Notify(notify.Notification) {
	r.m.Remove(r.target)
	r.m.Send(notify.Notification{Receiver: r.target, ID: 9})
}

func TestRemoveWhileRunning(t *testing.T) {
	var m notify.Manager
	target := &receiver{m: &m}
	m.Send(notify.Notification{Receiver: &remover{m: &m, target: target}})
	m.Send(notify.Notification{Receiver: target, ID: 1})
	m.Send(notify.Notification{Receiver: target, ID: 2})

	assert.Equal(t, 1, m.Run())
	assert.Empty(t, target.got)
	assert.Equal(t, 1, m.Pending())
	assert.Equal(t, 1, m.Run())
	assert.Equal(t, []int{9}, target.got)
}
