// Package notify delivers notifications in FIFO order.
package notify

// Receiver gets notifications.
type Receiver interface {
	Notify(Notification)
}

// Notification is a payload addressed to a receiver.
type Notification struct {
	Receiver Receiver
	ID       int
	Data     interface{}
}

// Manager queues notifications and delivers them on Run.
// It is not safe for concurrent use.
type Manager struct {
	queue []Notification
	// due is the number of notifications at the head of the queue which
	// are delivered by the current Run.
	due int
}

// Send queues a notification.
func (m *Manager) Send(n Notification) {
	m.queue = append(m.queue, n)
}

// Pending returns number of queued notifications.
func (m *Manager) Pending() int {
	return len(m.queue)
}

// Run delivers notifications queued before the call. Notifications sent
// by receivers during delivery stay queued for the next Run. Number of
// delivered notifications is returned.
func (m *Manager) Run() int {
	delivered := 0
	m.due = len(m.queue)
	for m.due > 0 {
		n := m.queue[0]
		m.queue[0] = Notification{}
		m.queue = m.queue[1:]
		m.due--
		n.Receiver.Notify(n)
		delivered++
	}
	if len(m.queue) == 0 {
		m.queue = nil
	}
	return delivered
}

// Remove drops pending notifications for the receiver and returns them,
// so payloads can be released.
func (m *Manager) Remove(r Receiver) []Notification {
	return m.RemoveFunc(func(n Notification) bool {
		return n.Receiver == r
	})
}

// RemoveFunc drops pending notifications matching fn and returns them.
// Order of the rest is kept.
func (m *Manager) RemoveFunc(fn func(Notification) bool) []Notification {
	var removed []Notification
	kept := m.queue[:0]
	due := m.due
	for i, n := range m.queue {
		if !fn(n) {
			kept = append(kept, n)
			continue
		}
		if i < m.due {
			due--
		}
		removed = append(removed, n)
	}
	for i := len(kept); i < len(m.queue); i++ {
		m.queue[i] = Notification{}
	}
	m.queue = kept
	m.due = due
	return removed
}
