package command

// MockSender records commands for tests. It is not safe for concurrent use.
type MockSender struct {
	Sent     []Message
	Requests []Message
	Err      error

	replies []func(Response)
}

var _ Sender = (*MockSender)(nil)

// Send records msg, or returns Err when set.
func (m *MockSender) Send(msg Message) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// RequestClick records the request and keeps reply for Reply.
func (m *MockSender) RequestClick(x, y float64, reply func(Response)) error {
	if m.Err != nil {
		return m.Err
	}
	m.Requests = append(m.Requests, Message{Action: TrustedSkipClick, X: x, Y: y})
	m.replies = append(m.replies, reply)
	return nil
}

// Reply answers the oldest unanswered request. It reports false when none is
// pending.
func (m *MockSender) Reply(resp Response) bool {
	if len(m.replies) == 0 {
		return false
	}
	fn := m.replies[0]
	m.replies = m.replies[1:]
	if fn != nil {
		fn(resp)
	}
	return true
}

// Actions lists the actions sent so far, in order.
func (m *MockSender) Actions() []Action {
	out := make([]Action, 0, len(m.Sent))
	for _, msg := range m.Sent {
		out = append(out, msg.Action)
	}
	return out
}

// Count returns how many times a was sent.
func (m *MockSender) Count(a Action) int {
	n := 0
	for _, msg := range m.Sent {
		if msg.Action == a {
			n++
		}
	}
	return n
}
