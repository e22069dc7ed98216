package fiberbundle

// A Mailbox is the ordered FIFO of messages pending for one fiber.
// Only the owning bundle's scheduler goroutine, or one of that
// bundle's fiber goroutines while the scheduler is blocked resuming
// it, ever touches a Mailbox — cross-bundle and host-thread arrivals
// are always handed to the owning bundle's goroutine first (via the
// command channel), so no locking is required here.
type Mailbox struct {
	messages []Message
}

func newMailbox() *Mailbox {
	return &Mailbox{messages: make([]Message, 0, 8)}
}

// Append enqueues a message at the tail.
func (m *Mailbox) Append(sender, msgType string, content interface{}) {
	m.messages = append(m.messages, Message{Sender: sender, Type: msgType, Content: content})
}

// HasAny reports whether the mailbox holds any message, ignoring filters.
func (m *Mailbox) HasAny() bool {
	return len(m.messages) > 0
}

// Len reports the number of pending messages.
func (m *Mailbox) Len() int {
	return len(m.messages)
}

// PopMatching scans from head to tail and removes, in place, up to
// batch messages whose Type is in typeWhitelist (if non-nil) and whose
// Sender is in senderWhitelist (if non-nil). A nil whitelist accepts
// everything. The relative order of the messages left behind is
// unchanged — this is the property selective receive depends on so
// that an enclosing, unfiltered receive still sees its messages in
// arrival order.
func (m *Mailbox) PopMatching(typeWhitelist, senderWhitelist []string, batch int) []Message {
	if batch <= 0 {
		batch = 1
	}
	var typeSet, senderSet map[string]struct{}
	if typeWhitelist != nil {
		typeSet = toSet(typeWhitelist)
	}
	if senderWhitelist != nil {
		senderSet = toSet(senderWhitelist)
	}

	matched := make([]Message, 0, batch)
	remaining := make([]Message, 0, len(m.messages))

	for _, msg := range m.messages {
		if len(matched) < batch && matches(msg, typeSet, senderSet) {
			matched = append(matched, msg)
			continue
		}
		remaining = append(remaining, msg)
	}

	m.messages = remaining
	return matched
}

// Snapshot returns a read-only copy of the full, unfiltered mailbox
// contents in arrival order. Used by tests to assert ordering
// invariants without mutating the mailbox.
func (m *Mailbox) Snapshot() []Message {
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func matches(msg Message, typeSet, senderSet map[string]struct{}) bool {
	if typeSet != nil {
		if _, ok := typeSet[msg.Type]; !ok {
			return false
		}
	}
	if senderSet != nil {
		if _, ok := senderSet[msg.Sender]; !ok {
			return false
		}
	}
	return true
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
