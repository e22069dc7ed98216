package fiberbundle

import "testing"

func TestMailboxFIFO(t *testing.T) {
	m := newMailbox()
	m.Append("a", "greet", "hi")
	m.Append("b", "greet", "ho")
	m.Append("c", "greet", "hey")

	if m.Len() != 3 {
		t.Errorf("expected 3 messages, got %v", m.Len())
	}

	snap := m.Snapshot()
	if len(snap) != 3 || snap[0].Sender != "a" || snap[1].Sender != "b" || snap[2].Sender != "c" {
		t.Errorf("expected arrival order a,b,c, got %+v", snap)
	}
}

func TestMailboxPopMatchingPreservesRemainderOrder(t *testing.T) {
	m := newMailbox()
	m.Append("a", "ping", 1)
	m.Append("b", "pong", 2)
	m.Append("c", "ping", 3)
	m.Append("d", "pong", 4)

	matched := m.PopMatching([]string{"pong"}, nil, 10)
	if len(matched) != 2 {
		t.Errorf("expected 2 pong messages, got %v", len(matched))
	}
	if matched[0].Sender != "b" || matched[1].Sender != "d" {
		t.Errorf("expected pop order b,d, got %+v", matched)
	}

	remaining := m.Snapshot()
	if len(remaining) != 2 || remaining[0].Sender != "a" || remaining[1].Sender != "c" {
		t.Errorf("expected leftover order a,c, got %+v", remaining)
	}
}

func TestMailboxPopMatchingBatchLimit(t *testing.T) {
	m := newMailbox()
	for i := 0; i < 5; i++ {
		m.Append("x", "event", i)
	}
	matched := m.PopMatching(nil, nil, 2)
	if len(matched) != 2 {
		t.Errorf("expected batch of 2, got %v", len(matched))
	}
	if m.Len() != 3 {
		t.Errorf("expected 3 left in mailbox, got %v", m.Len())
	}
}

func TestMailboxPopMatchingSenderAndTypeAreAnded(t *testing.T) {
	m := newMailbox()
	m.Append("alice", "!call_timeout", nil)
	m.Append("!system", "other", nil)
	m.Append("!system", "!call_timeout", nil)

	matched := m.PopMatching([]string{"!call_timeout"}, []string{"!system"}, 10)
	if len(matched) != 1 {
		t.Errorf("expected exactly the message matching both sender and type, got %v", matched)
	}
	if m.Len() != 2 {
		t.Errorf("expected the other two messages left untouched, got %v", m.Len())
	}
}

func TestMailboxPopMatchingNoMatchLeavesMailboxUntouched(t *testing.T) {
	m := newMailbox()
	m.Append("a", "ping", nil)
	matched := m.PopMatching([]string{"pong"}, nil, 1)
	if len(matched) != 0 {
		t.Errorf("expected no match, got %v", matched)
	}
	if m.Len() != 1 {
		t.Errorf("expected mailbox untouched, got len %v", m.Len())
	}
}
