package fiberbundle

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

// runFiber starts a fresh bundle, spawns body on it as "under-test"
// and posts it a "start" kick, then returns at once; each test waits
// on its own result channel with its own deadline.
func runFiber(t *testing.T, body Body) {
	log.SetLevel(log.DebugLevel)
	b := newBundle(0, make(chan coordinatorCommand, 8), nil, "")
	go b.run()
	b.cmdCh <- spawnLocalFiberCmd{name: "under-test", body: body}
	b.postCallback(systemSender, "under-test", "start", nil)
}

func TestContextSelectiveReceiveIgnoresNonMatchingTypesUntilTheyMatch(t *testing.T) {
	done := make(chan []string, 1)
	var seen []string

	runFiber(t, Func(func(ctx *Context, args interface{}) {
		// first message in is the unrelated "start" kick; skip past it
		// with a type-filtered receive so it isn't mistaken for test
		// data.
		ctx.ReceiveOnce(ReceiveOptions{TypeWhitelist: []string{"start"}}, func(string, string, interface{}) {})

		ctx.Send(ctx.Self(), "b", "B")
		ctx.Send(ctx.Self(), "a", "A")

		// selective receive for type "a" only: must see "A" even though
		// "b" arrived first, and must leave "b" behind for the plain
		// receive that follows.
		ctx.ReceiveOnce(ReceiveOptions{TypeWhitelist: []string{"a"}}, func(sender, msgType string, content interface{}) {
			seen = append(seen, content.(string))
		})
		ctx.ReceiveOnce(ReceiveOptions{}, func(sender, msgType string, content interface{}) {
			seen = append(seen, content.(string))
		})
		done <- seen
	}))

	select {
	case got := <-done:
		if len(got) != 2 || got[0] != "A" || got[1] != "B" {
			t.Errorf("expected [A B], got %v", got)
		}
	case <-time.After(time.Second):
		t.Error("fiber never finished")
	}
}

func TestContextReceiveBatch(t *testing.T) {
	done := make(chan int, 1)

	runFiber(t, Func(func(ctx *Context, args interface{}) {
		ctx.ReceiveOnce(ReceiveOptions{TypeWhitelist: []string{"start"}}, func(string, string, interface{}) {})

		for i := 0; i < 5; i++ {
			ctx.Send(ctx.Self(), "item", i)
		}

		count := 0
		ctx.ReceiveOnce(ReceiveOptions{TypeWhitelist: []string{"item"}, Batch: 3}, func(sender, msgType string, content interface{}) {
			count++
		})
		done <- count
	}))

	select {
	case got := <-done:
		if got != 3 {
			t.Errorf("expected a batch of 3, got %v", got)
		}
	case <-time.After(time.Second):
		t.Error("fiber never finished")
	}
}

func TestContextYieldAliveKeepsFiberRunnable(t *testing.T) {
	done := make(chan int, 1)
	runFiber(t, Func(func(ctx *Context, args interface{}) {
		ctx.ReceiveOnce(ReceiveOptions{TypeWhitelist: []string{"start"}}, func(string, string, interface{}) {})
		n := 0
		for i := 0; i < 3; i++ {
			n++
			ctx.YieldAlive()
		}
		done <- n
	}))

	select {
	case got := <-done:
		if got != 3 {
			t.Errorf("expected the loop to run 3 times across yields, got %v", got)
		}
	case <-time.After(time.Second):
		t.Error("fiber never finished")
	}
}

func TestContextCallReceivesReply(t *testing.T) {
	log.SetLevel(log.DebugLevel)
	b := newBundle(0, make(chan coordinatorCommand, 8), nil, "")
	go b.run()

	b.cmdCh <- spawnLocalFiberCmd{name: "echo", body: Func(func(ctx *Context, args interface{}) {
		ctx.ReceiveOnce(ReceiveOptions{}, func(sender, msgType string, content interface{}) {
			ctx.Send(sender, "reply", content)
		})
	})}

	result := make(chan Message, 1)
	ok := make(chan bool, 1)
	b.cmdCh <- spawnLocalFiberCmd{name: "caller", body: Func(func(ctx *Context, args interface{}) {
		ctx.ReceiveOnce(ReceiveOptions{TypeWhitelist: []string{"start"}}, func(string, string, interface{}) {})
		msg, got := ctx.Call("echo", "request", "ping", time.Second)
		result <- msg
		ok <- got
	})}
	b.postCallback(systemSender, "caller", "start", nil)

	select {
	case msg := <-result:
		if !<-ok {
			t.Error("expected Call to succeed")
		}
		if msg.Content.(string) != "ping" {
			t.Errorf("expected echoed 'ping', got %v", msg.Content)
		}
	case <-time.After(2 * time.Second):
		t.Error("Call never returned")
	}
}

func TestContextCallTimesOut(t *testing.T) {
	log.SetLevel(log.DebugLevel)
	b := newBundle(0, make(chan coordinatorCommand, 8), nil, "")
	go b.run()

	// "silent" never replies.
	b.cmdCh <- spawnLocalFiberCmd{name: "silent", body: Func(func(ctx *Context, args interface{}) {
		ctx.WaitForever()
	})}

	ok := make(chan bool, 1)
	b.cmdCh <- spawnLocalFiberCmd{name: "caller", body: Func(func(ctx *Context, args interface{}) {
		ctx.ReceiveOnce(ReceiveOptions{TypeWhitelist: []string{"start"}}, func(string, string, interface{}) {})
		_, got := ctx.Call("silent", "request", "ping", 30*time.Millisecond)
		ok <- got
	})}
	b.postCallback(systemSender, "caller", "start", nil)

	select {
	case got := <-ok:
		if got {
			t.Error("expected Call to time out")
		}
	case <-time.After(2 * time.Second):
		t.Error("Call never returned")
	}
}

func TestContextForwardPreservesOriginalSender(t *testing.T) {
	log.SetLevel(log.DebugLevel)
	b := newBundle(0, make(chan coordinatorCommand, 8), nil, "")
	go b.run()

	seenSender := make(chan string, 1)
	b.cmdCh <- spawnLocalFiberCmd{name: "target", body: Func(func(ctx *Context, args interface{}) {
		ctx.ReceiveOnce(ReceiveOptions{}, func(sender, msgType string, content interface{}) {
			seenSender <- sender
		})
	})}
	b.cmdCh <- spawnLocalFiberCmd{name: "relay", body: Func(func(ctx *Context, args interface{}) {
		ctx.ReceiveOnce(ReceiveOptions{}, func(sender, msgType string, content interface{}) {
			ctx.Forward("target", sender, msgType, content)
		})
	})}

	b.postCallback("original-sender", "relay", "hop", "payload")

	select {
	case got := <-seenSender:
		if got != "original-sender" {
			t.Errorf("expected forwarded message to keep the original sender, got %v", got)
		}
	case <-time.After(time.Second):
		t.Error("target never received the forwarded message")
	}
}
