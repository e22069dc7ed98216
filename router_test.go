package fiberbundle

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestRouterForwardsToFirstMatchingRoute(t *testing.T) {
	log.SetLevel(log.DebugLevel)
	b := newBundle(0, make(chan coordinatorCommand, 8), nil, "")
	go b.run()

	gotEven := make(chan int, 1)
	gotOdd := make(chan int, 1)
	b.cmdCh <- spawnLocalFiberCmd{name: "evens", body: Func(func(ctx *Context, args interface{}) {
		ctx.ReceiveOnce(ReceiveOptions{}, func(sender, msgType string, content interface{}) {
			gotEven <- content.(int)
		})
	})}
	b.cmdCh <- spawnLocalFiberCmd{name: "odds", body: Func(func(ctx *Context, args interface{}) {
		ctx.ReceiveOnce(ReceiveOptions{}, func(sender, msgType string, content interface{}) {
			gotOdd <- content.(int)
		})
	})}

	routes := []RouteFunc{
		func(content interface{}) (string, bool) {
			if n, ok := content.(int); ok && n%2 == 0 {
				return "evens", true
			}
			return "", false
		},
		func(content interface{}) (string, bool) {
			if n, ok := content.(int); ok && n%2 != 0 {
				return "odds", true
			}
			return "", false
		},
	}
	b.cmdCh <- spawnLocalFiberCmd{name: "router", body: NewRouter(routes, nil)}

	b.postCallback("client", "router", "number", 4)
	b.postCallback("client", "router", "number", 7)

	select {
	case n := <-gotEven:
		if n != 4 {
			t.Errorf("expected 4 routed to evens, got %v", n)
		}
	case <-time.After(time.Second):
		t.Error("evens never received its message")
	}
	select {
	case n := <-gotOdd:
		if n != 7 {
			t.Errorf("expected 7 routed to odds, got %v", n)
		}
	case <-time.After(time.Second):
		t.Error("odds never received its message")
	}
}

func TestRouterPublishesUnmatched(t *testing.T) {
	log.SetLevel(log.DebugLevel)
	bus := NewLifecycleBus()
	unmatched := make(chan interface{}, 1)
	bus.Subscribe("router\\.unmatched", func(e LifecycleEvent) {
		unmatched <- e.Payload
	})

	b := newBundle(0, make(chan coordinatorCommand, 8), nil, "")
	go b.run()

	noRoutes := []RouteFunc{
		func(interface{}) (string, bool) { return "", false },
	}
	b.cmdCh <- spawnLocalFiberCmd{name: "router", body: NewRouter(noRoutes, bus)}

	b.postCallback("client", "router", "number", "unclaimed")

	select {
	case payload := <-unmatched:
		if payload != "unclaimed" {
			t.Errorf("expected 'unclaimed', got %v", payload)
		}
	case <-time.After(time.Second):
		t.Error("expected router.unmatched to be published")
	}
}
