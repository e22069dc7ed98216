package fiberbundle

import (
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Bundle owns one worker's fiber set. Everything that touches
// b.fibers, b.ready, or any fiber's mailbox runs either on this
// bundle's own goroutine (its event loop, started by run()) or on one
// of its fibers' goroutines while that goroutine is blocked in the
// fiber's resume(), so the two never run at once; every other goroutine
// that needs to affect a bundle does so by posting a bundleCommand
// onto cmdCh, never by reaching into these fields directly.
type Bundle struct {
	id    int
	cmdCh chan bundleCommand

	fibers map[string]*Fiber
	ready  *readySet

	nextLocalPID uint64

	coordinatorCh   chan coordinatorCommand
	bus             *LifecycleBus
	loggerFiberName string

	schedulerStarted atomic.Bool
	running          atomic.Bool

	log *log.Entry
}

func newBundle(id int, coordinatorCh chan coordinatorCommand, bus *LifecycleBus, loggerFiberName string) *Bundle {
	return &Bundle{
		id:              id,
		cmdCh:           make(chan bundleCommand, commandQueueDepth),
		fibers:          make(map[string]*Fiber),
		ready:           newReadySet(),
		coordinatorCh:   coordinatorCh,
		bus:             bus,
		loggerFiberName: loggerFiberName,
		log:             log.WithField("bundle", id),
	}
}

// ID returns this bundle's non-negative, space-unique identifier.
func (b *Bundle) ID() int { return b.id }

// IsParked reports whether the scheduler is currently parked waiting
// for work (no fiber ready, no command pending). Exposed for tests of
// invariant 6 (idle parking, no CPU spin).
func (b *Bundle) IsParked() bool {
	return !b.running.Load()
}

// run is the bundle scheduler's entry point. It must be invoked
// exactly once per bundle lifetime; a second call is a logged no-op
// and the first, already-running scheduler is unaffected.
func (b *Bundle) run() {
	if !b.schedulerStarted.CompareAndSwap(false, true) {
		b.log.Warn("scheduler already started; second run() call ignored")
		return
	}
	b.running.Store(true)
	for {
		for b.ready.Len() > 0 {
			for _, name := range b.ready.Snapshot() {
				f, ok := b.fibers[name]
				if !ok {
					// exited mid-pass (e.g. a sibling's send targeted
					// a fiber that has since panicked and been
					// cleaned up); nothing to resume.
					continue
				}
				f.resume()
			}
			if b.drainCommands() {
				return
			}
		}
		b.running.Store(false)
		cmd, open := <-b.cmdCh
		if !open {
			return
		}
		b.running.Store(true)
		if b.handle(cmd) {
			return
		}
	}
}

// drainCommands is the explicit, non-blocking drain point between
// inner-loop passes: it gives cross-bundle relays and host-thread
// callbacks a chance to be serviced even while this bundle's own
// fibers keep finding local work, instead of only being looked at
// once ready goes fully empty. Returns true if a stop was requested.
func (b *Bundle) drainCommands() bool {
	for {
		select {
		case cmd := <-b.cmdCh:
			if b.handle(cmd) {
				return true
			}
		default:
			return false
		}
	}
}

func (b *Bundle) handle(cmd bundleCommand) (stop bool) {
	switch c := cmd.(type) {
	case spawnLocalFiberCmd:
		b.spawnLocal(c.name, c.body, c.args)
	case receiveRelayedCmd:
		b.receiveRelayed(c.sender, c.receiver, c.msgType, c.content)
	case callTimeoutCmd:
		b.deliverCallTimeout(c.receiver, c.seq)
	case stopCmd:
		return true
	default:
		b.log.Errorf("unknown bundle command %T", cmd)
	}
	return false
}

// spawnLocal creates a fiber and registers it in this bundle's local
// map. It is not added to the ready set — a fiber becomes ready only
// when it first receives a message; a body that does unconditional
// work before its first receive still runs in full the first time the
// scheduler resumes it.
//
// Name collisions overwrite silently: last writer wins.
func (b *Bundle) spawnLocal(name string, body Body, args interface{}) *Fiber {
	f := newFiber(name, b, body, args)
	if err := f.validName(); err != nil {
		b.log.Error(err)
		return nil
	}
	if _, exists := b.fibers[name]; exists {
		b.log.WithField("fiber", name).Warn("fiber name collision, overwriting")
	}
	b.fibers[name] = f
	b.diagnostic("fiber.spawned", name)
	return f
}

// send delivers sender's message to receiver: local fibers get an
// immediate mailbox append; everything else is relayed through the
// coordinator asynchronously.
func (b *Bundle) send(sender, receiver, msgType string, content interface{}) {
	if f, ok := b.fibers[receiver]; ok {
		f.mailbox.Append(sender, msgType, content)
		f.markReady()
		return
	}
	b.coordinatorCh <- relayMessageCmd{sender: sender, receiver: receiver, msgType: msgType, content: content}
}

// receiveRelayed is executed on this bundle's own goroutine (reached
// via cmdCh, posted either by the coordinator relaying a cross-bundle
// send, or by a host-thread callback). If the receiver is not locally
// known this is logged as an error, not silently dropped, because at
// this point the coordinator already believed the fiber lived here.
func (b *Bundle) receiveRelayed(sender, receiver, msgType string, content interface{}) {
	f, ok := b.fibers[receiver]
	if !ok {
		b.log.WithFields(log.Fields{"receiver": receiver, "sender": sender}).
			Error("receive_relayed for unknown local fiber")
		return
	}
	f.mailbox.Append(sender, msgType, content)
	f.markReady()
}

// postCallback lets any goroutine — typically a host-thread event
// source via CreateCallback — safely deliver a message into this
// bundle without touching any bundle-owned state directly. It always
// crosses the same cmdCh boundary a cross-bundle relay would.
func (b *Bundle) postCallback(sender, receiver, msgType string, content interface{}) {
	b.cmdCh <- receiveRelayedCmd{sender: sender, receiver: receiver, msgType: msgType, content: content}
}

// postCallTimeout is what a Call watchdog timer actually posts instead
// of going through postCallback directly: the generation check has to
// happen on this bundle's own goroutine, where it's safe to read the
// target fiber's callSeq.
func (b *Bundle) postCallTimeout(receiver string, seq uint64) {
	b.cmdCh <- callTimeoutCmd{receiver: receiver, seq: seq}
}

// deliverCallTimeout appends a watchdog timeout message to receiver's
// mailbox, but only if seq still matches the fiber's current call
// generation. A mismatch means the Call it was armed for already
// completed (by reply or by an earlier timeout) before this watchdog's
// message made it onto cmdCh, so it is dropped rather than delivered.
func (b *Bundle) deliverCallTimeout(receiver string, seq uint64) {
	f, ok := b.fibers[receiver]
	if !ok || f.callSeq != seq {
		return
	}
	f.mailbox.Append(systemSender, callTimeoutType, nil)
	f.markReady()
}

// CreateCallback installs a host-thread function that, when invoked,
// posts a message (sender=name, type="callback", content=args) to
// receiver. This is how host event sources (timers, I/O completions,
// GUI callbacks) get bridged into the fiber world: receiver must be a
// fiber owned by this bundle.
func (b *Bundle) CreateCallback(name, receiver string) func(args interface{}) {
	return func(args interface{}) {
		b.postCallback(name, receiver, msgTypeCallback, args)
	}
}

// newPID mints {bundle_id}_{counter}: globally unique because bundle
// ids are unique in the space and the counter is private and
// monotonic within this bundle.
func (b *Bundle) newPID() string {
	n := atomic.AddUint64(&b.nextLocalPID, 1)
	return fmt.Sprintf("%d_%d", b.id, n)
}

func (b *Bundle) spawnFiberViaCoordinator(name string, body Body, args interface{}) {
	b.coordinatorCh <- spawnFiberCmd{name: name, body: body, args: args}
}

func (b *Bundle) spawnFiberInSpecificBundleViaCoordinator(name string, body Body, bundleID int, args interface{}) {
	b.coordinatorCh <- spawnFiberInSpecificBundleCmd{name: name, body: body, bundleID: bundleID, args: args}
}

// reportFiberPanic contains a fiber body's panic to that fiber alone:
// the bundle keeps running, the panic is logged and surfaced on the
// lifecycle bus instead of propagating.
func (b *Bundle) reportFiberPanic(f *Fiber, recovered interface{}) {
	b.log.WithFields(log.Fields{"fiber": f.name, "panic": recovered}).Error("fiber panic recovered")
	b.diagnostic("fiber.panic", fmt.Sprintf("%v: %v", f.name, recovered))
}

// onFiberExit removes an Exiting fiber from this bundle's map and
// ready set, and tells the coordinator to drop its placement entry
// too.
func (b *Bundle) onFiberExit(f *Fiber) {
	delete(b.fibers, f.name)
	b.ready.Remove(f.name)
	b.diagnostic("fiber.exited", f.name)
	b.coordinatorCh <- unregisterFiberCmd{name: f.name, bundleID: b.id}
}

func (b *Bundle) diagnostic(topic string, payload interface{}) {
	if b.bus != nil {
		b.bus.Publish(topic, payload)
	}
	if b.loggerFiberName != "" {
		b.send(systemSender, b.loggerFiberName, "diagnostic:"+topic, payload)
	}
}
