package fiberbundle

import (
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
)

// bundleHandle is the only view the coordinator keeps of a bundle: an
// id and the channel used to post commands to it. The coordinator
// never reaches into a Bundle's fiber map or ready set directly —
// doing so would break the thread-confinement discipline this package
// relies on to avoid locks.
type bundleHandle struct {
	id    int
	cmdCh chan bundleCommand
}

// InitFunc is invoked once, on a freshly spawned bundle's own
// goroutine, before that bundle's scheduler starts. It is how setup
// that every worker goroutine needs — registering helper fibers,
// seeding per-bundle state — gets distributed to each bundle, as a
// callback over the concrete *Bundle rather than by re-running some
// shared initialization script.
type InitFunc func(*Bundle)

// BundleSpace is the coordinator: the one goroutine that owns the
// fiber_name -> bundle_id and bundle_id -> worker-goroutine maps.
// Every other goroutine (bundles, host callers) reaches it only by
// posting a coordinatorCommand onto cmdCh; BundleSpace.run is the only
// code that ever reads or writes the maps below.
type BundleSpace struct {
	cmdCh chan coordinatorCommand

	bundles     map[int]bundleHandle
	bundleOrder []int
	fiberBundle map[string]int

	nextBundleID int
	rrCursor     int

	bus             *LifecycleBus
	loggerFiberName string
	initFunc        InitFunc
	numCPU          func() int

	wg     sync.WaitGroup
	stopCh chan struct{}

	log *log.Entry
}

func newBundleSpace(bus *LifecycleBus, initFunc InitFunc, loggerFiberName string) *BundleSpace {
	return &BundleSpace{
		cmdCh:           make(chan coordinatorCommand, commandQueueDepth),
		bundles:         make(map[int]bundleHandle),
		fiberBundle:     make(map[string]int),
		bus:             bus,
		loggerFiberName: loggerFiberName,
		initFunc:        initFunc,
		numCPU:          runtime.NumCPU,
		stopCh:          make(chan struct{}),
		log:             log.WithField("component", "bundlespace"),
	}
}

// run is the coordinator's event loop. It is started exactly once, by
// Universe, on its own dedicated goroutine, and runs until Stop.
func (s *BundleSpace) run() {
	for {
		select {
		case cmd := <-s.cmdCh:
			s.handle(cmd)
		case <-s.stopCh:
			return
		}
	}
}

func (s *BundleSpace) handle(cmd coordinatorCommand) {
	switch c := cmd.(type) {
	case spawnBundlesCmd:
		ids := s.spawnBundles(c.n)
		if c.done != nil {
			c.done <- ids
		}
	case inflateCmd:
		n := s.numCPU()
		if n <= 0 {
			n = c.fallback
		}
		ids := s.spawnBundles(n)
		if c.done != nil {
			c.done <- ids
		}
	case spawnFiberCmd:
		s.spawnFiber(c.name, c.body, c.args)
	case spawnFiberInSpecificBundleCmd:
		s.spawnFiberInSpecificBundle(c.name, c.body, c.bundleID, c.args)
	case relayMessageCmd:
		s.relayMessage(c.sender, c.receiver, c.msgType, c.content)
	case unregisterFiberCmd:
		s.unregisterFiber(c.name, c.bundleID)
	case lookupFiberCmd:
		id, found := s.lookupBundle(c.name)
		c.done <- lookupResult{bundleID: id, found: found}
	case bundleCountCmd:
		c.done <- s.bundleCount()
	default:
		s.log.Errorf("unknown coordinator command %T", cmd)
	}
}

// spawnBundles creates n new worker goroutines, each running a fresh
// Bundle, and registers them in bundle_id -> handle. Returns the new
// bundle ids in creation order.
func (s *BundleSpace) spawnBundles(n int) []int {
	ids := make([]int, 0, n)
	for i := 0; i < n; i++ {
		id := s.nextBundleID
		s.nextBundleID++
		b := newBundle(id, s.cmdCh, s.bus, s.loggerFiberName)
		s.bundles[id] = bundleHandle{id: id, cmdCh: b.cmdCh}
		s.bundleOrder = append(s.bundleOrder, id)
		ids = append(ids, id)

		s.wg.Add(1)
		go func(bundle *Bundle) {
			defer s.wg.Done()
			if s.initFunc != nil {
				s.initFunc(bundle)
			}
			bundle.run()
		}(b)

		if s.bus != nil {
			s.bus.Publish("bundle.spawned", id)
		}
	}
	return ids
}

// spawnFiber places a new fiber on the bundle chosen by the
// round-robin cursor, advancing the cursor modulo the current bundle
// count, and records the placement.
func (s *BundleSpace) spawnFiber(name string, body Body, args interface{}) {
	if len(s.bundleOrder) == 0 {
		s.log.WithField("fiber", name).Error("spawn_fiber with no bundles in the space")
		return
	}
	id := s.bundleOrder[s.rrCursor%len(s.bundleOrder)]
	s.rrCursor++
	s.fiberBundle[name] = id
	s.bundles[id].cmdCh <- spawnLocalFiberCmd{name: name, body: body, args: args}
}

// spawnFiberInSpecificBundle is spawnFiber with an explicit target,
// used for co-location.
func (s *BundleSpace) spawnFiberInSpecificBundle(name string, body Body, bundleID int, args interface{}) {
	handle, ok := s.bundles[bundleID]
	if !ok {
		s.log.WithFields(log.Fields{"fiber": name, "bundle": bundleID}).Error("spawn_fiber_in_specific_bundle: unknown bundle")
		return
	}
	s.fiberBundle[name] = bundleID
	handle.cmdCh <- spawnLocalFiberCmd{name: name, body: body, args: args}
}

// relayMessage looks up receiver's bundle and posts receiveRelayed
// there. An unknown receiver is a silent drop at the messaging level,
// with a diagnostic surfaced on the lifecycle bus rather than an error
// returned to the sender — sends are one-way and never block on
// whether the receiver turns out to exist.
func (s *BundleSpace) relayMessage(sender, receiver, msgType string, content interface{}) {
	id, ok := s.fiberBundle[receiver]
	if !ok {
		s.log.WithFields(log.Fields{"sender": sender, "receiver": receiver}).Debug("relay to unknown receiver, dropped")
		if s.bus != nil {
			s.bus.Publish("relay.unknown_receiver", receiver)
		}
		return
	}
	handle, ok := s.bundles[id]
	if !ok {
		// the fiber's bundle no longer exists: drop the stale placement
		// and the message, without a log line or lifecycle event.
		delete(s.fiberBundle, receiver)
		return
	}
	handle.cmdCh <- receiveRelayedCmd{sender: sender, receiver: receiver, msgType: msgType, content: content}
}

// unregisterFiber drops a fiber's placement entry, but only if it
// still points at the bundle asking for the removal — guards against
// a stale unregister arriving after the name was already respawned
// elsewhere.
func (s *BundleSpace) unregisterFiber(name string, bundleID int) {
	if current, ok := s.fiberBundle[name]; ok && current == bundleID {
		delete(s.fiberBundle, name)
	}
}

// lookupBundle reports the bundle id for a live fiber name, and is
// used by tests to verify invariant 1 (every live fiber has exactly
// one recorded bundle id). It must be called through the coordinator
// event loop (see Universe.Lookup in universe.go) rather than
// directly, to respect thread confinement.
func (s *BundleSpace) lookupBundle(name string) (int, bool) {
	id, ok := s.fiberBundle[name]
	return id, ok
}

func (s *BundleSpace) bundleCount() int {
	return len(s.bundleOrder)
}
