package fiberbundle

// Universe is the opaque facade around the coordinator's goroutine.
// Every method that acts on the space posts a command onto the
// coordinator's event loop (LifecycleBus only returns the bus, and
// Stop closes the loop's stop channel) — host callers never touch a
// BundleSpace directly. Where a call needs
// to hand something back (how many bundles now exist, where a fiber
// lives), the post carries a one-shot reply channel; the coordinator's
// own processing of the command is still strictly sequential and
// asynchronous with respect to every other poster.
type Universe struct {
	space *BundleSpace
	bus   *LifecycleBus
}

// UniverseBuilder constructs a Universe: configure, then Run().
type UniverseBuilder struct {
	bus             *LifecycleBus
	initFunc        InitFunc
	loggerFiberName string
	numCPU          func() int
}

// NewUniverse starts building a Universe.
func NewUniverse() *UniverseBuilder {
	return &UniverseBuilder{bus: NewLifecycleBus()}
}

// WithInit registers the per-bundle initializer every spawned worker
// goroutine runs once, before its scheduler starts.
func (ub *UniverseBuilder) WithInit(fn InitFunc) *UniverseBuilder {
	ub.initFunc = fn
	return ub
}

// WithLoggerFiber names a fiber that additionally receives, as
// ordinary messages of type "diagnostic:<topic>", the lifecycle events
// its bundles publish (fiber.spawned, fiber.exited, fiber.panic).
// Events the coordinator publishes (bundle.spawned,
// relay.unknown_receiver) and router.unmatched go to the lifecycle bus
// only and are not forwarded. The fiber must be spawned by the
// caller; events published before it exists are simply relayed to an
// unknown receiver and dropped, same as any other send to a name
// nobody has claimed yet.
func (ub *UniverseBuilder) WithLoggerFiber(name string) *UniverseBuilder {
	ub.loggerFiberName = name
	return ub
}

// WithLifecycleBus lets a caller supply a bus it already holds a
// reference to (useful for subscribing before any bundle exists).
func (ub *UniverseBuilder) WithLifecycleBus(bus *LifecycleBus) *UniverseBuilder {
	ub.bus = bus
	return ub
}

// withNumCPUDetector overrides CPU-count detection for Inflate. Not
// exported: the real detector is just runtime.NumCPU; this hook exists
// solely so tests can exercise Inflate's fallback path
// deterministically.
func (ub *UniverseBuilder) withNumCPUDetector(fn func() int) *UniverseBuilder {
	ub.numCPU = fn
	return ub
}

// Run starts the coordinator goroutine and returns the Universe.
func (ub *UniverseBuilder) Run() *Universe {
	space := newBundleSpace(ub.bus, ub.initFunc, ub.loggerFiberName)
	if ub.numCPU != nil {
		space.numCPU = ub.numCPU
	}
	go space.run()
	return &Universe{space: space, bus: ub.bus}
}

// LifecycleBus returns the bus backing this universe's diagnostics,
// for host code that wants to subscribe to fiber/bundle events.
func (u *Universe) LifecycleBus() *LifecycleBus {
	return u.bus
}

// SpawnBundles starts n new worker goroutines, each running one
// bundle, and returns their ids once the coordinator has created them.
func (u *Universe) SpawnBundles(n int) []int {
	done := make(chan []int, 1)
	u.space.cmdCh <- spawnBundlesCmd{n: n, done: done}
	return <-done
}

// Inflate spawns one bundle per detected CPU core, or fallback if
// detection reports a non-positive count.
func (u *Universe) Inflate(fallback int) []int {
	done := make(chan []int, 1)
	u.space.cmdCh <- inflateCmd{fallback: fallback, done: done}
	return <-done
}

// SpawnFiber places a new fiber by the coordinator's round-robin
// cursor.
func (u *Universe) SpawnFiber(name string, body Body, args interface{}) {
	u.space.cmdCh <- spawnFiberCmd{name: name, body: body, args: args}
}

// SpawnFiberInSpecificBundle places a new fiber on an explicit bundle,
// for co-location.
func (u *Universe) SpawnFiberInSpecificBundle(name string, body Body, bundleID int, args interface{}) {
	u.space.cmdCh <- spawnFiberInSpecificBundleCmd{name: name, body: body, bundleID: bundleID, args: args}
}

// CreateCallback returns a host-thread function that, when invoked,
// delivers a message (sender=name, type="callback", content=args) to
// receiver. This is the facade-level counterpart to Bundle's own
// CreateCallback: host code never holds a *Bundle, so it has no way to
// know which bundle receiver actually lives on, and routes through the
// coordinator's ordinary relay path instead — the same way any
// cross-bundle send would. It is the only way host code, as opposed to
// a fiber body, can inject the first message that wakes a freshly
// spawned fiber up, since a fiber is not added to its bundle's ready
// set until something sends to it.
func (u *Universe) CreateCallback(name, receiver string) func(args interface{}) {
	return func(args interface{}) {
		u.space.cmdCh <- relayMessageCmd{sender: name, receiver: receiver, msgType: msgTypeCallback, content: args}
	}
}

// Lookup reports which bundle a live fiber name currently resolves
// to. Intended for host code and tests, not fiber bodies (a fiber
// body addresses receivers by name and lets Send/relay resolve them).
func (u *Universe) Lookup(name string) (bundleID int, found bool) {
	done := make(chan lookupResult, 1)
	u.space.cmdCh <- lookupFiberCmd{name: name, done: done}
	res := <-done
	return res.bundleID, res.found
}

// BundleCount reports how many bundles currently exist in the space.
func (u *Universe) BundleCount() int {
	done := make(chan int, 1)
	u.space.cmdCh <- bundleCountCmd{done: done}
	return <-done
}

// Stop halts the coordinator's event loop. It does not wait for
// individual bundles to drain; bundles are independent goroutines that
// keep running until their own process exits, matching the library's
// scope (no supervision trees, no coordinated shutdown protocol).
func (u *Universe) Stop() {
	close(u.space.stopCh)
}
