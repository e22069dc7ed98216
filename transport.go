package fiberbundle

// The only cross-thread primitive the model needs is "post
// asynchronously a typed command onto a recipient's event loop for
// execution there." In Go, goroutines play the role of OS threads and
// a buffered channel plays the role of each thread's event loop
// queue. Commands between bundles and the coordinator are
// fire-and-forget; replies between fibers are always modeled as
// ordinary fiber messages. The only commands that carry a reply
// channel (done) are the host-facing admin and query commands the
// Universe facade posts: spawnBundlesCmd, inflateCmd, lookupFiberCmd
// and bundleCountCmd.

// commandQueueDepth bounds how many outstanding cross-thread commands
// a bundle or the coordinator will buffer before a poster blocks. The
// coordinator's event loop (and every bundle's) is always running, so
// this is a generous cushion against bursts, not a backpressure
// mechanism — there is no guarantee about queue depth across the
// routing fabric, just a buffer large enough that ordinary bursts
// never need one.
const commandQueueDepth = 1024

// bundleCommand is anything the coordinator (or another bundle, via
// the coordinator, or a host-thread callback) can post onto a
// bundle's own command channel.
type bundleCommand interface{}

// spawnLocalFiberCmd asks the target bundle to create and register a
// new local fiber. It is used both when the coordinator places a
// freshly-spawned fiber and, conceptually, could be reused by any
// other producer of bundle-bound work.
type spawnLocalFiberCmd struct {
	name string
	body Body
	args interface{}
}

// receiveRelayedCmd asks the target bundle to append a message to a
// local fiber's mailbox on the bundle's own goroutine. This is the
// shape both cross-bundle relay and create_callback ultimately reduce
// to; Call's watchdog uses callTimeoutCmd instead.
type receiveRelayedCmd struct {
	sender   string
	receiver string
	msgType  string
	content  interface{}
}

// callTimeoutCmd asks the target bundle to deliver a Call watchdog's
// timeout message, but only if seq still matches the fiber's current
// call generation — a Call that already completed (by reply or by an
// earlier timeout) bumps that generation, so a watchdog that fires
// after the fact is provably stale and gets dropped instead of landing
// in the fiber's mailbox for some unrelated later receive to trip over.
type callTimeoutCmd struct {
	receiver string
	seq      uint64
}

// stopCmd asks a bundle's event loop to return. The coordinator does
// not handle it; its loop stops when BundleSpace.stopCh is closed.
type stopCmd struct{}

// coordinatorCommand is anything posted onto the coordinator's command
// channel.
type coordinatorCommand interface{}

type spawnBundlesCmd struct {
	n    int
	done chan []int // newly created bundle ids, for callers that want to know
}

type inflateCmd struct {
	fallback int
	done     chan []int
}

type spawnFiberCmd struct {
	name string
	body Body
	args interface{}
}

type spawnFiberInSpecificBundleCmd struct {
	name     string
	body     Body
	bundleID int
	args     interface{}
}

type relayMessageCmd struct {
	sender   string
	receiver string
	msgType  string
	content  interface{}
}

type unregisterFiberCmd struct {
	name     string
	bundleID int
}

// lookupFiberCmd is a read-only query posted by Universe.Lookup (host
// or test code only — fiber bodies never need this, they address
// receivers by name and let send/relay resolve them). done is always
// buffered by 1 so the coordinator's post never blocks on a caller
// that stopped listening.
type lookupFiberCmd struct {
	name string
	done chan lookupResult
}

type lookupResult struct {
	bundleID int
	found    bool
}

// bundleCountCmd is a read-only query for how many bundles currently
// exist in the space.
type bundleCountCmd struct {
	done chan int
}
