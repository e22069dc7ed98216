package fiberbundle

import "time"

// ReceiveOptions controls selective receive. A nil whitelist means
// "accept all" for that dimension. Batch defaults to 1 if <= 0.
type ReceiveOptions struct {
	TypeWhitelist   []string
	SenderWhitelist []string
	Batch           int
}

func (o ReceiveOptions) batch() int {
	if o.Batch <= 0 {
		return 1
	}
	return o.Batch
}

// Handler is invoked once per message a receive call accepts.
type Handler func(sender, msgType string, content interface{})

// Context is the capability a running fiber body is given: message
// send/receive, self-identification, PID minting, and yielding. Every
// operation a fiber body can perform takes this Context explicitly
// rather than reaching for ambient or thread-local fiber state, so
// there is no "called outside a fiber" case to detect — a Context
// only ever exists because a fiber body is currently running.
type Context struct {
	fiber *Fiber
}

// Self returns the calling fiber's own name (current_fiber()).
func (c *Context) Self() string {
	return c.fiber.name
}

// Send delivers a message to receiver, with this fiber as sender.
// Local delivery is immediate; cross-bundle delivery is relayed
// through the coordinator asynchronously. Send never blocks.
func (c *Context) Send(receiver, msgType string, content interface{}) {
	c.fiber.bundle.send(c.fiber.name, receiver, msgType, content)
}

// Forward re-sends a message keeping its original sender instead of
// wrapping it as a fresh send from the forwarder. Used by NewRouter so
// a routed message still looks, to its eventual receiver, like it
// came from whoever sent it in the first place.
func (c *Context) Forward(receiver, sender, msgType string, content interface{}) {
	c.fiber.bundle.send(sender, receiver, msgType, content)
}

// NewPID mints a globally unique identifier, {bundle_id}_{counter},
// without any cross-bundle coordination.
func (c *Context) NewPID() string {
	return c.fiber.bundle.newPID()
}

// SpawnFiber creates a new fiber, placed by the coordinator's
// round-robin cursor.
func (c *Context) SpawnFiber(name string, body Body, args interface{}) {
	c.fiber.bundle.spawnFiberViaCoordinator(name, body, args)
}

// SpawnFiberInBundle creates a new fiber, pinned to bundleID.
func (c *Context) SpawnFiberInBundle(name string, body Body, bundleID int, args interface{}) {
	c.fiber.bundle.spawnFiberInSpecificBundleViaCoordinator(name, body, bundleID, args)
}

// ReceiveOnce pops at most opts.Batch matching messages, invoking
// handler once per message in arrival order, then returns. If no
// message currently matches, the fiber suspends and is re-entered
// when one does. After the batch is processed, if the (unfiltered)
// mailbox is now empty the fiber is removed from the ready set —
// otherwise an enclosing receive may still have work to do with what
// is left (a nested receive inside handler may have left messages of
// its own behind).
func (c *Context) ReceiveOnce(opts ReceiveOptions, handler Handler) {
	f := c.fiber
	for {
		batch := f.mailbox.PopMatching(opts.TypeWhitelist, opts.SenderWhitelist, opts.batch())
		if len(batch) == 0 {
			f.markWaiting()
			f.suspend()
			f.state = Running
			continue
		}
		for _, m := range batch {
			handler(m.Sender, m.Type, m.Content)
		}
		if !f.mailbox.HasAny() {
			f.bundle.ready.Remove(f.name)
		}
		return
	}
}

// ReceiveForever loops ReceiveOnce's matching step indefinitely: after
// each processed batch it yields once for fairness (so a
// continuously-fed fiber can't starve its bundle-mates) and then
// retries. It never returns, so nothing after it in the fiber body
// runs.
func (c *Context) ReceiveForever(opts ReceiveOptions, handler Handler) {
	f := c.fiber
	for {
		batch := f.mailbox.PopMatching(opts.TypeWhitelist, opts.SenderWhitelist, opts.batch())
		if len(batch) == 0 {
			f.markWaiting()
			f.suspend()
			f.state = Running
			continue
		}
		for _, m := range batch {
			handler(m.Sender, m.Type, m.Content)
		}
		c.YieldAlive()
	}
}

// WaitForever parks the calling fiber permanently: it leaves the
// ready set and is never resumed again by the scheduler unless a
// message arrives, at which point it is briefly resumed and
// immediately parks again without inspecting the mailbox — it truly
// never processes anything. Use ReceiveForever instead if the fiber
// should actually act on messages.
func (c *Context) WaitForever() {
	f := c.fiber
	for {
		f.markWaiting()
		f.suspend()
		f.state = Running
	}
}

// YieldAlive marks the fiber ready for the next scheduler pass and
// suspends once. Long CPU-bound fiber bodies call this periodically to
// voluntarily share the bundle with their neighbors.
func (c *Context) YieldAlive() {
	f := c.fiber
	f.markReady()
	f.suspend()
	f.state = Running
}

// callTimeoutType is the synthetic message type Call's watchdog timer
// sends to wake a fiber that would otherwise wait forever for a reply
// that never comes. It is namespaced with "!" so no ordinary sender
// can plausibly collide with it (fiber names reject a leading "!").
const callTimeoutType = "!call_timeout"

// Call is synchronous-request sugar built on the same pop-or-suspend
// loop ReceiveOnce uses: it sends a request, arms a watchdog timer,
// and then selectively receives either the reply or the watchdog's
// timeout message.
// Because the wait is an ordinary suspend/resume, not a blocking
// channel select, it only ever parks the calling fiber's own
// coroutine — it can never stall the bundle's scheduler goroutine,
// which still has every other fiber in the bundle to get to.
//
// The watchdog doesn't deliver its timeout message directly: it posts
// a callTimeoutCmd carrying the generation this Call was armed under,
// and the bundle only turns that into a mailbox message if the
// generation still matches when the command is processed. Bumping the
// generation on every return from Call (below) means a watchdog that
// fires after a reply already arrived — timer.Stop() can race a timer
// that has already started running — is caught and discarded there,
// instead of racing mailbox delivery against this function returning
// and leaking a stray "!call_timeout" into some later, unrelated
// receive in the same fiber body.
func (c *Context) Call(receiver, msgType string, content interface{}, timeout time.Duration) (Message, bool) {
	f := c.fiber
	f.callSeq++
	seq := f.callSeq
	defer func() { f.callSeq++ }()

	c.Send(receiver, msgType, content)

	timer := time.AfterFunc(timeout, func() {
		f.bundle.postCallTimeout(f.name, seq)
	})
	defer timer.Stop()

	// Two independent whitelists, checked in order, rather than one
	// combined sender whitelist: Mailbox.PopMatching ANDs its type and
	// sender filters, so "any type from receiver, or specifically
	// callTimeoutType from the watchdog" can't be expressed as a
	// single PopMatching call.
	for {
		if batch := f.mailbox.PopMatching(nil, []string{receiver}, 1); len(batch) > 0 {
			if !f.mailbox.HasAny() {
				f.bundle.ready.Remove(f.name)
			}
			return batch[0], true
		}
		if timedOut := f.mailbox.PopMatching([]string{callTimeoutType}, []string{systemSender}, 1); len(timedOut) > 0 {
			if !f.mailbox.HasAny() {
				f.bundle.ready.Remove(f.name)
			}
			return Message{}, false
		}
		f.markWaiting()
		f.suspend()
		f.state = Running
	}
}
