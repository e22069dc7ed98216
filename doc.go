// Package fiberbundle provides Erlang-style actor concurrency on top
// of multiple OS threads. The vocabulary is deliberately bundle/fiber
// rather than system/actor: a Fiber is the lightweight, cooperatively
// scheduled unit of work, and a Bundle is the worker goroutine a group
// of fibers time-shares — the names describe what each piece actually
// is, a bundle of fibers, rather than borrowing a name from another
// concurrency model.
//
// The unit of concurrency is a Fiber: a named, cooperatively-scheduled
// body that owns private state and talks to other fibers only by
// asynchronous message passing through a Mailbox. Fibers are grouped
// into Bundles, one per worker goroutine; all bundles in a process
// form a bundle space, coordinated by a dedicated goroutine reachable
// through the Universe facade.
//
// Within a bundle, scheduling is strictly cooperative: a fiber only
// ever suspends at an explicit receive that found nothing to match,
// or at an explicit yield. Across bundles, everything is ordinary
// goroutine concurrency talking only through channels — no fiber-level
// state is ever shared across a bundle boundary, so no locks are
// needed to keep a bundle's own fiber set and mailboxes consistent.
//
// A minimal program:
//
//	universe := fiberbundle.NewUniverse().Run()
//	universe.SpawnBundles(1)
//	universe.SpawnFiber("greeter", fiberbundle.Func(func(ctx *fiberbundle.Context, _ interface{}) {
//		ctx.ReceiveOnce(fiberbundle.ReceiveOptions{}, func(sender, _ string, content interface{}) {
//			ctx.Send(sender, "pong", content)
//		})
//	}), nil)
//
// This package does not provide multi-node distribution, preemptive
// scheduling, cross-sender ordering guarantees, fault supervision
// trees, delivery acknowledgements, or backpressure across the
// routing fabric.
package fiberbundle
