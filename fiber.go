package fiberbundle

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// State is a fiber's position in its own lifecycle.
type State int

const (
	// Running is set while the fiber's body is actually executing.
	Running State = iota
	// Waiting is set while a fiber is suspended inside a receive that
	// found no matching message, or inside WaitForever.
	Waiting
	// Exiting is terminal: the body returned, or panicked and was
	// recovered. An Exiting fiber is removed from its bundle and from
	// the coordinator's placement map.
	Exiting
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Waiting:
		return "waiting"
	case Exiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// Body is the capability a fiber executes: a single Run method
// parameterized over the context it is given and the args it was
// spawned with.
type Body interface {
	Run(ctx *Context, args interface{})
}

// Func adapts a plain function into a Body — the idiomatic Go shape
// for "a function that implements an interface" (cf. http.HandlerFunc).
type Func func(ctx *Context, args interface{})

// Run implements Body.
func (f Func) Run(ctx *Context, args interface{}) { f(ctx, args) }

// coroutine is the resume/yield rendezvous that makes a goroutine
// behave like a cooperatively-scheduled fiber: the owning bundle's
// scheduler goroutine only ever runs one side of this handshake at a
// time, so "resume until next yield" holds without any extra locking.
type coroutine struct {
	resumeCh chan struct{}
	yieldCh  chan struct{}
	started  bool
	done     bool
}

func newCoroutine() *coroutine {
	return &coroutine{
		resumeCh: make(chan struct{}),
		yieldCh:  make(chan struct{}),
	}
}

// Fiber is a named, cooperatively-scheduled unit of execution bound
// to one mailbox and owned by exactly one bundle for its lifetime.
type Fiber struct {
	name    string
	bundle  *Bundle
	body    Body
	args    interface{}
	mailbox *Mailbox
	state   State
	co      *coroutine
	ctx     *Context

	// callSeq is this fiber's Call generation: Call bumps it once when
	// it starts and once more when it returns, so a watchdog armed
	// under an earlier value no longer matches. It is only ever read or
	// written from goroutines the
	// coroutine rendezvous guarantees aren't running concurrently (the
	// fiber's own goroutine while executing Call, and the bundle's
	// scheduler goroutine while delivering a watchdog timeout), so it
	// needs no atomic operations despite being touched from both.
	callSeq uint64
}

func newFiber(name string, b *Bundle, body Body, args interface{}) *Fiber {
	f := &Fiber{
		name:    name,
		bundle:  b,
		body:    body,
		args:    args,
		mailbox: newMailbox(),
		state:   Waiting,
		co:      newCoroutine(),
	}
	f.ctx = &Context{fiber: f}
	return f
}

// Name returns the fiber's unique name.
func (f *Fiber) Name() string { return f.name }

// State returns the fiber's current lifecycle state.
func (f *Fiber) State() State { return f.state }

// resume runs the fiber's coroutine until it next yields (suspends at
// a receive with no match, at yield_alive, at wait_forever, or
// terminates). It must only ever be called from the owning bundle's
// scheduler goroutine.
func (f *Fiber) resume() {
	if f.co.done {
		return
	}
	f.state = Running
	if !f.co.started {
		f.co.started = true
		go f.runBody()
	} else {
		f.co.resumeCh <- struct{}{}
	}
	<-f.co.yieldCh
}

// runBody is the top of the fiber's dedicated goroutine. It always
// runs until the body returns or panics, then marks the coroutine
// done and signals the scheduler exactly once more so resume()'s
// receive on yieldCh is satisfied.
func (f *Fiber) runBody() {
	defer func() {
		if r := recover(); r != nil {
			f.bundle.reportFiberPanic(f, r)
		}
		f.state = Exiting
		f.co.done = true
		f.bundle.onFiberExit(f)
		f.co.yieldCh <- struct{}{}
	}()
	f.body.Run(f.ctx, f.args)
}

// suspend yields control back to the scheduler and blocks until the
// scheduler resumes this fiber again. Only ever called from inside the
// fiber's own goroutine (i.e. from within Body.Run, via Context).
func (f *Fiber) suspend() {
	f.co.yieldCh <- struct{}{}
	<-f.co.resumeCh
}

func (f *Fiber) markWaiting() {
	f.state = Waiting
	f.bundle.ready.Remove(f.name)
}

func (f *Fiber) markReady() {
	if f.bundle.ready.Add(f.name) {
		log.WithFields(log.Fields{"bundle": f.bundle.id, "fiber": f.name}).Trace("fiber marked ready")
	}
}

func (f *Fiber) validName() error {
	if f.name == "" || f.name[0] == '!' {
		return fmt.Errorf("invalid fiber name %q", f.name)
	}
	return nil
}
