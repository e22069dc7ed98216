package fiberbundle

// A Message is the ordered triple every fiber communicates with:
// who sent it, what kind of message it is, and the payload. Messages
// are values — they are copied on send, never shared.
type Message struct {
	Sender  string
	Type    string
	Content interface{}
}

// Reserved message types used internally by the scheduler and the
// lifecycle bus. User-chosen types should avoid the "!" prefix: it is
// reserved for the runtime's own synthetic messages so they can never
// collide with an ordinary sender- or type-name.
const (
	msgTypePoison     = "!poison"
	msgTypeCallback   = "callback"
	msgTypeDiagnostic = "diagnostic"
)

// systemSender is used as the Sender of messages the runtime itself
// generates (diagnostics forwarded to a logger fiber, Call watchdog
// timeouts).
const systemSender = "!system"
