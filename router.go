package fiberbundle

// RouteFunc inspects a message's content and, if it wants to claim
// the message, returns the receiver to forward it to and true. The
// first RouteFunc in the chain to claim a message wins.
type RouteFunc func(content interface{}) (receiver string, ok bool)

// NewRouter builds a Body that forwards every incoming message to the
// first matching route, preserving the original sender (via
// Context.Forward) so the eventual receiver sees who really sent it.
// A message no route claims is published on bus (if non-nil) as
// "router.unmatched" instead of being silently eaten — this is pure
// message forwarding, not fault supervision or retry logic.
//
// bus is captured at construction time rather than threaded through
// the fiber's args, since args is the spawner's per-fiber startup
// payload and a router's diagnostics sink is a property of the router
// itself, fixed once when it is built.
func NewRouter(routes []RouteFunc, bus *LifecycleBus) Body {
	return Func(func(ctx *Context, args interface{}) {
		ctx.ReceiveForever(ReceiveOptions{}, func(sender, msgType string, content interface{}) {
			for _, route := range routes {
				if receiver, ok := route(content); ok {
					ctx.Forward(receiver, sender, msgType, content)
					return
				}
			}
			if bus != nil {
				bus.Publish("router.unmatched", content)
			}
		})
	})
}
