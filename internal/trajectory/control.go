package trajectory

// HitFunc reports whether a pointer event landed on the slide control.
type HitFunc func(ev PointerEvent) bool

// Control binds a Sampler to a Router. It holds at most one press
// subscription (while attached) and one gesture subscription (while a drag is
// in progress), and nothing else.
type Control struct {
	router  *Router
	sampler *Sampler
	hit     HitFunc

	releasePress   func()
	releaseGesture func()

	trace    *Trace
	onStart  func()
	onFinish func(Trace)
}

// NewControl builds a detached control.
func NewControl(router *Router, sampler *Sampler, hit HitFunc) *Control {
	return &Control{router: router, sampler: sampler, hit: hit}
}

// OnStart registers a callback invoked when a drag begins.
func (c *Control) OnStart(fn func()) { c.onStart = fn }

// OnFinish registers a callback invoked with every completed trace.
func (c *Control) OnFinish(fn func(Trace)) { c.onFinish = fn }

// Attach starts listening for presses on the control. Attaching again first
// drops the previous bindings, so a control never holds two press handlers.
func (c *Control) Attach() {
	c.Detach()
	c.releasePress = c.router.Subscribe(c.handlePress)
}

// Detach releases every subscription the control holds and abandons a drag
// in progress.
func (c *Control) Detach() {
	c.endGesture(false)
	if c.releasePress != nil {
		c.releasePress()
		c.releasePress = nil
	}
}

// Attached reports whether the press handler is registered.
func (c *Control) Attached() bool { return c.releasePress != nil }

// Dragging reports whether a gesture is in progress.
func (c *Control) Dragging() bool { return c.releaseGesture != nil }

// Offset is the current control position in track units.
func (c *Control) Offset() int { return c.sampler.Offset() }

// TrackMax is the track length in units.
func (c *Control) TrackMax() int { return c.sampler.TrackMax() }

// Trace returns the last completed trace of this session.
func (c *Control) Trace() (Trace, bool) {
	if c.trace == nil {
		return Trace{}, false
	}
	return *c.trace, true
}

// Discard drops any drag in progress, the completed trace and the control
// position. Press handling stays attached.
func (c *Control) Discard() {
	c.endGesture(false)
	c.trace = nil
	c.sampler.Reset()
}

func (c *Control) handlePress(ev PointerEvent) {
	if ev.Kind != PointerDown || !c.hit(ev) {
		return
	}
	// A press while a gesture is open means the release was lost; close it
	// with what was recorded before starting over.
	if c.Dragging() {
		c.endGesture(true)
	}

	c.trace = nil
	c.sampler.Begin(ev.X)
	c.releaseGesture = c.router.Subscribe(c.handleGesture)
	if c.onStart != nil {
		c.onStart()
	}
}

func (c *Control) handleGesture(ev PointerEvent) {
	switch ev.Kind {
	case PointerMove:
		c.sampler.Move(ev.X)
	case PointerUp:
		c.endGesture(true)
	}
}

// endGesture releases the gesture subscription on every path. When keep is
// set the finished trace is stored.
func (c *Control) endGesture(keep bool) {
	if c.releaseGesture != nil {
		c.releaseGesture()
		c.releaseGesture = nil
	}
	trace, ok := c.sampler.End()
	if !ok || !keep {
		return
	}
	c.trace = &trace
	if c.onFinish != nil {
		c.onFinish(trace)
	}
}
