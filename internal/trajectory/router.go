package trajectory

import "sort"

// PointerKind is the phase of a pointer event.
type PointerKind int

const (
	PointerDown PointerKind = iota + 1
	PointerMove
	PointerUp
)

func (k PointerKind) String() string {
	switch k {
	case PointerDown:
		return "down"
	case PointerMove:
		return "move"
	case PointerUp:
		return "up"
	default:
		return "unknown"
	}
}

// PointerEvent is a mouse or touch event already mapped to track units on X.
// Y is the raw row so hit tests can tell the control from the rest of the
// screen.
type PointerEvent struct {
	Kind PointerKind
	X    int
	Y    int
}

// Handler receives pointer events.
type Handler func(PointerEvent)

// Router is the program-wide pointer dispatcher. Every pointer event the UI
// sees goes through Dispatch, wherever it lands on screen. Subscriptions are
// released through the func returned by Subscribe.
//
// Router is used from the UI loop only.
type Router struct {
	nextID   int
	handlers map[int]Handler
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns its release func. Calling release more
// than once is harmless.
func (r *Router) Subscribe(h Handler) (release func()) {
	r.nextID++
	id := r.nextID
	r.handlers[id] = h
	return func() {
		delete(r.handlers, id)
	}
}

// Dispatch delivers ev to the handlers registered when the call started, in
// subscription order. Handlers added during dispatch see the next event, and
// handlers released during dispatch are skipped.
func (r *Router) Dispatch(ev PointerEvent) {
	ids := make([]int, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if h, ok := r.handlers[id]; ok {
			h(ev)
		}
	}
}

// Len is the number of live subscriptions.
func (r *Router) Len() int { return len(r.handlers) }
