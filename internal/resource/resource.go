// Package resource tracks one remote fetch per view: whether it is in
// flight, what it last returned, and which response is current.
package resource

// State is the lifecycle of a fetch.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Ticket identifies one fetch. Only the newest ticket may resolve.
type Ticket uint64

// Resource holds the value of a remote fetch. It is not safe for concurrent
// use; views own theirs and mutate it on the event loop.
type Resource[T any] struct {
	state   State
	gen     Ticket
	value   T
	hasLast bool
	err     error
}

// Begin starts a fetch and returns its ticket. Any earlier ticket becomes stale.
func (r *Resource[T]) Begin() Ticket {
	r.gen++
	r.state = Loading
	r.err = nil
	return r.gen
}

// Resolve records the outcome of the fetch started with t. It reports false
// and changes nothing when t is stale. On failure the previous value stays
// available through Last.
func (r *Resource[T]) Resolve(t Ticket, v T, err error) bool {
	if t != r.gen || r.state != Loading {
		return false
	}
	if err != nil {
		r.state = Failed
		r.err = err
		return true
	}
	r.state = Ready
	r.value = v
	r.hasLast = true
	return true
}

// Set replaces the value directly, for local edits that need no fetch.
// In-flight tickets become stale.
func (r *Resource[T]) Set(v T) {
	r.gen++
	r.state = Ready
	r.value = v
	r.hasLast = true
	r.err = nil
}

// Reset returns the resource to Idle and forgets the last value.
func (r *Resource[T]) Reset() {
	var zero T
	r.gen++
	r.state = Idle
	r.value = zero
	r.hasLast = false
	r.err = nil
}

func (r *Resource[T]) State() State { return r.state }
func (r *Resource[T]) Err() error   { return r.err }

// Value returns the value when Ready.
func (r *Resource[T]) Value() (T, bool) {
	if r.state != Ready {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Last returns the most recent successful value, whatever the current state.
func (r *Resource[T]) Last() (T, bool) {
	return r.value, r.hasLast
}

// Loading reports whether a fetch is in flight.
func (r *Resource[T]) Loading() bool { return r.state == Loading }
