package fiberbundle

// readySet is the bundle's ready set: an insertion-ordered set of
// fiber names with pending work. Ordering matters for fairness — the
// scheduler resumes fibers in the order they became ready, not in map
// iteration order.
type readySet struct {
	order []string
	pos   map[string]int
}

func newReadySet() *readySet {
	return &readySet{pos: make(map[string]int)}
}

// Add inserts name at the tail if not already present. Reports
// whether it was newly added.
func (r *readySet) Add(name string) bool {
	if _, ok := r.pos[name]; ok {
		return false
	}
	r.pos[name] = len(r.order)
	r.order = append(r.order, name)
	return true
}

// Remove deletes name if present.
func (r *readySet) Remove(name string) {
	idx, ok := r.pos[name]
	if !ok {
		return
	}
	r.order = append(r.order[:idx], r.order[idx+1:]...)
	delete(r.pos, name)
	for i := idx; i < len(r.order); i++ {
		r.pos[r.order[i]] = i
	}
}

func (r *readySet) Contains(name string) bool {
	_, ok := r.pos[name]
	return ok
}

func (r *readySet) Len() int {
	return len(r.order)
}

// Snapshot returns the current insertion-ordered names. The scheduler
// takes a snapshot before a pass so that fibers which become ready
// mid-pass (via a local send) are picked up on the *next* pass, not
// the current one — a running pass always finishes with the fiber set
// it started with.
func (r *readySet) Snapshot() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
