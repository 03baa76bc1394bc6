package journal

// ring is a fixed-capacity FIFO. Pushing onto a full ring evicts the oldest
// element and zeroes its slot so the evicted value can be collected.
type ring[T any] struct {
	buf  []T
	head int // index of the oldest element
	size int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) len() int { return r.size }

func (r *ring[T]) cap() int { return len(r.buf) }

// push appends v and returns the evicted element, if any.
func (r *ring[T]) push(v T) (evicted T, ok bool) {
	if r.size == len(r.buf) {
		evicted, ok = r.buf[r.head], true
		var zero T
		r.buf[r.head] = zero
		r.head = (r.head + 1) % len(r.buf)
		r.size--
	}
	r.buf[(r.head+r.size)%len(r.buf)] = v
	r.size++
	return evicted, ok
}

// at returns a pointer to the i-th element counted from the oldest.
func (r *ring[T]) at(i int) *T {
	return &r.buf[(r.head+i)%len(r.buf)]
}

// slice copies the contents, oldest first.
func (r *ring[T]) slice() []T {
	out := make([]T, r.size)
	for i := range out {
		out[i] = *r.at(i)
	}
	return out
}
