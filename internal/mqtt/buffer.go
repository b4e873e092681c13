package mqtt

// pending is an undelivered message waiting for the next successful connect.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog keeps the most recent undelivered messages, dropping the oldest
// once full. Not safe for concurrent use.
type backlog struct {
	slots   []pending
	next    int // write position
	count   int
	dropped int // messages lost since last drain
}

func newBacklog(capacity int) *backlog {
	if capacity < 1 {
		capacity = 1
	}
	return &backlog{slots: make([]pending, capacity)}
}

// add stores msg and reports whether an older message had to be dropped.
func (b *backlog) add(msg pending) bool {
	b.slots[b.next] = msg
	b.next = (b.next + 1) % len(b.slots)
	if b.count == len(b.slots) {
		b.dropped++
		return true
	}
	b.count++
	return false
}

// take removes and returns every stored message, oldest first.
func (b *backlog) take() []pending {
	if b.count == 0 {
		return nil
	}
	size := len(b.slots)
	out := make([]pending, b.count)
	first := (b.next - b.count + size) % size
	for i := range out {
		out[i] = b.slots[(first+i)%size]
	}
	b.count = 0
	b.next = 0
	b.dropped = 0
	return out
}

func (b *backlog) len() int {
	return b.count
}
