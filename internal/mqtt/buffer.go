package mqtt

import "github.com/rs/zerolog"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO holding messages published while the
// broker is unreachable. The oldest message is dropped when full.
// Not safe for concurrent use.
type ringBuffer struct {
	msgs    []bufferedMsg
	next    int
	n       int
	dropped int
	log     zerolog.Logger
}

func newRingBuffer(capacity int, log zerolog.Logger) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{msgs: make([]bufferedMsg, capacity), log: log}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	size := len(r.msgs)
	if r.n == size {
		if r.dropped == 0 {
			r.log.Warn().Int("capacity", size).Msg("mqtt buffer full, dropping oldest")
		}
		r.dropped++
	} else {
		r.n++
	}
	r.msgs[r.next] = msg
	r.next = (r.next + 1) % size
}

// drainAll returns the buffered messages oldest first and empties the
// buffer. The second result is how many messages were lost to overflow.
func (r *ringBuffer) drainAll() ([]bufferedMsg, int) {
	dropped := r.dropped
	if r.n == 0 {
		r.dropped = 0
		return nil, dropped
	}

	size := len(r.msgs)
	out := make([]bufferedMsg, 0, r.n)
	for i := r.next - r.n; i < r.next; i++ {
		out = append(out, r.msgs[(i+size)%size])
	}

	r.next, r.n, r.dropped = 0, 0, 0
	return out, dropped
}

func (r *ringBuffer) len() int {
	return r.n
}
