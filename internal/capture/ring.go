package capture

// Ring is a bounded FIFO of audio chunks. When full, pushing evicts the
// oldest chunk, so it always holds the most recent window of the call.
type Ring struct {
	chunks   [][]byte
	capacity int
	bytes    int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Ring{
		chunks:   make([][]byte, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a chunk, evicting the oldest when at capacity. The chunk is
// copied; websocket read buffers get reused by the library.
func (r *Ring) Push(chunk []byte) {
	cp := make([]byte, len(chunk))
	copy(cp, chunk)

	if len(r.chunks) == r.capacity {
		r.bytes -= len(r.chunks[0])
		r.chunks = r.chunks[1:]
	}
	r.chunks = append(r.chunks, cp)
	r.bytes += len(cp)
}

// Len returns the number of buffered chunks.
func (r *Ring) Len() int {
	return len(r.chunks)
}

// Bytes returns the total buffered payload size.
func (r *Ring) Bytes() int {
	return r.bytes
}

// Concat joins all buffered chunks oldest-first.
func (r *Ring) Concat() []byte {
	out := make([]byte, 0, r.bytes)
	for _, c := range r.chunks {
		out = append(out, c...)
	}
	return out
}

// Chunk returns the i-th oldest chunk. Test helper.
func (r *Ring) Chunk(i int) []byte {
	return r.chunks[i]
}
