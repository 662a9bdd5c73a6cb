package audio

import (
	"sync"
)

// RingBuffer is a thread-safe byte queue between a producer and an audio
// device callback. One slot is kept free to tell full from empty.
type RingBuffer struct {
	buffer []byte
	size   int
	read   int
	write  int
	mu     sync.Mutex
}

// NewRingBuffer creates a ring buffer holding up to size-1 bytes
func NewRingBuffer(size int) *RingBuffer {
	if size < 2 {
		size = 2
	}
	return &RingBuffer{
		buffer: make([]byte, size),
		size:   size,
	}
}

// Write writes data to the ring buffer.
// Returns the number of bytes written (may be less than len(data) if buffer is full)
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for written < len(data) {
		space := rb.space()
		if space == 0 {
			break
		}
		// Copy up to the end of the backing slice in one go
		end := rb.size
		if rb.read > rb.write {
			end = rb.read - 1
		} else if rb.read == 0 {
			end = rb.size - 1
		}
		n := copy(rb.buffer[rb.write:end], data[written:])
		if n == 0 {
			break
		}
		rb.write = (rb.write + n) % rb.size
		written += n
	}

	return written
}

// Read reads data from the ring buffer
// Returns the number of bytes read
func (rb *RingBuffer) Read(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.readLocked(data)
}

// ReadPadded fills data completely, padding with silence once the buffer
// runs dry. Returns the number of queued bytes consumed.
func (rb *RingBuffer) ReadPadded(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := rb.readLocked(data)
	for i := n; i < len(data); i++ {
		data[i] = 0
	}
	return n
}

func (rb *RingBuffer) readLocked(data []byte) int {
	read := 0
	for read < len(data) && rb.read != rb.write {
		end := rb.write
		if rb.write < rb.read {
			end = rb.size
		}
		n := copy(data[read:], rb.buffer[rb.read:end])
		rb.read = (rb.read + n) % rb.size
		read += n
	}
	return read
}

// Available returns the number of bytes available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.available()
}

// Space returns the number of bytes available to write
func (rb *RingBuffer) Space() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.space()
}

func (rb *RingBuffer) available() int {
	if rb.write >= rb.read {
		return rb.write - rb.read
	}
	return rb.size - rb.read + rb.write
}

func (rb *RingBuffer) space() int {
	return rb.size - rb.available() - 1
}

// Clear clears the buffer
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.read = 0
	rb.write = 0
}

// IsEmpty returns true if the buffer is empty
func (rb *RingBuffer) IsEmpty() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.read == rb.write
}
