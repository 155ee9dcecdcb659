package audio

import "sync"

// Buffer accumulates PCM chunks up to a maximum duration. When full, the
// oldest audio is discarded.
type Buffer struct {
	mu       sync.Mutex
	data     []byte
	maxBytes int
	format   Format
}

// NewBuffer creates a buffer that holds up to maxDurationMs of audio.
func NewBuffer(format Format, maxDurationMs int) *Buffer {
	maxBytes := format.BytesForDurationMs(maxDurationMs)
	return &Buffer{
		data:     make([]byte, 0, min(maxBytes, 1<<20)),
		maxBytes: maxBytes,
		format:   format,
	}
}

// Write appends audio data, trimming from the front past the limit.
func (b *Buffer) Write(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, data...)
	if len(b.data) > b.maxBytes {
		excess := len(b.data) - b.maxBytes
		b.data = b.data[excess:]
	}
}

// Read returns a copy of all buffered audio.
func (b *Buffer) Read() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Take returns the buffered audio and empties the buffer.
func (b *Buffer) Take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.data
	b.data = make([]byte, 0, cap(out))
	return out
}

// Len returns the current buffer size in bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// DurationMs returns the buffered duration in milliseconds.
func (b *Buffer) DurationMs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.format.DurationMs(len(b.data))
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = b.data[:0]
}
