// File: pool/batch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Batch of api.Buffer views released together, e.g. after a vectored write.
// This implementation is NOT thread-safe and avoids mutex in hot-path.

package pool

import "github.com/momentics/hioload-mem/api"

// BufferBatch is a minimal zero-alloc batch of api.Buffer.
type BufferBatch struct {
	buffers []api.Buffer
	bytes   int
}

// NewBufferBatch creates a new batch with given capacity.
func NewBufferBatch(capacity int) *BufferBatch {
	return &BufferBatch{
		buffers: make([]api.Buffer, 0, capacity),
	}
}

// Append adds a buffer to the batch.
func (b *BufferBatch) Append(buf api.Buffer) {
	b.buffers = append(b.buffers, buf)
	b.bytes += buf.Len()
}

// Len returns number of items in the batch.
func (b *BufferBatch) Len() int {
	return len(b.buffers)
}

// Bytes returns the summed length of all buffers.
func (b *BufferBatch) Bytes() int {
	return b.bytes
}

// Get retrieves item at index.
func (b *BufferBatch) Get(idx int) api.Buffer {
	return b.buffers[idx]
}

// Vectors returns the buffers' slices in order, ready for a vectored write.
func (b *BufferBatch) Vectors() [][]byte {
	out := make([][]byte, len(b.buffers))
	for i, buf := range b.buffers {
		out[i] = buf.Bytes()
	}
	return out
}

// Release releases every buffer and resets the batch.
func (b *BufferBatch) Release() {
	for i, buf := range b.buffers {
		buf.Release()
		b.buffers[i] = nil
	}
	b.Reset()
}

// Reset clears the batch retaining underlying storage.
func (b *BufferBatch) Reset() {
	b.buffers = b.buffers[:0]
	b.bytes = 0
}
