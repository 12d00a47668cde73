package resource

import (
	"sync"

	"github.com/project-ocre/ocre/pkg/ocreerr"
)

// Arena is a registry.MemoryWriter backed by a Go map instead of real
// sandbox linear memory. wazeroengine uses one per module instance to stand
// in for a region of the module's own memory reserved for event payloads;
// offsets it hands out are opaque to everything except the matching arena.
type Arena struct {
	mu     sync.Mutex
	next   uint32
	chunks map[uint32][]byte
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{chunks: make(map[uint32][]byte)}
}

// WriteBytes copies data into the arena and returns its offset.
func (a *Arena) WriteBytes(data []byte) (uint32, error) {
	buf := make([]byte, len(data))
	copy(buf, data)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	offset := a.next
	a.chunks[offset] = buf
	return offset, nil
}

// Read returns the bytes previously written at offset.
func (a *Arena) Read(offset uint32) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.chunks[offset]
	if !ok {
		return nil, ocreerr.NotFoundf("no data at offset %d", offset)
	}
	return buf, nil
}

// Free releases the chunks at offsets. This is the host side of the
// free_module_event_data primitive a module calls once it's consumed an
// event's referenced payload.
func (a *Arena) Free(offsets ...uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, offset := range offsets {
		delete(a.chunks, offset)
	}
	return nil
}
