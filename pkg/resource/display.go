package resource

import (
	"sync"

	"github.com/project-ocre/ocre/pkg/event"
	"github.com/project-ocre/ocre/pkg/ocreerr"
	"github.com/project-ocre/ocre/pkg/registry"
)

// ColorMode is the pixel format a display reports through its capabilities.
type ColorMode uint32

const (
	ColorModeRGB565 ColorMode = iota
	ColorModeBGR565
	ColorModeRGB888
	ColorModeARGB8888
	ColorModeUnknown ColorMode = 0xFFFFFFFF
)

// touchSample is a single pointer/touch reading, queued in arrival order the
// same way the original implementation's K_MSGQ_DEFINE touch_q did.
type touchSample struct {
	x, y    int32
	pressed bool
}

const touchQueueSize = 8

// DisplayManager implements the ocre_display_* capability. There's no real
// framebuffer or touch controller backing it; Init/Flush manipulate
// in-memory display state, and PushInput is how a platform-specific backend
// (or a test) reports a touch/pointer sample, mirroring GPIOManager's Edge
// for GPIO lines.
type DisplayManager struct {
	mu          sync.Mutex
	initialized bool
	width       uint32
	height      uint32
	bpp         uint32
	colorMode   ColorMode

	touch    []touchSample
	lastSeen touchSample

	flushCount uint64

	subscribers map[event.ModuleHandle]struct{}

	queue    *event.Queue
	registry *registry.Registry
}

// NewDisplayManager returns a display manager publishing input events onto
// queue.
func NewDisplayManager(queue *event.Queue, reg *registry.Registry) *DisplayManager {
	m := &DisplayManager{
		colorMode:   ColorModeUnknown,
		subscribers: make(map[event.ModuleHandle]struct{}),
		queue:       queue,
		registry:    reg,
	}
	reg.RegisterCleanupHandler(event.ResourceDisplay, m.cleanup)
	return m
}

// Init reports the display ready with the given capabilities, the
// moral equivalent of a successful ocre_display_init_internal probe.
func (m *DisplayManager) Init(width, height, bpp uint32, colorMode ColorMode) error {
	if width == 0 || height == 0 || bpp == 0 {
		return ocreerr.InvalidArgumentf("display: width, height and bpp must be non-zero")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.width, m.height, m.bpp, m.colorMode = width, height, bpp, colorMode
	m.initialized = true
	return nil
}

// Capabilities returns the display's resolution, bytes-per-pixel and color
// mode. ocreerr.WrongState if Init hasn't run yet.
func (m *DisplayManager) Capabilities() (width, height, bpp uint32, colorMode ColorMode, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return 0, 0, 0, ColorModeUnknown, ocreerr.WrongStatef("display is not initialized")
	}
	return m.width, m.height, m.bpp, m.colorMode, nil
}

// Flush writes pixel data covering the rectangle (x1,y1)-(x2,y2), inclusive.
// len(pixels) must cover bpp*width*height of the rectangle; the manager
// keeps no backing framebuffer, only a flush counter for metrics.
func (m *DisplayManager) Flush(x1, y1, x2, y2 int32, pixels []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ocreerr.WrongStatef("display is not initialized")
	}
	if x2 < x1 || y2 < y1 {
		return ocreerr.InvalidArgumentf("display: invalid flush rectangle (%d,%d)-(%d,%d)", x1, y1, x2, y2)
	}
	w := uint64(x2-x1) + 1
	h := uint64(y2-y1) + 1
	want := uint64(m.bpp) * w * h
	if uint64(len(pixels)) < want {
		return ocreerr.InvalidArgumentf("display: flush buffer too small: have %d bytes, need %d", len(pixels), want)
	}
	m.flushCount++
	return nil
}

// RegisterCallback subscribes owner to input events raised by PushInput.
func (m *DisplayManager) RegisterCallback(owner event.ModuleHandle) error {
	m.mu.Lock()
	if _, already := m.subscribers[owner]; already {
		m.mu.Unlock()
		return ocreerr.Conflictf("display input callback already registered")
	}
	m.subscribers[owner] = struct{}{}
	m.mu.Unlock()

	m.registry.IncResource(owner, event.ResourceDisplay)
	return nil
}

// UnregisterCallback removes owner's subscription to input events.
func (m *DisplayManager) UnregisterCallback(owner event.ModuleHandle) error {
	m.mu.Lock()
	if _, ok := m.subscribers[owner]; !ok {
		m.mu.Unlock()
		return ocreerr.NotFoundf("display has no callback for this module")
	}
	delete(m.subscribers, owner)
	m.mu.Unlock()

	m.registry.DecResource(owner, event.ResourceDisplay)
	return nil
}

// PushInput reports a touch/pointer sample, queuing it for InputRead and
// publishing a event.DisplayEvent to every subscribed module. A sample that
// exactly repeats the previous one is dropped, matching the original
// touch driver's duplicate-suppression.
func (m *DisplayManager) PushInput(x, y int32, pressed bool) {
	sample := touchSample{x: x, y: y, pressed: pressed}

	m.mu.Lock()
	if sample == m.lastSeen {
		m.mu.Unlock()
		return
	}
	m.lastSeen = sample
	if len(m.touch) < touchQueueSize {
		m.touch = append(m.touch, sample)
	}
	owners := make([]event.ModuleHandle, 0, len(m.subscribers))
	for owner := range m.subscribers {
		owners = append(owners, owner)
	}
	m.mu.Unlock()

	for _, owner := range owners {
		more := len(m.touch) > 1
		m.queue.Publish(event.NewDisplayEvent(owner, x, y, pressed, more))
	}
}

// InputRead pops the oldest queued touch sample, or returns the last known
// state if the queue is empty, exactly as ocre_display_input_read does.
func (m *DisplayManager) InputRead() (x, y int32, pressed, more bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.touch) > 0 {
		s := m.touch[0]
		m.touch = m.touch[1:]
		return s.x, s.y, s.pressed, len(m.touch) > 0
	}
	return m.lastSeen.x, m.lastSeen.y, m.lastSeen.pressed, false
}

// Count reports the number of completed Flush calls, for metrics reporting.
func (m *DisplayManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(m.flushCount)
}

func (m *DisplayManager) cleanup(owner event.ModuleHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, owner)
}
