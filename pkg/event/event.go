// Package event defines the events host resource managers (timers, GPIO,
// sensors, messaging) raise against a sandboxed module, and the bounded
// queue they're raised through. pkg/registry drains the queue and dispatches
// each event to the module that owns it; pkg/event itself knows nothing
// about modules or dispatch, only about moving typed events through a
// capacity-bounded pipe without blocking a producer.
package event

// ModuleHandle identifies the sandbox module instance an event belongs to.
// It's opaque outside the engine that minted it, the same way
// runtime.Instance is.
type ModuleHandle any

// ResourceType is the class of host resource an event originated from.
type ResourceType int

const (
	ResourceTimer ResourceType = iota
	ResourceGPIO
	ResourceSensor
	ResourceMessaging
	ResourceDisplay

	resourceTypeCount
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTimer:
		return "timer"
	case ResourceGPIO:
		return "gpio"
	case ResourceSensor:
		return "sensor"
	case ResourceMessaging:
		return "messaging"
	case ResourceDisplay:
		return "display"
	default:
		return "unknown"
	}
}

// Event is raised by a host resource manager and carries enough context for
// the dispatcher to route it to the owning module and for that module's
// dispatcher callback to unpack it.
type Event interface {
	Owner() ModuleHandle
	Type() ResourceType
}

// TimerEvent fires when a timer created with resource.TimerManager expires.
type TimerEvent struct {
	TimerID uint32
	owner   ModuleHandle
}

func NewTimerEvent(owner ModuleHandle, timerID uint32) TimerEvent {
	return TimerEvent{TimerID: timerID, owner: owner}
}

func (e TimerEvent) Owner() ModuleHandle  { return e.owner }
func (e TimerEvent) Type() ResourceType   { return ResourceTimer }

// GPIOEvent fires on a configured pin edge.
type GPIOEvent struct {
	Port  uint32
	Pin   uint32
	State uint32
	owner ModuleHandle
}

func NewGPIOEvent(owner ModuleHandle, port, pin, state uint32) GPIOEvent {
	return GPIOEvent{Port: port, Pin: pin, State: state, owner: owner}
}

func (e GPIOEvent) Owner() ModuleHandle { return e.owner }
func (e GPIOEvent) Type() ResourceType  { return ResourceGPIO }

// SensorEvent carries a sample from a subscribed sensor channel.
type SensorEvent struct {
	SensorID uint32
	Channel  uint32
	Value    float64
	owner    ModuleHandle
}

func NewSensorEvent(owner ModuleHandle, sensorID, channel uint32, value float64) SensorEvent {
	return SensorEvent{SensorID: sensorID, Channel: channel, Value: value, owner: owner}
}

func (e SensorEvent) Owner() ModuleHandle { return e.owner }
func (e SensorEvent) Type() ResourceType  { return ResourceSensor }

// MessageEvent delivers a message published on a subscribed topic. TopicRef,
// ContentTypeRef and PayloadRef are offsets into the receiving module's own
// memory arena (see pkg/registry.MemoryWriter) — the payload bytes have
// already been duplicated there by the time this event is raised.
type MessageEvent struct {
	MessageID      uint64
	TopicRef       uint32
	ContentTypeRef uint32
	PayloadRef     uint32
	PayloadLen     uint32
	owner          ModuleHandle
}

func NewMessageEvent(owner ModuleHandle, id uint64, topicRef, contentTypeRef, payloadRef, payloadLen uint32) MessageEvent {
	return MessageEvent{
		MessageID:      id,
		TopicRef:       topicRef,
		ContentTypeRef: contentTypeRef,
		PayloadRef:     payloadRef,
		PayloadLen:     payloadLen,
		owner:          owner,
	}
}

func (e MessageEvent) Owner() ModuleHandle { return e.owner }
func (e MessageEvent) Type() ResourceType  { return ResourceMessaging }

// DisplayEvent carries a touch/pointer sample from the display's input
// device. More is set when the input backend had additional queued samples
// coalesced into this one.
type DisplayEvent struct {
	X, Y    int32
	Pressed bool
	More    bool
	owner   ModuleHandle
}

func NewDisplayEvent(owner ModuleHandle, x, y int32, pressed, more bool) DisplayEvent {
	return DisplayEvent{X: x, Y: y, Pressed: pressed, More: more, owner: owner}
}

func (e DisplayEvent) Owner() ModuleHandle { return e.owner }
func (e DisplayEvent) Type() ResourceType  { return ResourceDisplay }
