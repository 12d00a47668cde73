package wazeroengine

import (
	"context"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/project-ocre/ocre/pkg/event"
	"github.com/project-ocre/ocre/pkg/resource"
)

// hostModuleName is the import module name a compiled .wasm is expected to
// declare its ocre_* imports against, e.g. (import "ocre" "timer_create"
// (func ...)).
const hostModuleName = "ocre"

type instanceCtxKey struct{}

func withInstance(ctx context.Context, inst *instance) context.Context {
	return context.WithValue(ctx, instanceCtxKey{}, inst)
}

func instanceFromContext(ctx context.Context) (*instance, bool) {
	inst, ok := ctx.Value(instanceCtxKey{}).(*instance)
	return inst, ok
}

// buildHostModule declares every ocre_* import a module can call, resolving
// the calling module's own *instance (and so its event.ModuleHandle) from
// the context wazero threads through every host call.
func (e *Engine) buildHostModule(ctx context.Context) error {
	builder := e.rt.NewHostModuleBuilder(hostModuleName)

	builder.NewFunctionBuilder().WithFunc(e.hostTimerCreate).Export("timer_create")
	builder.NewFunctionBuilder().WithFunc(e.hostTimerStart).Export("timer_start")
	builder.NewFunctionBuilder().WithFunc(e.hostTimerStop).Export("timer_stop")
	builder.NewFunctionBuilder().WithFunc(e.hostTimerDelete).Export("timer_delete")
	builder.NewFunctionBuilder().WithFunc(e.hostTimerGetRemaining).Export("timer_get_remaining")

	builder.NewFunctionBuilder().WithFunc(e.hostGPIOConfigure).Export("gpio_configure")
	builder.NewFunctionBuilder().WithFunc(e.hostGPIOSet).Export("gpio_set")
	builder.NewFunctionBuilder().WithFunc(e.hostGPIOGet).Export("gpio_get")
	builder.NewFunctionBuilder().WithFunc(e.hostGPIOToggle).Export("gpio_toggle")
	builder.NewFunctionBuilder().WithFunc(e.hostGPIORegisterCallback).Export("gpio_register_callback")
	builder.NewFunctionBuilder().WithFunc(e.hostGPIOUnregisterCallback).Export("gpio_unregister_callback")

	builder.NewFunctionBuilder().WithFunc(e.hostSensorRead).Export("sensor_read")
	builder.NewFunctionBuilder().WithFunc(e.hostSensorSubscribe).Export("sensor_subscribe")
	builder.NewFunctionBuilder().WithFunc(e.hostSensorUnsubscribe).Export("sensor_unsubscribe")

	builder.NewFunctionBuilder().WithFunc(e.hostMessagingSubscribe).Export("messaging_subscribe")
	builder.NewFunctionBuilder().WithFunc(e.hostMessagingUnsubscribe).Export("messaging_unsubscribe")
	builder.NewFunctionBuilder().WithFunc(e.hostMessagingPublish).Export("messaging_publish")

	builder.NewFunctionBuilder().WithFunc(e.hostDisplayInit).Export("display_init")
	builder.NewFunctionBuilder().WithFunc(e.hostDisplayGetCapabilities).Export("display_get_capabilities")
	builder.NewFunctionBuilder().WithFunc(e.hostDisplayFlush).Export("display_flush")
	builder.NewFunctionBuilder().WithFunc(e.hostDisplayInputRead).Export("display_input_read")
	builder.NewFunctionBuilder().WithFunc(e.hostDisplayRegisterCallback).Export("display_register_callback")
	builder.NewFunctionBuilder().WithFunc(e.hostDisplayUnregisterCallback).Export("display_unregister_callback")

	builder.NewFunctionBuilder().WithFunc(e.hostGetEvent).Export("get_event")
	builder.NewFunctionBuilder().WithFunc(e.hostFreeEventData).Export("free_module_event_data")

	_, err := builder.Instantiate(ctx)
	return err
}

// readString reads a length-prefixed UTF-8 string out of the calling
// module's own linear memory.
func readString(mod api.Module, ptr, length uint32) string {
	buf, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return ""
	}
	return string(buf)
}

func readBytes(mod api.Module, ptr, length uint32) []byte {
	buf, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out
}

const (
	statusOK uint32 = 0
	statusErr uint32 = 1
)

func statusOf(err error) uint32 {
	if err != nil {
		return statusErr
	}
	return statusOK
}

func (e *Engine) hostTimerCreate(ctx context.Context, mod api.Module, id uint32) uint32 {
	inst, ok := instanceFromContext(ctx)
	if !ok {
		return statusErr
	}
	return statusOf(e.resources.Timers.Create(inst, id))
}

func (e *Engine) hostTimerStart(ctx context.Context, mod api.Module, id, intervalMs, periodic uint32) uint32 {
	inst, ok := instanceFromContext(ctx)
	if !ok {
		return statusErr
	}
	return statusOf(e.resources.Timers.Start(inst, id, msToDuration(intervalMs), periodic != 0))
}

func (e *Engine) hostTimerStop(ctx context.Context, mod api.Module, id uint32) uint32 {
	inst, ok := instanceFromContext(ctx)
	if !ok {
		return statusErr
	}
	return statusOf(e.resources.Timers.Stop(inst, id))
}

func (e *Engine) hostTimerDelete(ctx context.Context, mod api.Module, id uint32) uint32 {
	inst, ok := instanceFromContext(ctx)
	if !ok {
		return statusErr
	}
	return statusOf(e.resources.Timers.Delete(inst, id))
}

func (e *Engine) hostTimerGetRemaining(ctx context.Context, mod api.Module, id uint32) uint32 {
	inst, ok := instanceFromContext(ctx)
	if !ok {
		return 0
	}
	remaining, err := e.resources.Timers.GetRemaining(inst, id)
	if err != nil {
		return 0
	}
	return uint32(remaining.Milliseconds())
}

func (e *Engine) hostGPIOConfigure(ctx context.Context, mod api.Module, port, pin, direction uint32) uint32 {
	return statusOf(e.resources.GPIO.Configure(port, pin, resource.Direction(direction)))
}

func (e *Engine) hostGPIOSet(ctx context.Context, mod api.Module, port, pin, level uint32) uint32 {
	return statusOf(e.resources.GPIO.Set(port, pin, level))
}

func (e *Engine) hostGPIOGet(ctx context.Context, mod api.Module, port, pin uint32) uint32 {
	level, err := e.resources.GPIO.Get(port, pin)
	if err != nil {
		return 0
	}
	return level
}

func (e *Engine) hostGPIOToggle(ctx context.Context, mod api.Module, port, pin uint32) uint32 {
	return statusOf(e.resources.GPIO.Toggle(port, pin))
}

func (e *Engine) hostGPIORegisterCallback(ctx context.Context, mod api.Module, port, pin uint32) uint32 {
	inst, ok := instanceFromContext(ctx)
	if !ok {
		return statusErr
	}
	return statusOf(e.resources.GPIO.RegisterCallback(inst, port, pin))
}

func (e *Engine) hostGPIOUnregisterCallback(ctx context.Context, mod api.Module, port, pin uint32) uint32 {
	inst, ok := instanceFromContext(ctx)
	if !ok {
		return statusErr
	}
	return statusOf(e.resources.GPIO.UnregisterCallback(inst, port, pin))
}

func (e *Engine) hostSensorRead(ctx context.Context, mod api.Module, sensorID, channel uint32) float64 {
	value, err := e.resources.Sensors.ReadData(sensorID, channel)
	if err != nil {
		return 0
	}
	return value
}

func (e *Engine) hostSensorSubscribe(ctx context.Context, mod api.Module, sensorID, channel uint32) uint32 {
	inst, ok := instanceFromContext(ctx)
	if !ok {
		return statusErr
	}
	return statusOf(e.resources.Sensors.Subscribe(inst, sensorID, channel))
}

func (e *Engine) hostSensorUnsubscribe(ctx context.Context, mod api.Module, sensorID, channel uint32) uint32 {
	inst, ok := instanceFromContext(ctx)
	if !ok {
		return statusErr
	}
	return statusOf(e.resources.Sensors.Unsubscribe(inst, sensorID, channel))
}

func (e *Engine) hostMessagingSubscribe(ctx context.Context, mod api.Module, topicPtr, topicLen uint32) uint32 {
	inst, ok := instanceFromContext(ctx)
	if !ok {
		return statusErr
	}
	topic := readString(mod, topicPtr, topicLen)
	return statusOf(e.resources.Messaging.Subscribe(inst, topic))
}

func (e *Engine) hostMessagingUnsubscribe(ctx context.Context, mod api.Module, topicPtr, topicLen uint32) uint32 {
	inst, ok := instanceFromContext(ctx)
	if !ok {
		return statusErr
	}
	topic := readString(mod, topicPtr, topicLen)
	return statusOf(e.resources.Messaging.Unsubscribe(inst, topic))
}

func (e *Engine) hostMessagingPublish(
	ctx context.Context, mod api.Module,
	topicPtr, topicLen, contentTypePtr, contentTypeLen, payloadPtr, payloadLen uint32,
) uint32 {
	topic := readString(mod, topicPtr, topicLen)
	contentType := readString(mod, contentTypePtr, contentTypeLen)
	payload := readBytes(mod, payloadPtr, payloadLen)
	return statusOf(e.resources.Messaging.Publish(topic, contentType, payload))
}

// hostGetEvent pops the oldest queued event, regardless of owner, and
// returns its resource type tag (0..4) plus a type-specific ID, or
// (0xFFFFFFFF, 0) if the queue is currently empty. This is the pull-style
// alternative to the push dispatch a module's registered callbacks receive
// through pkg/registry's DispatchPool; it does not filter by the calling
// module, so it's best suited to a single-module host or to draining
// diagnostics rather than multi-module production use.
func (e *Engine) hostGetEvent(ctx context.Context, mod api.Module) (resourceType uint32, id uint64) {
	evt, ok := e.resources.Queue.Pop()
	if !ok {
		return 0xFFFFFFFF, 0
	}

	switch v := evt.(type) {
	case event.TimerEvent:
		return uint32(event.ResourceTimer), uint64(v.TimerID)
	case event.GPIOEvent:
		return uint32(event.ResourceGPIO), uint64(v.Port)<<32 | uint64(v.Pin)
	case event.SensorEvent:
		return uint32(event.ResourceSensor), uint64(v.SensorID)<<32 | uint64(v.Channel)
	case event.MessageEvent:
		return uint32(event.ResourceMessaging), v.MessageID
	case event.DisplayEvent:
		return uint32(event.ResourceDisplay), uint64(uint32(v.X))<<32 | uint64(uint32(v.Y))
	default:
		return 0xFFFFFFFF, 0
	}
}

func (e *Engine) hostDisplayInit(ctx context.Context, mod api.Module, width, height, bpp, colorMode uint32) uint32 {
	return statusOf(e.resources.Display.Init(width, height, bpp, resource.ColorMode(colorMode)))
}

func (e *Engine) hostDisplayGetCapabilities(ctx context.Context, mod api.Module, widthPtr, heightPtr, bppPtr, colorModePtr uint32) uint32 {
	width, height, bpp, colorMode, err := e.resources.Display.Capabilities()
	if err != nil {
		return statusErr
	}
	mem := mod.Memory()
	if !mem.WriteUint32Le(widthPtr, width) ||
		!mem.WriteUint32Le(heightPtr, height) ||
		!mem.WriteUint32Le(bppPtr, bpp) ||
		!mem.WriteUint32Le(colorModePtr, uint32(colorMode)) {
		return statusErr
	}
	return statusOK
}

func (e *Engine) hostDisplayFlush(ctx context.Context, mod api.Module, x1, y1, x2, y2 int32, colorPtr, colorLen uint32) uint32 {
	pixels := readBytes(mod, colorPtr, colorLen)
	return statusOf(e.resources.Display.Flush(x1, y1, x2, y2, pixels))
}

func (e *Engine) hostDisplayInputRead(ctx context.Context, mod api.Module, xPtr, yPtr, pressedPtr, morePtr uint32) uint32 {
	x, y, pressed, more := e.resources.Display.InputRead()
	mem := mod.Memory()
	if !mem.WriteUint32Le(xPtr, uint32(x)) || !mem.WriteUint32Le(yPtr, uint32(y)) {
		return statusErr
	}
	if !mem.WriteByte(pressedPtr, boolByte(pressed)) || !mem.WriteByte(morePtr, boolByte(more)) {
		return statusErr
	}
	return statusOK
}

func (e *Engine) hostDisplayRegisterCallback(ctx context.Context, mod api.Module) uint32 {
	inst, ok := instanceFromContext(ctx)
	if !ok {
		return statusErr
	}
	return statusOf(e.resources.Display.RegisterCallback(inst))
}

func (e *Engine) hostDisplayUnregisterCallback(ctx context.Context, mod api.Module) uint32 {
	inst, ok := instanceFromContext(ctx)
	if !ok {
		return statusErr
	}
	return statusOf(e.resources.Display.UnregisterCallback(inst))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (e *Engine) hostFreeEventData(ctx context.Context, mod api.Module, offset uint32) uint32 {
	inst, ok := instanceFromContext(ctx)
	if !ok {
		return statusErr
	}
	return statusOf(inst.arena.Free(offset))
}

func msToDuration(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
