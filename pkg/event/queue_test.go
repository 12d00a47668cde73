package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-ocre/ocre/pkg/ocreerr"
)

func TestPublishAndPop(t *testing.T) {
	q := NewQueue(4)
	evt := NewTimerEvent("mod-1", 1)

	require.NoError(t, q.Publish(evt))
	assert.Equal(t, 1, q.Len())

	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, evt, got)
	assert.Equal(t, 0, q.Len())
}

func TestPopOnEmptyQueue(t *testing.T) {
	q := NewQueue(4)
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestPublishFailsWhenFull(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.Publish(NewTimerEvent("mod-1", 1)))
	require.NoError(t, q.Publish(NewTimerEvent("mod-1", 2)))

	err := q.Publish(NewTimerEvent("mod-1", 3))
	require.Error(t, err)
	assert.True(t, ocreerr.IsResourceExhausted(err))
}

func TestQueuePreservesFIFOOrder(t *testing.T) {
	q := NewQueue(8)
	for i := uint32(0); i < 5; i++ {
		require.NoError(t, q.Publish(NewTimerEvent("mod-1", i)))
	}
	for i := uint32(0); i < 5; i++ {
		evt, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, evt.(TimerEvent).TimerID)
	}
}

func TestQueueCap(t *testing.T) {
	q := NewQueue(16)
	assert.Equal(t, 16, q.Cap())
}

func TestResourceTypeString(t *testing.T) {
	cases := map[ResourceType]string{
		ResourceTimer:     "timer",
		ResourceGPIO:      "gpio",
		ResourceSensor:    "sensor",
		ResourceMessaging: "messaging",
		ResourceDisplay:   "display",
	}
	for rt, want := range cases {
		assert.Equal(t, want, rt.String())
	}
}

func TestEventOwnerAndType(t *testing.T) {
	owner := "mod-1"
	assert.Equal(t, owner, NewTimerEvent(owner, 1).Owner())
	assert.Equal(t, ResourceTimer, NewTimerEvent(owner, 1).Type())
	assert.Equal(t, ResourceGPIO, NewGPIOEvent(owner, 1, 2, 3).Type())
	assert.Equal(t, ResourceSensor, NewSensorEvent(owner, 1, 2, 3.5).Type())
	assert.Equal(t, ResourceMessaging, NewMessageEvent(owner, 1, 1, 2, 3, 4).Type())
	assert.Equal(t, ResourceDisplay, NewDisplayEvent(owner, 10, 20, true, false).Type())
}
