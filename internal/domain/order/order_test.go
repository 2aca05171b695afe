package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_EdgeSet(t *testing.T) {
	allowed := [][2]Status{
		{StatusPlaced, StatusCooking},
		{StatusCooking, StatusReady},
		{StatusReady, StatusDelivered},
		{StatusPlaced, StatusCancelled},
	}
	for _, edge := range allowed {
		assert.True(t, CanTransition(edge[0], edge[1]), "%s -> %s should be allowed", edge[0], edge[1])
	}

	statuses := []Status{StatusPlaced, StatusCooking, StatusReady, StatusDelivered, StatusCancelled}
	isAllowed := func(from, to Status) bool {
		for _, e := range allowed {
			if e[0] == from && e[1] == to {
				return true
			}
		}
		return false
	}
	for _, from := range statuses {
		for _, to := range statuses {
			if isAllowed(from, to) {
				continue
			}
			assert.False(t, CanTransition(from, to), "%s -> %s should be rejected", from, to)
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPlaced.Terminal())
	assert.False(t, StatusCooking.Terminal())
	assert.False(t, StatusReady.Terminal())
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusCooking.Valid())
	assert.False(t, Status("burnt").Valid())
}

func TestInvalidTransitionError_Message(t *testing.T) {
	err := &InvalidTransitionError{From: StatusReady, To: StatusCooking}
	assert.Equal(t, "invalid transition ready -> cooking", err.Error())
}
