package tracking

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"dispatch-service/internal/events"
)

func TestLockFor_SameVehicleSameMutex(t *testing.T) {
	s := NewService(nil, nil, nil, nil, nil, NewHub())

	a := s.lockFor("v-1")
	b := s.lockFor("v-1")
	c := s.lockFor("v-2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestLockFor_ConcurrentAccess(t *testing.T) {
	s := NewService(nil, nil, nil, nil, nil, NewHub())

	var wg sync.WaitGroup
	locks := make([]*sync.Mutex, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			locks[i] = s.lockFor("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < 100; i++ {
		assert.Same(t, locks[0], locks[i])
	}
}

func TestHandleAssignment(t *testing.T) {
	s := NewService(nil, nil, nil, nil, nil, NewHub())

	ev := events.DispatchCreatedEvent{
		DispatchID: "d-1",
		VehicleID:  "v-1",
		Priority:   "EMERGENCY",
	}
	data, err := json.Marshal(ev)
	assert.NoError(t, err)
	assert.NoError(t, s.handleAssignment(data))
}

func TestHandleAssignment_BadPayload(t *testing.T) {
	s := NewService(nil, nil, nil, nil, nil, NewHub())

	assert.Error(t, s.handleAssignment([]byte("not json")))
	assert.Error(t, s.handleAssignment([]byte(`{"dispatch_id":"d-1"}`)))
}
