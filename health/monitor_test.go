package health

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorUpdateAndGet(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("replica-1", "probe ok")

	status, exists := monitor.Get("replica-1")
	require.True(t, exists)
	assert.True(t, status.IsHealthy())
	assert.Equal(t, "replica-1", status.Component)
	assert.False(t, status.Timestamp.IsZero())
}

func TestMonitorGetMissing(t *testing.T) {
	monitor := NewMonitor()

	_, exists := monitor.Get("nope")
	assert.False(t, exists)
}

func TestMonitorAggregateHealth(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("replica-1", "ok")
	monitor.UpdateHealthy("replica-2", "ok")

	aggregate := monitor.AggregateHealth("pool")
	assert.True(t, aggregate.IsHealthy())

	monitor.UpdateUnhealthy("replica-2", "probe failing")

	aggregate = monitor.AggregateHealth("pool")
	assert.True(t, aggregate.IsUnhealthy())
	assert.Contains(t, aggregate.Message, "replica-2")
}

func TestMonitorRemove(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("replica-1", "ok")
	assert.Equal(t, 1, monitor.Count())

	monitor.Remove("replica-1")
	assert.Equal(t, 0, monitor.Count())
}

func TestMonitorGetAllReturnsCopy(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("replica-1", "ok")

	all := monitor.GetAll()
	delete(all, "replica-1")

	_, exists := monitor.Get("replica-1")
	assert.True(t, exists)
}

func TestMonitorConcurrentAccess(t *testing.T) {
	monitor := NewMonitor()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			monitor.UpdateHealthy("replica-1", "ok")
		}()
		go func() {
			defer wg.Done()
			monitor.Get("replica-1")
			monitor.AggregateHealth("pool")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, monitor.Count())
}
