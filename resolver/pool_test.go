package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wintermutant/anvil-composable-tutorial/errors"
)

func TestNewPoolRequiresReplicas(t *testing.T) {
	_, err := NewPool(nil)
	assert.Error(t, err)

	_, err = NewPool([]string{})
	assert.Error(t, err)
}

func TestPoolRoundRobin(t *testing.T) {
	pool, err := NewPool([]string{"http://a:8000", "http://b:8000", "http://c:8000"})
	require.NoError(t, err)

	// Two full cycles in configuration order
	var got []string
	for i := 0; i < 6; i++ {
		replica, err := pool.Resolve()
		require.NoError(t, err)
		got = append(got, replica)
	}

	expected := []string{
		"http://a:8000", "http://b:8000", "http://c:8000",
		"http://a:8000", "http://b:8000", "http://c:8000",
	}
	assert.Equal(t, expected, got)
}

func TestPoolSkipsUnhealthyReplicas(t *testing.T) {
	pool, err := NewPool([]string{"http://a:8000", "http://b:8000", "http://c:8000"})
	require.NoError(t, err)

	pool.SetHealthy("http://b:8000", false)

	for i := 0; i < 6; i++ {
		replica, err := pool.Resolve()
		require.NoError(t, err)
		assert.NotEqual(t, "http://b:8000", replica)
	}
	assert.Equal(t, 2, pool.HealthyCount())
}

func TestPoolAllUnhealthy(t *testing.T) {
	pool, err := NewPool([]string{"http://a:8000", "http://b:8000"})
	require.NoError(t, err)

	pool.SetHealthy("http://a:8000", false)
	pool.SetHealthy("http://b:8000", false)

	_, err = pool.Resolve()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoHealthyReplica)
	assert.True(t, errors.IsTransient(err))
}

func TestPoolRestoreReplica(t *testing.T) {
	pool, err := NewPool([]string{"http://a:8000"})
	require.NoError(t, err)

	pool.SetHealthy("http://a:8000", false)
	_, err = pool.Resolve()
	require.Error(t, err)

	pool.SetHealthy("http://a:8000", true)
	replica, err := pool.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "http://a:8000", replica)
}

func TestPoolIgnoresUnknownReplica(t *testing.T) {
	pool, err := NewPool([]string{"http://a:8000"})
	require.NoError(t, err)

	pool.SetHealthy("http://unknown:9999", false)

	assert.Equal(t, 1, pool.HealthyCount())
	assert.Equal(t, []string{"http://a:8000"}, pool.Replicas())
}
