package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wintermutant/anvil-composable-tutorial/config"
	"github.com/wintermutant/anvil-composable-tutorial/errors"
	"github.com/wintermutant/anvil-composable-tutorial/natsclient"
)

func startNATSContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "nats:2.10-alpine",
		ExposedPorts: []string{"4222/tcp"},
		Cmd:          []string{"-js"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	natsURL := fmt.Sprintf("nats://%s:%s", host, port.Port())
	return container, natsURL
}

func newTestStore(ctx context.Context, t *testing.T, natsURL, streamName string) *JetStreamStore {
	t.Helper()

	client, err := natsclient.NewClient(natsURL)
	require.NoError(t, err)

	require.NoError(t, client.Connect(ctx))

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, client.WaitForConnection(connCtx))

	t.Cleanup(func() {
		_ = client.Close(context.Background())
	})

	recordStore, err := NewJetStreamStore(ctx, client, config.StoreConfig{
		NATSURLs:       []string{natsURL},
		StreamName:     streamName,
		Subject:        "names.append",
		RequestTimeout: 5 * time.Second,
	}, nil)
	require.NoError(t, err)

	return recordStore
}

func TestIntegration_AppendAndList(t *testing.T) {
	ctx := context.Background()

	natsContainer, natsURL := startNATSContainer(ctx, t)
	defer func() { _ = natsContainer.Terminate(ctx) }()

	recordStore := newTestStore(ctx, t, natsURL, "TEST_APPEND_LIST")

	first, err := recordStore.Append(ctx, "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Ada", first.Value)
	assert.Equal(t, uint64(1), first.Seq)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := recordStore.Append(ctx, "  Grace  ")
	require.NoError(t, err)
	assert.Equal(t, "Grace", second.Value, "value should be stored trimmed")
	assert.Greater(t, second.Seq, first.Seq)

	records, err := recordStore.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Ada", records[0].Value)
	assert.Equal(t, "Grace", records[1].Value)
}

func TestIntegration_AppendRejectsEmptyValue(t *testing.T) {
	ctx := context.Background()

	natsContainer, natsURL := startNATSContainer(ctx, t)
	defer func() { _ = natsContainer.Terminate(ctx) }()

	recordStore := newTestStore(ctx, t, natsURL, "TEST_EMPTY")

	for _, value := range []string{"", "   ", "\t\n"} {
		_, err := recordStore.Append(ctx, value)
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	}

	// Rejected values must not reach the stream
	records, err := recordStore.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestIntegration_ListEmptyStream(t *testing.T) {
	ctx := context.Background()

	natsContainer, natsURL := startNATSContainer(ctx, t)
	defer func() { _ = natsContainer.Terminate(ctx) }()

	recordStore := newTestStore(ctx, t, natsURL, "TEST_EMPTY_LIST")

	records, err := recordStore.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestIntegration_InsertionOrderSurvivesRestart(t *testing.T) {
	ctx := context.Background()

	natsContainer, natsURL := startNATSContainer(ctx, t)
	defer func() { _ = natsContainer.Terminate(ctx) }()

	streamName := "TEST_DURABLE"
	recordStore := newTestStore(ctx, t, natsURL, streamName)

	names := []string{"first", "second", "third"}
	for _, name := range names {
		_, err := recordStore.Append(ctx, name)
		require.NoError(t, err)
	}

	// A second store over the same stream simulates a fresh replica; the
	// records and their order come from the stream, not process memory
	otherStore := newTestStore(ctx, t, natsURL, streamName)

	records, err := otherStore.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, len(names))
	for i, name := range names {
		assert.Equal(t, name, records[i].Value)
	}
}

func TestIntegration_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()

	natsContainer, natsURL := startNATSContainer(ctx, t)
	defer func() { _ = natsContainer.Terminate(ctx) }()

	recordStore := newTestStore(ctx, t, natsURL, "TEST_CONCURRENT")

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := recordStore.Append(ctx, fmt.Sprintf("writer-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	records, err := recordStore.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, writers)

	// Every append landed exactly once, in strictly increasing sequence
	seen := make(map[string]bool)
	var lastSeq uint64
	for _, record := range records {
		assert.False(t, seen[record.Value], "duplicate record %q", record.Value)
		seen[record.Value] = true
		assert.Greater(t, record.Seq, lastSeq)
		lastSeq = record.Seq
	}
}
