package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/wintermutant/anvil-composable-tutorial/config"
	"github.com/wintermutant/anvil-composable-tutorial/errors"
	"github.com/wintermutant/anvil-composable-tutorial/natsclient"
	"github.com/wintermutant/anvil-composable-tutorial/pkg/retry"
)

// JetStreamStore implements Store on top of a file-backed JetStream stream.
// Concurrent appends from any number of replicas are serialized by the
// stream itself; the store performs no retries and holds no cache.
type JetStreamStore struct {
	js      jetstream.JetStream
	stream  jetstream.Stream
	subject string
	timeout time.Duration
	logger  *slog.Logger
}

var _ Store = (*JetStreamStore)(nil)

// storedRecord is the wire form of a record on the stream
type storedRecord struct {
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// NewJetStreamStore creates the backing stream if it does not exist and
// returns a store bound to it. Stream creation is retried briefly because
// the store is typically constructed right after connecting.
func NewJetStreamStore(
	ctx context.Context,
	client *natsclient.Client,
	cfg config.StoreConfig,
	logger *slog.Logger,
) (*JetStreamStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	js, err := client.JetStream()
	if err != nil {
		return nil, errors.WrapTransient(err, "JetStreamStore", "NewJetStreamStore", "get JetStream handle")
	}

	stream, err := retry.DoWithResult(ctx, retry.Quick(), func() (jetstream.Stream, error) {
		return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:      cfg.StreamName,
			Subjects:  []string{cfg.Subject},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
		})
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "JetStreamStore", "NewJetStreamStore", "create stream")
	}

	logger.Info("Record store ready", "stream", cfg.StreamName, "subject", cfg.Subject)

	return &JetStreamStore{
		js:      js,
		stream:  stream,
		subject: cfg.Subject,
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}, nil
}

// withTimeout bounds a store call when the caller did not set a deadline
func (s *JetStreamStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Append persists a single record. The publish either lands fully on the
// stream or fails; there is no partial write.
func (s *JetStreamStore) Append(ctx context.Context, value string) (Record, error) {
	trimmed := NormalizeValue(value)
	if trimmed == "" {
		return Record{}, errors.WrapInvalid(errors.ErrEmptyName, "JetStreamStore", "Append", "validate value")
	}

	record := storedRecord{
		Value:     trimmed,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return Record{}, errors.WrapFatal(err, "JetStreamStore", "Append", "encode record")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ack, err := s.js.Publish(ctx, s.subject, data)
	if err != nil {
		return Record{}, errors.WrapTransient(errors.ErrStoreUnavailable,
			"JetStreamStore", "Append", "publish record: "+err.Error())
	}

	return Record{
		Value:     record.Value,
		CreatedAt: record.CreatedAt,
		Seq:       ack.Sequence,
	}, nil
}

// List replays the stream in order up to a snapshot taken at call time.
// Appends racing with the replay may or may not be included, but the result
// is always a prefix-consistent snapshot of the stream.
func (s *JetStreamStore) List(ctx context.Context) ([]Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	info, err := s.stream.Info(ctx)
	if err != nil {
		return nil, errors.WrapTransient(errors.ErrStoreUnavailable,
			"JetStreamStore", "List", "stream info: "+err.Error())
	}

	lastSeq := info.State.LastSeq
	if info.State.Msgs == 0 {
		return []Record{}, nil
	}

	cons, err := s.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, errors.WrapTransient(errors.ErrStoreUnavailable,
			"JetStreamStore", "List", "create consumer: "+err.Error())
	}

	records := make([]Record, 0, info.State.Msgs)
	for {
		remaining := int(info.State.Msgs) - len(records)
		batch, err := cons.Fetch(remaining, jetstream.FetchMaxWait(s.timeout))
		if err != nil {
			return nil, errors.WrapTransient(errors.ErrStoreUnavailable,
				"JetStreamStore", "List", "fetch records: "+err.Error())
		}

		received := 0
		for msg := range batch.Messages() {
			meta, err := msg.Metadata()
			if err != nil {
				return nil, errors.WrapFatal(errors.ErrRecordCorrupted,
					"JetStreamStore", "List", "read metadata: "+err.Error())
			}
			if meta.Sequence.Stream > lastSeq {
				// Past the snapshot boundary, stop here
				return records, nil
			}

			var stored storedRecord
			if err := json.Unmarshal(msg.Data(), &stored); err != nil {
				return nil, errors.WrapFatal(errors.ErrRecordCorrupted,
					"JetStreamStore", "List", "decode record: "+err.Error())
			}

			records = append(records, Record{
				Value:     stored.Value,
				CreatedAt: stored.CreatedAt,
				Seq:       meta.Sequence.Stream,
			})
			received++

			if meta.Sequence.Stream >= lastSeq {
				return records, nil
			}
		}

		if batchErr := batch.Error(); batchErr != nil {
			return nil, errors.WrapTransient(errors.ErrStoreUnavailable,
				"JetStreamStore", "List", "fetch batch: "+batchErr.Error())
		}
		if received == 0 {
			// Stream drained below the snapshot (records purged mid-read)
			return records, nil
		}
	}
}

// Close releases the store. The NATS connection is owned by the caller and
// is not closed here.
func (s *JetStreamStore) Close() error {
	return nil
}
