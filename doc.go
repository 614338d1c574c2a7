// Package anvil hosts a three-tier name registry: an edge router, a
// stateless HTTP registry service, and a durable record store backed by
// NATS JetStream.
//
// # Architecture
//
// Requests enter through the edge router (cmd/edged), which matches the
// path against an ordered prefix route table. API traffic is forwarded
// round-robin across the healthy registry replicas; everything else goes
// to a configured UI target. Replica health is tracked by an active
// prober with consecutive-failure and consecutive-success thresholds, so
// a flapping replica neither leaves nor rejoins rotation on a single
// probe.
//
// The registry service (cmd/registryd) holds no state of its own. Both of
// its operations, submitting a name and listing all names, go straight to
// the record store, so any replica can serve any request and replicas can
// be added or removed freely.
//
// The record store (store) appends records to a file-backed JetStream
// stream. The stream's sequence numbers define insertion order, including
// under concurrent appends from multiple replicas, and records survive
// process restarts.
//
// # Packages
//
//   - config: layered JSON configuration with environment overrides
//   - errors: error classification (transient, invalid, fatal)
//   - health: replica health tracking and threshold state machine
//   - metric: prometheus registry and core platform metrics
//   - natsclient: managed NATS connection with JetStream access
//   - registry: the name registry HTTP service
//   - resolver: replica pool, round-robin resolution, health checking
//   - router: prefix route table and reverse proxy
//   - store: durable append-only record store
package anvil
