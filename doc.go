// Package bus provides a durable, queue-isolated message bus.
//
// Application code publishes typed messages through a Bus, which serializes
// each message into an Envelope and stores it durably. A Processor discovers
// actionable envelopes per queue, dispatches them to registered handlers
// inside an isolated per-envelope scope, and records the outcome: success
// completes the envelope, failure schedules a retry with backoff, and
// exhausted attempts dead-letter it.
//
// Delivery is at-least-once; handlers must be idempotent. Ordering is strict
// FIFO within a queue and undefined across queues.
//
// For the MongoDB store and change-stream notification bridge, see the mongo
// package.
package bus
