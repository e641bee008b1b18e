// Package sinks contains change-notifier listeners that forward events to
// observers outside the process: logs, metrics, traces, Kafka and Redis.
//
// Listeners run on the writer's goroutine. Sinks that perform network I/O are
// wrapped in Async, which queues the event and publishes it from a worker so
// a slow or failing broker never delays or fails a ledger write.
package sinks
