// Package queue implements a durable job queue on Redis Streams. Each lane
// is one stream with a consumer group; jobs carry an opaque JSON payload and
// a status hash recording state, attempts, progress and any error message.
//
// Delivery is at-least-once. Failed jobs are requeued with exponential
// backoff up to a bounded number of attempts; jobs that exhaust their
// attempts are marked failed and handed to the lane's exhaustion hook so the
// owning record never sticks in a processing state. Messages abandoned by a
// dead consumer are reclaimed with XAUTOCLAIM after an idle threshold.
package queue
