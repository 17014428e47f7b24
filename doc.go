// Package ringstream wraps a seekable byte stream with a bounded
// in-memory ring buffer and exposes the same byte-stream contract to a
// downstream consumer.
//
// A background producer goroutine reads the wrapped Source ahead of
// the consumer and stores the bytes in a fixed-size circular buffer
// (internal/ring). The consumer reads sequentially via Stream.Read,
// peeks without advancing via Stream.Peek, and may reposition via
// Stream.SetPosition. When the new position falls inside data the
// ring still holds (its cache window), the reposition is serviced
// entirely from memory; otherwise the producer reseeks the underlying
// source.
//
// The engineering value of the package lives in that ring: producer
// and consumer block on each other through condition variables, must
// wake on seek requests while staying cancellation-safe, and must
// avoid a deadlock where the producer waits for space the consumer
// cannot free because it is itself waiting for a seek to complete.
// internal/ring and producer.go carry that logic; Stream is a thin
// consumer-facing wrapper around it.
package ringstream
