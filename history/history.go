// Package history implements the bounded, versioned append log that backs the
// console output stream. A single writer appends execution input and output;
// any number of readers take consistent snapshots. Once the configured
// capacity is exceeded the oldest bytes are evicted, and the absolute start
// offset records exactly how many bytes have been dropped.
package history

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultCapacity is the retained-byte cap used when no explicit capacity is
// configured.
const DefaultCapacity = 524288

// Log is a bounded append buffer with absolute offset tracking. Offsets are
// only comparable within one version; Reset starts a new version at offset 0.
//
// All methods are safe for concurrent use. None of them can fail: capacity
// pressure is resolved by eviction, never reported as an error.
type Log struct {
	mu      sync.Mutex
	version int
	start   int
	buf     []byte
	cap     int

	metrics *metricsProvider
}

// New creates a Log with the given capacity. A negative capacity is treated
// as zero. Passing a nil registry disables metrics.
func New(capacity int, registry *prometheus.Registry) *Log {
	if capacity < 0 {
		capacity = 0
	}
	return &Log{
		cap:     capacity,
		metrics: newMetricsProvider(registry),
	}
}

// Capacity returns the configured retained-byte cap.
func (l *Log) Capacity() int {
	return l.cap
}

// Append adds chunk to the log, evicting the minimum number of leading bytes
// needed to stay within capacity.
func (l *Log) Append(chunk []byte) {
	l.append(chunk, false)
}

// AppendEntry behaves like Append but inserts a separating newline before the
// chunk when the log is non-empty, so consecutive entries read as blocks.
func (l *Log) AppendEntry(chunk []byte) {
	l.append(chunk, true)
}

func (l *Log) append(chunk []byte, sep bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if sep && len(l.buf) > 0 {
		chunk = append([]byte{'\n'}, chunk...)
	}

	evicted := 0
	switch {
	case len(chunk) > l.cap:
		// The chunk alone exceeds capacity: everything currently retained is
		// dropped along with the chunk's own leading excess.
		evicted = len(l.buf) + len(chunk) - l.cap
		l.buf = append(l.buf[:0:0], chunk[len(chunk)-l.cap:]...)
	case len(chunk) > l.cap-len(l.buf):
		evicted = len(l.buf) - (l.cap - len(chunk))
		l.buf = append(l.buf[evicted:len(l.buf):len(l.buf)], chunk...)
	default:
		l.buf = append(l.buf, chunk...)
	}
	l.start += evicted

	l.metrics.ObserveAppend(len(chunk), evicted)
	l.metrics.SetRetained(len(l.buf))
}

// Snapshot returns a consistent (version, start, buffer) triple. The returned
// buffer is a copy; later appends or resets never mutate it.
func (l *Log) Snapshot() (version, start int, buffer []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	buffer = make([]byte, len(l.buf))
	copy(buffer, l.buf)
	return l.version, l.start, buffer
}

// Version returns the current version without copying the buffer.
func (l *Log) Version() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

// Reset discards all retained bytes, rewinds the start offset to zero and
// increments the version, starting a new epoch. It returns the new version.
func (l *Log) Reset() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.start = 0
	l.buf = nil
	l.version++

	l.metrics.ObserveReset()
	l.metrics.SetRetained(0)
	return l.version
}
