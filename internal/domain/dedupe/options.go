package dedupe

// Option configures the in-memory Deduper.
type Option func(*memoryDeduper)

// WithMaxSize bounds the number of remembered IDs; the oldest is evicted
// first. Zero or negative means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *memoryDeduper) {
		d.maxSize = maxSize
	}
}
