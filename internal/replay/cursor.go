package replay

import (
	"sync"

	"github.com/torosent/streamsim/internal/dataset"
)

// DefaultBatchSize is the number of records per batch when none is
// configured.
const DefaultBatchSize = 1

// Batch is one cursor advance.
type Batch struct {
	// ID identifies the batch across logs and response headers. The cursor
	// leaves it empty; the Service assigns it.
	ID string
	// Offset is the dataset index of the first record.
	Offset int
	// Records holds up to the batch size records in dataset order.
	Records []dataset.Record
	// Wrapped reports that the cursor returned to the start after this
	// batch.
	Wrapped bool
	// TimestampField names the timestamp column of the records.
	TimestampField string
}

// Cursor hands out contiguous slices of a dataset, looping indefinitely.
// It is safe for concurrent use; concurrent callers never receive the same
// slice twice within a cycle.
type Cursor struct {
	mu        sync.Mutex
	dataset   *dataset.Dataset
	batchSize int
	position  int
}

// NewCursor returns a cursor at position 0. A batch size below 1 is a
// configuration error.
func NewCursor(ds *dataset.Dataset, batchSize int) (*Cursor, error) {
	if batchSize <= 0 {
		return nil, &dataset.ConfigurationError{
			Field:  "replay.batch_size",
			Reason: "batch size must be a positive integer",
		}
	}
	return &Cursor{
		dataset:   ds,
		batchSize: batchSize,
	}, nil
}

// Next returns the records [position, position+batchSize) clipped to the
// dataset length and advances the cursor. The result is empty only when
// the dataset is empty.
func (c *Cursor) Next() []dataset.Record {
	return c.NextBatch().Records
}

// NextBatch is Next with the batch offset and wrap flag.
func (c *Cursor) NextBatch() Batch {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.position
	records := c.dataset.Slice(start, start+c.batchSize)

	c.position += c.batchSize
	wrapped := false
	if c.position >= c.dataset.Len() {
		c.position = 0
		wrapped = true
	}

	return Batch{
		Offset:         start,
		Records:        records,
		Wrapped:        wrapped,
		TimestampField: c.dataset.TimestampField(),
	}
}

// Position returns the index of the next record to be served.
func (c *Cursor) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// BatchSize returns the configured batch size.
func (c *Cursor) BatchSize() int {
	return c.batchSize
}

// Len returns the length of the underlying dataset.
func (c *Cursor) Len() int {
	return c.dataset.Len()
}

// CycleLength returns how many calls to Next make up one full pass over the
// dataset.
func (c *Cursor) CycleLength() int {
	n := c.dataset.Len()
	if n == 0 {
		return 1
	}
	return (n + c.batchSize - 1) / c.batchSize
}
