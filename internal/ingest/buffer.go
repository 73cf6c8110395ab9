package ingest

import (
	"fmt"
	"sync"
	"time"

	"github.com/afroash/dht-generator/internal/models"
)

// RowBuffer holds rows between submission and flush. It is bounded and never
// drops: a push into a full buffer is refused.
type RowBuffer struct {
	rows     []models.Row
	capacity int
	mutex    sync.RWMutex
	stats    BufferStats
}

// BufferStats tracks buffer usage statistics
type BufferStats struct {
	TotalPushed   int64
	TotalRefused  int64
	TotalDrained  int64
	HighWaterMark int
	LastPushTime  time.Time
}

// NewRowBuffer creates a new row buffer with given capacity
func NewRowBuffer(capacity int) *RowBuffer {
	return &RowBuffer{
		rows:     make([]models.Row, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a row. Returns false if the buffer is full.
func (rb *RowBuffer) Push(row models.Row) bool {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	if len(rb.rows) >= rb.capacity {
		rb.stats.TotalRefused++
		return false
	}
	rb.rows = append(rb.rows, row)
	rb.stats.TotalPushed++
	rb.stats.LastPushTime = time.Now()

	if len(rb.rows) > rb.stats.HighWaterMark {
		rb.stats.HighWaterMark = len(rb.rows)
	}
	return true
}

// Drain removes and returns every pending row, oldest first
func (rb *RowBuffer) Drain() []models.Row {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	if len(rb.rows) == 0 {
		return nil
	}
	result := make([]models.Row, len(rb.rows))
	copy(result, rb.rows)
	rb.rows = rb.rows[:0]
	rb.stats.TotalDrained += int64(len(result))
	return result
}

// Size returns the number of pending rows
func (rb *RowBuffer) Size() int {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()
	return len(rb.rows)
}

// Stats returns a copy of current buffer statistics
func (rb *RowBuffer) Stats() BufferStats {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()
	return rb.stats
}

func (rb *RowBuffer) String() string {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()

	return fmt.Sprintf("Buffer[%d/%d, refused: %d, drained: %d]",
		len(rb.rows),
		rb.capacity,
		rb.stats.TotalRefused,
		rb.stats.TotalDrained,
	)
}
