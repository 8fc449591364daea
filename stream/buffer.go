package stream

import (
	"errors"
	"fmt"
	"math"

	"livegraph/models"
)

const (
	MIN_CAPACITY     = 100
	MAX_CAPACITY     = 10000
	DEFAULT_CAPACITY = 1000
)

var ErrCapacityRange = errors.New("buffer capacity outside range")

// Buffer is the rolling sample history. It never holds more than capacity samples; pushing onto a full buffer
// evicts the oldest sample. The buffer has no lock of its own, the owner serialises access.
type Buffer struct {
	// capacity is the maximum number of samples kept.
	capacity int
	// samples holds the history in arrival order, oldest first.
	samples []models.Sample
}

func ValidateCapacity(capacity int) error {
	if capacity < MIN_CAPACITY || capacity > MAX_CAPACITY {
		return fmt.Errorf("capacity %d not in [%d, %d]: %w", capacity, MIN_CAPACITY, MAX_CAPACITY, ErrCapacityRange)
	}
	return nil
}

func NewBuffer(capacity int) (*Buffer, error) {
	if err := ValidateCapacity(capacity); err != nil {
		return nil, err
	}
	return &Buffer{
		capacity,
		make([]models.Sample, 0, capacity),
	}, nil
}

func (b *Buffer) Capacity() int {
	return b.capacity
}

func (b *Buffer) Len() int {
	return len(b.samples)
}

func (b *Buffer) Push(sample models.Sample) {
	b.samples = append(b.samples, sample)
	if len(b.samples) > b.capacity {
		b.samples = b.samples[1:]
	}
}

func (b *Buffer) Clear() {
	b.samples = make([]models.Sample, 0, b.capacity)
}

// SetCapacity changes the capacity, dropping the oldest samples if the buffer is now over it.
func (b *Buffer) SetCapacity(capacity int) error {
	if err := ValidateCapacity(capacity); err != nil {
		return err
	}
	b.capacity = capacity
	if excess := len(b.samples) - capacity; excess > 0 {
		b.samples = b.samples[excess:]
	}
	b.samples = append(make([]models.Sample, 0, capacity), b.samples...)
	return nil
}

// Samples returns a copy of the history, oldest first.
func (b *Buffer) Samples() []models.Sample {
	out := make([]models.Sample, len(b.samples))
	for i, sample := range b.samples {
		out[i] = append(models.Sample(nil), sample...)
	}
	return out
}

func (b *Buffer) Latest() (models.Sample, bool) {
	if len(b.samples) == 0 {
		return nil, false
	}
	return b.samples[len(b.samples)-1], true
}

// Extent returns the smallest and largest value across every visible channel of every sample. ok is false when
// the buffer is empty or no channel is visible.
func (b *Buffer) Extent(visible []bool) (min, max float64, ok bool) {
	return Extent(b.samples, visible)
}

// Extent is Buffer.Extent over an arbitrary sample slice, used on snapshots.
func Extent(samples []models.Sample, visible []bool) (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, sample := range samples {
		for channel, show := range visible {
			if !show {
				continue
			}
			v := sample.Value(channel)
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			ok = true
		}
	}
	if !ok {
		return 0, 0, false
	}
	return min, max, true
}
