package partition

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this module matches exactly one of
// these through errors.Is.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrOutOfRange        = errors.New("partition out of usable range")
	ErrOverlap           = errors.New("partitions overlap")
	ErrTooManyPartitions = errors.New("too many partitions")
	ErrNotFound          = errors.New("not found")
	ErrNotSupported      = errors.New("not supported by label")
	ErrIO                = errors.New("input/output error")
)

// OutOfRangeError a partition range that does not fit the usable LBA window
type OutOfRangeError struct {
	Start, End  uint64
	First, Last uint64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("partition sectors %d-%d outside of usable range %d-%d", e.Start, e.End, e.First, e.Last)
}

func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

func NewOutOfRangeError(start, end, first, last uint64) *OutOfRangeError {
	return &OutOfRangeError{Start: start, End: end, First: first, Last: last}
}

// OverlapError two partitions that share at least one sector
type OverlapError struct {
	AStart, AEnd uint64
	BStart, BEnd uint64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("partition sectors %d-%d overlap sectors %d-%d", e.AStart, e.AEnd, e.BStart, e.BEnd)
}

func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}

func NewOverlapError(a, b *Partition) *OverlapError {
	return &OverlapError{AStart: a.start, AEnd: a.End(), BStart: b.start, BEnd: b.End()}
}

type MaxPartitionsExceededError struct {
	requested int
	max       int
}

func (e *MaxPartitionsExceededError) Error() string {
	return fmt.Sprintf("requested %d partitions exceeds maximum partitions %d", e.requested, e.max)
}

func (e *MaxPartitionsExceededError) Is(target error) bool {
	return target == ErrTooManyPartitions
}

func NewMaxPartitionsExceededError(requested, maxPart int) *MaxPartitionsExceededError {
	return &MaxPartitionsExceededError{
		requested: requested,
		max:       maxPart,
	}
}

type InvalidPartitionError struct {
	requested int
}

func (e *InvalidPartitionError) Error() string {
	return fmt.Sprintf("requested partition %d not found", e.requested)
}

func (e *InvalidPartitionError) Is(target error) bool {
	return target == ErrNotFound
}

func NewInvalidPartitionError(requested int) *InvalidPartitionError {
	return &InvalidPartitionError{
		requested: requested,
	}
}
