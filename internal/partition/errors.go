package partition

import "errors"

var (
	// ErrInvalidNodeCount reports a node count outside the accepted range.
	ErrInvalidNodeCount = errors.New("partition: invalid node count")
	// ErrInvalidSampleCount reports a non-positive samples-per-node value.
	ErrInvalidSampleCount = errors.New("partition: samples per node must be > 0")
	// ErrInvalidBatchSize reports a non-positive batch size.
	ErrInvalidBatchSize = errors.New("partition: batch size must be > 0")
	// ErrInsufficientSamples reports a draw larger than the dataset.
	ErrInsufficientSamples = errors.New("partition: dataset too small for requested draw")
)
