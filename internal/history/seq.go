package history

import "sync/atomic"

// sequence is a monotonic logical clock for entry IDs.
//
// IDs only order entries relative to each other. They carry no wall-clock
// meaning; CreatedAt holds the timestamp.
type sequence struct {
	n atomic.Int64
}

// Next returns the next ID. The first call returns 1.
func (s *sequence) Next() int64 {
	return s.n.Add(1)
}

