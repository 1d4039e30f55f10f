package queue

import (
	"context"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
)

// Slice replays fixed batches, then returns empty batches.
type Slice struct {
	batches [][]domain.Event
	calls   int
}

// NewSlice creates a source returning each batch in turn.
func NewSlice(batches ...[]domain.Event) *Slice {
	return &Slice{batches: batches}
}

// Next implements Source.
func (s *Slice) Next(ctx context.Context) ([]domain.Event, error) {
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

// Remaining returns the number of batches not yet delivered.
func (s *Slice) Remaining() int {
	return len(s.batches)
}

// Calls returns how many times Next was called.
func (s *Slice) Calls() int {
	return s.calls
}

// Close implements Source.
func (s *Slice) Close() error {
	return nil
}
