package dataset

import (
	"errors"
)

// ErrNoUsableSequences is returned when every candidate sequence is too
// short to form an input/target pair.
var ErrNoUsableSequences = errors.New("no usable training sequences")

// BatchSource cycles over pre-encoded token sequences in a fixed order,
// one sequence per training step.
type BatchSource struct {
	seqs [][]int
	next int
}

// NewBatchSource keeps every sequence of at least two tokens and drops
// the rest.
func NewBatchSource(seqs [][]int) (*BatchSource, error) {
	usable := make([][]int, 0, len(seqs))
	for _, s := range seqs {
		if len(s) >= 2 {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoUsableSequences
	}
	return &BatchSource{seqs: usable}, nil
}

// Next returns the next sequence, wrapping around at the end.
func (b *BatchSource) Next() ([]int, error) {
	seq := b.seqs[b.next]
	b.next = (b.next + 1) % len(b.seqs)
	return seq, nil
}

// Len reports how many usable sequences the source holds.
func (b *BatchSource) Len() int {
	return len(b.seqs)
}
