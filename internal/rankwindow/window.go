// Package rankwindow computes the rank tolerance window used to look up
// colleges whose closing ranks are close to a candidate's rank.
//
// The buffer is tiered by rank magnitude. Low ranks sit where cut-offs are
// dense, so they get a tight percentage with a floor of 2,000 ranks. High
// ranks sit where cut-offs are sparse and get both a wider percentage and a
// larger floor.
package rankwindow

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when a rank is not a positive integer.
var ErrInvalidArgument = errors.New("invalid argument")

// tier describes the buffer applied to ranks below an upper bound.
type tier struct {
	upper     int // exclusive; 0 means unbounded
	percent   int
	minBuffer int
}

var tiers = []tier{
	{upper: 10000, percent: 15, minBuffer: 2000},
	{upper: 50000, percent: 20, minBuffer: 5000},
	{upper: 0, percent: 25, minBuffer: 10000},
}

// Window is an inclusive closing-rank range.
type Window struct {
	Min int `json:"min_rank"`
	Max int `json:"max_rank"`
}

// Contains reports whether a closing rank lies inside the window.
func (w Window) Contains(rank int) bool {
	return rank >= w.Min && rank <= w.Max
}

// String formats the window as "min-max".
func (w Window) String() string {
	return fmt.Sprintf("%d-%d", w.Min, w.Max)
}

// Buffer returns the tolerance applied around rank: the larger of the tier's
// minimum absolute buffer and floor(rank * percentage).
func Buffer(rank int) (int, error) {
	if rank <= 0 {
		return 0, fmt.Errorf("%w: rank must be positive, got %d", ErrInvalidArgument, rank)
	}

	t := tierFor(rank)
	// Integer arithmetic keeps the floor exact for every rank.
	return max(t.minBuffer, rank*t.percent/100), nil
}

// Compute returns the window [max(1, rank-buffer), rank+buffer].
func Compute(rank int) (Window, error) {
	buffer, err := Buffer(rank)
	if err != nil {
		return Window{}, err
	}
	return Window{
		Min: max(1, rank-buffer),
		Max: rank + buffer,
	}, nil
}

func tierFor(rank int) tier {
	for _, t := range tiers {
		if t.upper == 0 || rank < t.upper {
			return t
		}
	}
	return tiers[len(tiers)-1]
}
