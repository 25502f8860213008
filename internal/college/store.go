package college

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store queries one counselling phase at a time. Implementations must be
// safe for concurrent use; the prediction engine queries all phases in
// parallel.
type Store interface {
	// QueryPartition returns the records of partition whose closing rank for
	// q.Category lies in [q.MinRank, q.MaxRank] and whose branch name equals
	// q.Branch exactly, sorted ascending by closing rank and capped at q.Limit.
	QueryPartition(ctx context.Context, partition Partition, q Query) ([]Projection, error)
}

// InMemoryStore is an in-memory implementation of Store.
// Used for testing and development.
type InMemoryStore struct {
	mu         sync.RWMutex
	partitions map[Partition][]*Record
}

// NewInMemoryStore creates an empty in-memory store with all phases present.
func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{
		partitions: make(map[Partition][]*Record),
	}
	for _, p := range Partitions() {
		s.partitions[p] = nil
	}
	return s
}

// Add stores copies of records in the given partition.
func (s *InMemoryStore) Add(partition Partition, records ...*Record) error {
	if !partition.Valid() {
		return fmt.Errorf("unknown partition %q", partition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		recordCopy := *r
		recordCopy.ClosingRanks = make(map[Category]int, len(r.ClosingRanks))
		for c, rank := range r.ClosingRanks {
			recordCopy.ClosingRanks[c] = rank
		}
		s.partitions[partition] = append(s.partitions[partition], &recordCopy)
	}
	return nil
}

// QueryPartition implements Store.
func (s *InMemoryStore) QueryPartition(ctx context.Context, partition Partition, q Query) ([]Projection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !partition.Valid() {
		return nil, fmt.Errorf("unknown partition %q", partition)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	records := s.partitions[partition]
	results := make([]Projection, 0)
	for _, r := range records {
		if rank, ok := q.matches(r); ok {
			results = append(results, project(r, q.Category, rank))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return less(results[i], results[j])
	})

	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}
