// Package college provides the counselling dataset model and the store
// capability used to query closing ranks per counselling phase.
package college

import (
	"fmt"
	"sort"
	"strings"
)

// MaxResultsPerPartition caps the number of records returned for one phase.
const MaxResultsPerPartition = 50

// Partition names one counselling phase of the dataset.
type Partition string

// The three counselling phases, in counselling order.
const (
	FirstPhase  Partition = "First_Phase"
	SecondPhase Partition = "Second_Phase"
	FinalPhase  Partition = "Final_Phase"
)

// Partitions returns the fixed phases in counselling order.
func Partitions() []Partition {
	return []Partition{FirstPhase, SecondPhase, FinalPhase}
}

// Table returns the PostgreSQL table that holds the phase.
func (p Partition) Table() string {
	return strings.ToLower(string(p))
}

// Valid reports whether p is one of the fixed phases.
func (p Partition) Valid() bool {
	switch p {
	case FirstPhase, SecondPhase, FinalPhase:
		return true
	}
	return false
}

// Category identifies one category/gender closing-rank column, e.g. OC_BOYS.
type Category string

var (
	categoryGroups = []string{"OC", "BC_A", "BC_B", "BC_C", "BC_D", "BC_E", "SC", "ST", "EWS"}
	genders        = []string{"BOYS", "GIRLS"}

	knownCategories = func() map[Category]struct{} {
		m := make(map[Category]struct{}, len(categoryGroups)*len(genders))
		for _, g := range categoryGroups {
			for _, s := range genders {
				m[Category(g+"_"+s)] = struct{}{}
			}
		}
		return m
	}()
)

// Categories returns every known category identifier in sorted order.
func Categories() []Category {
	out := make([]Category, 0, len(knownCategories))
	for c := range knownCategories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseCategory validates an identifier against the allow-list.
// Matching is exact; "oc_boys" is not a known identifier.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Valid reports whether c is on the allow-list.
func (c Category) Valid() bool {
	_, ok := knownCategories[c]
	return ok
}

// Column returns the dataset column holding closing ranks for c.
func (c Category) Column() string {
	return strings.ToLower(string(c))
}

// Record is one row of a counselling phase. ClosingRanks holds only the
// categories for which the branch was offered.
type Record struct {
	InstituteName string
	Place         string
	DistCode      string
	CollegeType   string
	BranchName    string
	TuitionFee    int64
	ClosingRanks  map[Category]int
}

// Projection is the subset of a Record returned to callers: the descriptive
// fields plus the closing rank for the requested category alone.
type Projection struct {
	InstituteName string   `json:"institute_name"`
	Place         string   `json:"place"`
	DistCode      string   `json:"dist_code"`
	CollegeType   string   `json:"college_type"`
	BranchName    string   `json:"branch_name"`
	TuitionFee    int64    `json:"tuition_fee"`
	Category      Category `json:"category"`
	ClosingRank   int      `json:"closing_rank"`
}

// Query is the single query shape issued against a partition.
type Query struct {
	Category Category
	MinRank  int
	MaxRank  int
	Branch   string
	Limit    int
}

// Validate checks that the query is well formed before it reaches a store.
func (q Query) Validate() error {
	if !q.Category.Valid() {
		return fmt.Errorf("unknown category %q", q.Category)
	}
	if q.MinRank < 1 || q.MaxRank < q.MinRank {
		return fmt.Errorf("invalid rank range [%d, %d]", q.MinRank, q.MaxRank)
	}
	if q.Branch == "" {
		return fmt.Errorf("branch is required")
	}
	if q.Limit <= 0 || q.Limit > MaxResultsPerPartition {
		return fmt.Errorf("limit must be between 1 and %d, got %d", MaxResultsPerPartition, q.Limit)
	}
	return nil
}

// matches applies the query filter to a record.
func (q Query) matches(r *Record) (int, bool) {
	if r.BranchName != q.Branch {
		return 0, false
	}
	rank, ok := r.ClosingRanks[q.Category]
	if !ok {
		return 0, false
	}
	return rank, rank >= q.MinRank && rank <= q.MaxRank
}

// project reduces a record to the fields returned for category c.
func project(r *Record, c Category, rank int) Projection {
	return Projection{
		InstituteName: r.InstituteName,
		Place:         r.Place,
		DistCode:      r.DistCode,
		CollegeType:   r.CollegeType,
		BranchName:    r.BranchName,
		TuitionFee:    r.TuitionFee,
		Category:      c,
		ClosingRank:   rank,
	}
}

// less orders projections by closing rank, then institute name, then place.
func less(a, b Projection) bool {
	if a.ClosingRank != b.ClosingRank {
		return a.ClosingRank < b.ClosingRank
	}
	if a.InstituteName != b.InstituteName {
		return a.InstituteName < b.InstituteName
	}
	return a.Place < b.Place
}
