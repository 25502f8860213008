package college

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/onnwee/collegepredictor/internal/tracing"
)

// PostgresStore implements Store on top of a PostgreSQL connection pool.
// Each phase is a table with one nullable INTEGER column per category.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a store backed by the given pool. The pool is
// owned by the caller.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// buildPartitionQuery renders the SELECT for a phase. Identifiers come only
// from the partition enumeration and the category allow-list and are quoted
// regardless. Ties on closing rank are broken by institute name, then place,
// compared byte-wise to match the in-memory store.
func buildPartitionQuery(partition Partition, c Category) string {
	col := pq.QuoteIdentifier(c.Column())
	return fmt.Sprintf(`
		SELECT institute_name, place, dist_code, college_type, branch_name, tuition_fee, %[1]s
		FROM %[2]s
		WHERE %[1]s BETWEEN $1 AND $2
		  AND branch_name = $3
		ORDER BY %[1]s ASC, institute_name COLLATE "C" ASC, place COLLATE "C" ASC
		LIMIT $4`, col, pq.QuoteIdentifier(partition.Table()))
}

// QueryPartition implements Store. The connection used for the query is
// taken from the pool and returned when the rows are closed.
func (s *PostgresStore) QueryPartition(ctx context.Context, partition Partition, q Query) (results []Projection, err error) {
	if !partition.Valid() {
		return nil, fmt.Errorf("unknown partition %q", partition)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, partition.Table(), tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, buildPartitionQuery(partition, q.Category), q.MinRank, q.MaxRank, q.Branch, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", partition, err)
	}
	defer rows.Close()

	results = make([]Projection, 0, q.Limit)
	for rows.Next() {
		var (
			p           Projection
			place       sql.NullString
			distCode    sql.NullString
			collegeType sql.NullString
			tuitionFee  sql.NullInt64
		)
		if err := rows.Scan(&p.InstituteName, &place, &distCode, &collegeType, &p.BranchName, &tuitionFee, &p.ClosingRank); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", partition, err)
		}
		p.Place = place.String
		p.DistCode = distCode.String
		p.CollegeType = collegeType.String
		p.TuitionFee = tuitionFee.Int64
		p.Category = q.Category
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", partition, err)
	}

	s.logger.DebugContext(ctx, "partition queried",
		"partition", string(partition),
		"category", string(q.Category),
		"min_rank", q.MinRank,
		"max_rank", q.MaxRank,
		"results", len(results),
	)
	return results, nil
}
