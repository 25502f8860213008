package predict

import (
	"errors"
	"fmt"

	"github.com/onnwee/collegepredictor/internal/college"
)

// Sentinel errors for branching with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrDataSource = errors.New("data source error")
)

// ValidationError reports a malformed prediction request. It is returned
// before any dataset access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DataSourceError reports that the dataset could not be queried. Partition
// names the first phase whose query failed.
type DataSourceError struct {
	Partition college.Partition
	Err       error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source error querying %s: %v", e.Partition, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// Is matches ErrDataSource.
func (e *DataSourceError) Is(target error) bool {
	return target == ErrDataSource
}
