package domain

import "fmt"

// ResultCeiling is the maximum number of rows a single query result may hold.
const ResultCeiling = 5000

// InsightError is a client-caused failure: a malformed query, an invalid or
// duplicate dataset id, or invalid content. The reason identifies the first
// violated rule; validation stops at the first defect.
type InsightError struct {
	Reason string
}

func (e InsightError) Error() string { return "insight: " + e.Reason }

// Insightf builds an InsightError from a format string.
func Insightf(format string, args ...any) InsightError {
	return InsightError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a removal addressed at an id with no live dataset or
// backing archive entry.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string { return fmt.Sprintf("dataset %q not found", e.ID) }

// ResultTooLargeError reports a query whose result set exceeds ResultCeiling,
// measured pre-aggregation for plain queries and post-aggregation when a
// transformation stage is present.
type ResultTooLargeError struct {
	Count int
}

func (e ResultTooLargeError) Error() string {
	return fmt.Sprintf("result of %d rows exceeds ceiling of %d", e.Count, ResultCeiling)
}

// StorageError reports an unrecoverable persistence failure. A corrupt entry
// during hydration aborts the whole load rather than surfacing partial state.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }

func (e StorageError) Unwrap() error { return e.Err }
