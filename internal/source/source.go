// Package source decodes the customer roster (CSV) and the order feed (XML) into typed records.
// A malformed record never stops a read: it is returned as a Failure next to the good records.
package source

// Failure is a record the reader could not decode. Raw holds whatever could be salvaged for the audit trail.
type Failure struct {
	Line int
	Raw  any
	Err  error
}

// Batch is the outcome of reading one source file.
type Batch[T any] struct {
	Records  []T
	Failures []Failure
}

// Len counts every record read, decoded or not.
func (b Batch[T]) Len() int {
	return len(b.Records) + len(b.Failures)
}
