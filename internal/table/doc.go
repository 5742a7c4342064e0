// Package table holds the in-memory dataset loaded from a CSV file and the
// operations applied to it.
//
// A [Table] is an ordered list of named columns. Every column has the same
// number of values, so rows are positionally aligned across columns. Tables
// are immutable once built: [Table.Truncate] returns a new Table instead of
// editing the receiver, which lets callers hand the same Table to a display
// adapter and a writer without copying.
//
// # Values
//
// Each cell is a [Value] with a [Kind]:
//
//   - KindNull: the field was empty or one of the usual missing-value markers
//     ("NA", "NaN", "null", ...)
//   - KindNumber: every non-null cell of the column parses as a number
//   - KindText: anything else
//
// Column kinds are inferred after the whole file is read, the same way a
// dataframe reader decides between numeric and object columns. Values keep
// their raw text so a saved file reproduces numbers exactly as they were read.
//
// # Errors
//
// Failures are reported as [*Error] values whose Kind is one of [ErrParse],
// [ErrSchema] or [ErrWrite], so callers can branch with errors.Is:
//
//	t, err := table.LoadFile(path)
//	if errors.Is(err, table.ErrParse) {
//	    // unreadable or malformed file
//	}
package table
