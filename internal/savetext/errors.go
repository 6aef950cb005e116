package savetext

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped in *ParseError) by the scanner, the
// parser, and the section iterator. Use errors.Is to classify.
var (
	// ErrUnclosedBlock indicates end-of-input was reached before a block's
	// closing brace; the offset points at the opening brace.
	ErrUnclosedBlock = errors.New("unclosed block")

	// ErrUnexpectedClose indicates a closing brace with no matching opener;
	// the offset points at the stray brace.
	ErrUnexpectedClose = errors.New("unexpected closing brace")

	// ErrUnterminatedString indicates a quoted string with no closing quote
	// before end-of-input; the offset points at the opening quote.
	ErrUnterminatedString = errors.New("unterminated string")

	// ErrDanglingAssignment indicates an assignment operator with no
	// parseable value after it (or no key before it).
	ErrDanglingAssignment = errors.New("dangling assignment")

	// ErrDepthExceeded indicates block nesting deeper than Limits.MaxDepth.
	ErrDepthExceeded = errors.New("max block depth exceeded")

	// ErrNodeCountExceeded indicates the document produced more nodes than
	// Limits.MaxNodes allows.
	ErrNodeCountExceeded = errors.New("max node count exceeded")

	// ErrSectionNotFound is returned by IterateSection when the document has
	// no top-level section with the requested key. It is a plain sentinel,
	// not a *ParseError: absence is not a syntax problem.
	ErrSectionNotFound = errors.New("section not found")
)

// excerptRadius bounds the surrounding-text excerpt attached to errors.
const excerptRadius = 24

// ParseError is the located error type for all unrecoverable conditions in
// this package. The parser never returns a structure it considers
// incomplete; it returns one of these instead.
type ParseError struct {
	// Err is the sentinel kind (ErrUnclosedBlock, ErrUnterminatedString, ...).
	Err error

	// Offset is the byte offset of the offending position in the buffer.
	Offset int

	// Line and Col locate Offset as 1-based line and column.
	Line int
	Col  int

	// Excerpt is a bounded slice of surrounding text for diagnostics.
	Excerpt string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v at offset %d (line %d, col %d) near %q", e.Err, e.Offset, e.Line, e.Col, e.Excerpt)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// newParseError builds a located ParseError for buf at offset off.
func newParseError(buf []byte, off int, kind error) *ParseError {
	if off < 0 {
		off = 0
	}
	if off > len(buf) {
		off = len(buf)
	}
	line, col := lineCol(buf, off)
	return &ParseError{
		Err:     kind,
		Offset:  off,
		Line:    line,
		Col:     col,
		Excerpt: excerpt(buf, off),
	}
}

// lineCol derives the 1-based line and column of off.
func lineCol(buf []byte, off int) (int, int) {
	line, col := 1, 1
	for i := 0; i < off && i < len(buf); i++ {
		if buf[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// excerpt returns up to excerptRadius bytes either side of off.
func excerpt(buf []byte, off int) string {
	lo := off - excerptRadius
	if lo < 0 {
		lo = 0
	}
	hi := off + excerptRadius
	if hi > len(buf) {
		hi = len(buf)
	}
	return string(buf[lo:hi])
}

// IsLimitError reports whether err is a safety-limit violation (depth or
// node count) as opposed to malformed input. Callers use this to distinguish
// "document too pathological to parse" from "document broken".
func IsLimitError(err error) bool {
	return errors.Is(err, ErrDepthExceeded) || errors.Is(err, ErrNodeCountExceeded)
}
