package savetext

import "fmt"

// SpanKind classifies what a Span refers to.
type SpanKind int

const (
	// SpanScalar is a bare literal or number.
	SpanScalar SpanKind = iota

	// SpanString is a quoted string, including the surrounding quotes.
	SpanString

	// SpanBlock is a brace-delimited block, including the braces.
	SpanBlock
)

// String returns a human-readable kind name.
func (k SpanKind) String() string {
	switch k {
	case SpanScalar:
		return "scalar"
	case SpanString:
		return "string"
	case SpanBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Span is a reference into a source buffer: [Start, End) with End exclusive.
// It never copies bytes and is valid only as long as the buffer lives.
type Span struct {
	Kind  SpanKind
	Start int
	End   int
}

// Len returns the number of bytes the span covers.
func (s Span) Len() int {
	return s.End - s.Start
}

// Bytes returns the referenced slice of buf without copying.
func (s Span) Bytes(buf []byte) []byte {
	return buf[s.Start:s.End]
}

// FindBlockSpan returns the span of the block whose opening brace sits at
// openOffset, up to and including the matching closing brace. Braces inside
// quoted strings do not affect nesting depth, and backslash escapes inside
// strings are honored.
//
// The scan is a single linear pass with depth tracked by a counter, not a
// call stack, so adversarial nesting cannot exhaust the stack. Reaching
// end-of-input before depth returns to zero yields ErrUnclosedBlock located
// at openOffset.
func FindBlockSpan(buf []byte, openOffset int) (Span, error) {
	if openOffset < 0 || openOffset >= len(buf) || buf[openOffset] != '{' {
		return Span{}, fmt.Errorf("savetext: no opening brace at offset %d", openOffset)
	}

	depth := 0
	i := openOffset
	for i < len(buf) {
		switch buf[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return Span{Kind: SpanBlock, Start: openOffset, End: i + 1}, nil
			}
		case '"':
			end, err := scanString(buf, i)
			if err != nil {
				return Span{}, err
			}
			i = end
			continue
		}
		i++
	}
	return Span{}, newParseError(buf, openOffset, ErrUnclosedBlock)
}

// scanString advances past the quoted string opening at off and returns the
// offset just after the closing quote. A backslash escapes the next byte.
func scanString(buf []byte, off int) (int, error) {
	i := off + 1
	for i < len(buf) {
		switch buf[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1, nil
		default:
			i++
		}
	}
	return 0, newParseError(buf, off, ErrUnterminatedString)
}

// Token kinds produced by the scanner. Internal to the package; the parser
// and section iterator consume these.
type tokKind int

const (
	tokEOF tokKind = iota
	tokScalar
	tokString
	tokOpen
	tokClose
	tokEquals
)

// token is a raw lexeme: a kind plus its [start, end) byte range. String
// tokens include their quotes; decoding happens at parse time.
type token struct {
	kind  tokKind
	start int
	end   int
}

// tokenText returns the decoded text of a scalar or string token.
func tokenText(buf []byte, tok token) string {
	raw := buf[tok.start:tok.end]
	if tok.kind == tokString {
		return decodeString(raw)
	}
	return string(raw)
}

// scanner walks a window [pos, end) of a buffer and hands out tokens.
// Offsets are always absolute into buf, so errors from nested windows (the
// section iterator, ParseSpan) locate correctly in the whole document.
type scanner struct {
	buf []byte
	pos int
	end int

	// one-token pushback for the parser's assignment lookahead
	saved    token
	hasSaved bool
}

func newScanner(buf []byte, start, end int) scanner {
	return scanner{buf: buf, pos: start, end: end}
}

// next returns the next token in the window, skipping whitespace.
func (s *scanner) next() (token, error) {
	if s.hasSaved {
		s.hasSaved = false
		return s.saved, nil
	}
	s.skipSpace()
	if s.pos >= s.end {
		return token{kind: tokEOF, start: s.pos, end: s.pos}, nil
	}

	start := s.pos
	switch c := s.buf[s.pos]; c {
	case '{':
		s.pos++
		return token{kind: tokOpen, start: start, end: s.pos}, nil
	case '}':
		s.pos++
		return token{kind: tokClose, start: start, end: s.pos}, nil
	case '=':
		s.pos++
		return token{kind: tokEquals, start: start, end: s.pos}, nil
	case '"':
		end, err := scanString(s.buf, s.pos)
		if err != nil {
			return token{}, err
		}
		if end > s.end {
			// The closing quote lies outside the window, so within this
			// window the string never terminates.
			return token{}, newParseError(s.buf, start, ErrUnterminatedString)
		}
		s.pos = end
		return token{kind: tokString, start: start, end: end}, nil
	default:
		for s.pos < s.end && !isDelimiter(s.buf[s.pos]) {
			s.pos++
		}
		return token{kind: tokScalar, start: start, end: s.pos}, nil
	}
}

// unread pushes tok back so the next call to next returns it again.
func (s *scanner) unread(tok token) {
	s.saved = tok
	s.hasSaved = true
}

func (s *scanner) skipSpace() {
	for s.pos < s.end && isSpace(s.buf[s.pos]) {
		s.pos++
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// isDelimiter reports whether c terminates a bare scalar. Everything else
// (letters, digits, '.', ':', '-', '_', ...) is scalar material.
func isDelimiter(c byte) bool {
	return isSpace(c) || c == '{' || c == '}' || c == '=' || c == '"'
}
