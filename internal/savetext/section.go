package savetext

import "fmt"

// SectionChild is one direct child of an iterated section: an optional key
// and the span of its value. Bare items have HasKey false. The value span is
// parsed only if the caller asks (ParseSpan for blocks, Span.Text for
// scalars), so skipping past children costs nothing but the scan.
type SectionChild struct {
	Key    string
	HasKey bool
	Value  Span
}

// SectionIter lazily walks the direct children of one section. It is
// forward-only and not restartable mid-iteration; call IterateSection again
// for a fresh pass. The cost of finding one entry is proportional to how far
// into the section the entry sits, not to the size of the document.
type SectionIter struct {
	sc   scanner
	err  error
	done bool
}

// IterateSection locates the top-level section named sectionKey, without
// parsing the rest of the document, and returns an iterator over its direct
// children. The first occurrence wins if the document carries the section
// key more than once at top level.
//
// Returns ErrSectionNotFound (wrapped) if no such top-level key exists, an
// error if the key's value is not a block, or a located *ParseError if the
// scan trips over malformed input on the way.
func IterateSection(buf []byte, sectionKey string) (*SectionIter, error) {
	span, err := findSection(buf, sectionKey)
	if err != nil {
		return nil, err
	}
	return &SectionIter{sc: newScanner(buf, span.Start+1, span.End-1)}, nil
}

// IterateRoot returns an iterator over the document's own top-level
// children. The root behaves like one big unbraced section.
func IterateRoot(buf []byte) *SectionIter {
	return &SectionIter{sc: newScanner(buf, 0, len(buf))}
}

// Next returns the next direct child. It returns false when the section is
// exhausted or when iteration failed; check Err to tell the two apart.
func (it *SectionIter) Next() (SectionChild, bool) {
	if it.done {
		return SectionChild{}, false
	}

	tok, err := it.sc.next()
	if err != nil {
		return it.fail(err)
	}
	switch tok.kind {
	case tokEOF:
		it.done = true
		return SectionChild{}, false

	case tokClose:
		return it.fail(newParseError(it.sc.buf, tok.start, ErrUnexpectedClose))

	case tokEquals:
		return it.fail(newParseError(it.sc.buf, tok.start, ErrDanglingAssignment))

	case tokOpen:
		span, err := it.blockSpanAt(tok.start)
		if err != nil {
			return it.fail(err)
		}
		return SectionChild{Value: span}, true

	default: // tokScalar, tokString
		nxt, err := it.sc.next()
		if err != nil {
			return it.fail(err)
		}
		if nxt.kind != tokEquals {
			it.sc.unread(nxt)
			return SectionChild{Value: spanFor(tok)}, true
		}

		key := tokenText(it.sc.buf, tok)
		val, err := it.sc.next()
		if err != nil {
			return it.fail(err)
		}
		switch val.kind {
		case tokScalar, tokString:
			return SectionChild{Key: key, HasKey: true, Value: spanFor(val)}, true
		case tokOpen:
			span, err := it.blockSpanAt(val.start)
			if err != nil {
				return it.fail(err)
			}
			return SectionChild{Key: key, HasKey: true, Value: span}, true
		default:
			return it.fail(newParseError(it.sc.buf, val.start, ErrDanglingAssignment))
		}
	}
}

// Err returns the error that stopped iteration early, or nil after a clean
// exhaustion.
func (it *SectionIter) Err() error {
	return it.err
}

func (it *SectionIter) fail(err error) (SectionChild, bool) {
	it.err = err
	it.done = true
	return SectionChild{}, false
}

// blockSpanAt finds a child block's span and jumps the scanner past it.
func (it *SectionIter) blockSpanAt(openOff int) (Span, error) {
	span, err := FindBlockSpan(it.sc.buf, openOff)
	if err != nil {
		return Span{}, err
	}
	if span.End > it.sc.end {
		// The matching brace lies outside this section's window, which
		// means the window itself is unbalanced.
		return Span{}, newParseError(it.sc.buf, openOff, ErrUnclosedBlock)
	}
	it.sc.pos = span.End
	it.sc.hasSaved = false
	return span, nil
}

func spanFor(tok token) Span {
	kind := SpanScalar
	if tok.kind == tokString {
		kind = SpanString
	}
	return Span{Kind: kind, Start: tok.start, End: tok.end}
}

// findSection scans top-level pairs, skipping over every non-matching value
// block wholesale via FindBlockSpan, until it finds sectionKey.
func findSection(buf []byte, sectionKey string) (Span, error) {
	sc := newScanner(buf, 0, len(buf))
	for {
		tok, err := sc.next()
		if err != nil {
			return Span{}, err
		}
		switch tok.kind {
		case tokEOF:
			return Span{}, fmt.Errorf("savetext: section %q: %w", sectionKey, ErrSectionNotFound)

		case tokClose:
			return Span{}, newParseError(buf, tok.start, ErrUnexpectedClose)

		case tokEquals:
			return Span{}, newParseError(buf, tok.start, ErrDanglingAssignment)

		case tokOpen:
			// bare top-level block, not a named section
			span, err := FindBlockSpan(buf, tok.start)
			if err != nil {
				return Span{}, err
			}
			sc.pos = span.End

		default: // tokScalar, tokString
			nxt, err := sc.next()
			if err != nil {
				return Span{}, err
			}
			if nxt.kind != tokEquals {
				sc.unread(nxt)
				continue
			}
			key := tokenText(buf, tok)
			val, err := sc.next()
			if err != nil {
				return Span{}, err
			}
			switch val.kind {
			case tokOpen:
				span, err := FindBlockSpan(buf, val.start)
				if err != nil {
					return Span{}, err
				}
				if key == sectionKey {
					return span, nil
				}
				sc.pos = span.End
			case tokScalar, tokString:
				if key == sectionKey {
					return Span{}, fmt.Errorf("savetext: section %q: value is not a block", sectionKey)
				}
			default:
				return Span{}, newParseError(buf, val.start, ErrDanglingAssignment)
			}
		}
	}
}
