package savetext

import (
	"bytes"
	"fmt"
	"strings"
)

// ValueKind classifies a parsed value.
type ValueKind int

const (
	// ValueScalar is a bare literal or number, stored verbatim.
	ValueScalar ValueKind = iota

	// ValueString is a quoted string, stored with quotes stripped and
	// escapes decoded.
	ValueString

	// ValueBlock is a nested block.
	ValueBlock
)

// Value is one parsed value: a scalar, a string, or a nested block.
type Value struct {
	Kind   ValueKind
	Scalar string // set for ValueScalar and ValueString
	Block  *Block // set for ValueBlock
}

// IsBlock reports whether the value is a nested block.
func (v Value) IsBlock() bool {
	return v.Kind == ValueBlock
}

// String returns the scalar text, or a brief placeholder for blocks.
func (v Value) String() string {
	if v.Kind == ValueBlock {
		return "{...}"
	}
	return v.Scalar
}

// Pair is one key with every value that appeared under it, in source order.
type Pair struct {
	Key    string
	Values []Value
}

// Block is the parsed form of one brace-delimited block (or of a whole
// document, at the root): ordered key→value pairs plus a separate ordered
// sequence of bare (unkeyed) items.
//
// Duplicate keys never override and are never dropped: a key appearing once
// yields a single value, a key appearing N ≥ 2 times yields all N values in
// source order, retrievable with Values. Whether a particular key is
// semantically expected to be scalar is the consumer's call to assert; the
// parser does not guess.
type Block struct {
	pairs []Pair
	index map[string]int
	items []Value
}

func newBlock() *Block {
	return &Block{index: make(map[string]int)}
}

func (b *Block) add(key string, v Value) {
	if i, ok := b.index[key]; ok {
		b.pairs[i].Values = append(b.pairs[i].Values, v)
		return
	}
	b.index[key] = len(b.pairs)
	b.pairs = append(b.pairs, Pair{Key: key, Values: []Value{v}})
}

// Len returns the number of distinct keys.
func (b *Block) Len() int {
	return len(b.pairs)
}

// Keys returns the distinct keys in first-appearance order.
func (b *Block) Keys() []string {
	keys := make([]string, len(b.pairs))
	for i, p := range b.pairs {
		keys[i] = p.Key
	}
	return keys
}

// Has reports whether the key appeared at least once.
func (b *Block) Has(key string) bool {
	_, ok := b.index[key]
	return ok
}

// Values returns every value stored under key in source order, or nil if the
// key is absent. This is the accessor that can never lose an occurrence.
func (b *Block) Values(key string) []Value {
	i, ok := b.index[key]
	if !ok {
		return nil
	}
	return b.pairs[i].Values
}

// Get returns the first value under key. Intended for keys the caller
// expects to be scalar; use Values to observe duplicates.
func (b *Block) Get(key string) (Value, bool) {
	i, ok := b.index[key]
	if !ok {
		return Value{}, false
	}
	return b.pairs[i].Values[0], true
}

// GetString returns the first value under key as decoded text. It returns
// false if the key is absent or its first value is a block.
func (b *Block) GetString(key string) (string, bool) {
	v, ok := b.Get(key)
	if !ok || v.Kind == ValueBlock {
		return "", false
	}
	return v.Scalar, true
}

// GetBlock returns the first value under key as a nested block. It returns
// false if the key is absent or its first value is not a block.
func (b *Block) GetBlock(key string) (*Block, bool) {
	v, ok := b.Get(key)
	if !ok || v.Kind != ValueBlock {
		return nil, false
	}
	return v.Block, true
}

// Items returns the bare (unkeyed) items in source order.
func (b *Block) Items() []Value {
	return b.items
}

// Pairs returns the full ordered key view. Callers must not mutate it.
func (b *Block) Pairs() []Pair {
	return b.pairs
}

// Limits are the safety limits guarding the parser against pathological or
// adversarial input. Exceeding either raises an explicit located error
// rather than hanging or exhausting memory.
type Limits struct {
	// MaxDepth is the maximum block nesting depth below the root.
	MaxDepth int

	// MaxNodes is the maximum total number of parsed values (scalars,
	// strings, and blocks all count).
	MaxNodes int
}

// DefaultLimits returns limits comfortably above anything a well-formed
// save produces.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth: 64,
		MaxNodes: 10_000_000,
	}
}

func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.MaxDepth <= 0 {
		l.MaxDepth = def.MaxDepth
	}
	if l.MaxNodes <= 0 {
		l.MaxNodes = def.MaxNodes
	}
	return l
}

// Parse parses a whole document into a root Block using DefaultLimits.
//
// The grammar is the fixed save dialect: a sequence of `key=value` pairs and
// bare items, where a value is a quoted string, a bare literal/number, or a
// `{ ... }` block recursively holding the same shape. Parse is a pure
// function of the buffer and returns either a complete Block or a located
// *ParseError, never a partial result.
func Parse(buf []byte) (*Block, error) {
	return ParseWithLimits(buf, DefaultLimits())
}

// ParseWithLimits is Parse with explicit safety limits. Zero or negative
// limit fields fall back to DefaultLimits values.
func ParseWithLimits(buf []byte, limits Limits) (*Block, error) {
	p := &parser{
		sc:     newScanner(buf, 0, len(buf)),
		limits: limits.withDefaults(),
	}
	return p.parseBlock(-1)
}

// ParseSpan parses the interior of a block span previously located with
// FindBlockSpan or the section iterator, using DefaultLimits. Error offsets
// remain absolute into buf.
func ParseSpan(buf []byte, s Span) (*Block, error) {
	return ParseSpanWithLimits(buf, s, DefaultLimits())
}

// ParseSpanWithLimits is ParseSpan with explicit safety limits.
func ParseSpanWithLimits(buf []byte, s Span, limits Limits) (*Block, error) {
	if s.Kind != SpanBlock {
		return nil, fmt.Errorf("savetext: cannot parse %s span as a block", s.Kind)
	}
	if s.Start < 0 || s.End > len(buf) || s.End-s.Start < 2 {
		return nil, fmt.Errorf("savetext: block span [%d, %d) out of range", s.Start, s.End)
	}
	p := &parser{
		sc:     newScanner(buf, s.Start+1, s.End-1),
		limits: limits.withDefaults(),
	}
	return p.parseBlock(-1)
}

// Text returns the decoded text of a scalar or string span. Block spans
// return their raw bytes unchanged.
func (s Span) Text(buf []byte) string {
	raw := buf[s.Start:s.End]
	if s.Kind == SpanString {
		return decodeString(raw)
	}
	return string(raw)
}

type parser struct {
	sc     scanner
	limits Limits
	nodes  int
	depth  int
}

// parseBlock parses pairs and items until the block closes. openOff is the
// offset of the opening brace, or -1 when parsing a root window (where
// end-of-window is the legitimate terminator).
func (p *parser) parseBlock(openOff int) (*Block, error) {
	if openOff >= 0 {
		p.depth++
		if p.depth > p.limits.MaxDepth {
			return nil, newParseError(p.sc.buf, openOff, ErrDepthExceeded)
		}
		defer func() { p.depth-- }()
	}

	b := newBlock()
	for {
		tok, err := p.sc.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokEOF:
			if openOff < 0 {
				return b, nil
			}
			return nil, newParseError(p.sc.buf, openOff, ErrUnclosedBlock)

		case tokClose:
			if openOff < 0 {
				return nil, newParseError(p.sc.buf, tok.start, ErrUnexpectedClose)
			}
			return b, nil

		case tokEquals:
			// assignment with nothing on the left
			return nil, newParseError(p.sc.buf, tok.start, ErrDanglingAssignment)

		case tokOpen:
			// bare nested block item, e.g. positional entries in an array
			if err := p.countNode(tok.start); err != nil {
				return nil, err
			}
			nested, err := p.parseBlock(tok.start)
			if err != nil {
				return nil, err
			}
			b.items = append(b.items, Value{Kind: ValueBlock, Block: nested})

		case tokScalar, tokString:
			nxt, err := p.sc.next()
			if err != nil {
				return nil, err
			}
			if nxt.kind == tokEquals {
				val, err := p.parseValue()
				if err != nil {
					return nil, err
				}
				b.add(p.decode(tok), val)
				continue
			}
			p.sc.unread(nxt)
			v, err := p.valueFor(tok)
			if err != nil {
				return nil, err
			}
			b.items = append(b.items, v)
		}
	}
}

// parseValue parses the value after an assignment operator.
func (p *parser) parseValue() (Value, error) {
	tok, err := p.sc.next()
	if err != nil {
		return Value{}, err
	}
	switch tok.kind {
	case tokScalar, tokString:
		return p.valueFor(tok)
	case tokOpen:
		if err := p.countNode(tok.start); err != nil {
			return Value{}, err
		}
		nested, err := p.parseBlock(tok.start)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueBlock, Block: nested}, nil
	default:
		// tokEOF, tokClose, or another '=': nothing parseable to assign
		return Value{}, newParseError(p.sc.buf, tok.start, ErrDanglingAssignment)
	}
}

func (p *parser) valueFor(tok token) (Value, error) {
	if err := p.countNode(tok.start); err != nil {
		return Value{}, err
	}
	if tok.kind == tokString {
		return Value{Kind: ValueString, Scalar: decodeString(p.sc.buf[tok.start:tok.end])}, nil
	}
	return Value{Kind: ValueScalar, Scalar: string(p.sc.buf[tok.start:tok.end])}, nil
}

func (p *parser) countNode(off int) error {
	p.nodes++
	if p.nodes > p.limits.MaxNodes {
		return newParseError(p.sc.buf, off, ErrNodeCountExceeded)
	}
	return nil
}

// decode returns the key text of a scalar or string token.
func (p *parser) decode(tok token) string {
	return tokenText(p.sc.buf, tok)
}

// decodeString strips the surrounding quotes and decodes escapes. The
// dialect's producers only emit \" and \\, but \n and \t are accepted for
// robustness; an unrecognized escape keeps both bytes verbatim.
func decodeString(raw []byte) string {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	if bytes.IndexByte(raw, '\\') < 0 {
		return string(raw)
	}
	var sb strings.Builder
	sb.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case '"':
			sb.WriteByte('"')
		case '\\':
			sb.WriteByte('\\')
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		default:
			sb.WriteByte('\\')
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}
