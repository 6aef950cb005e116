package savetext

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, src string) *Block {
	t.Helper()
	b, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}
	return b
}

// scalars extracts the scalar text of every value under key.
func scalars(t *testing.T, b *Block, key string) []string {
	t.Helper()
	vals := b.Values(key)
	out := make([]string, len(vals))
	for i, v := range vals {
		if v.Kind == ValueBlock {
			t.Fatalf("value %d under %q is a block, want scalar", i, key)
		}
		out[i] = v.Scalar
	}
	return out
}

func TestParseScalarsAndStrings(t *testing.T) {
	b := mustParse(t, `date=2301.5.12 name="Queen \"Vic\"" ratio=0.75`)

	tests := []struct {
		key  string
		want string
	}{
		{"date", "2301.5.12"},
		{"name", `Queen "Vic"`},
		{"ratio", "0.75"},
	}
	for _, tt := range tests {
		got, ok := b.GetString(tt.key)
		if !ok {
			t.Fatalf("GetString(%q) reported absent", tt.key)
		}
		if got != tt.want {
			t.Errorf("GetString(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3", b.Len())
	}
}

func TestParseDuplicateKeys(t *testing.T) {
	// A key appearing once is a scalar; appearing N >= 2 times it holds all
	// N values in source order. Never an override, never a drop.
	for _, n := range []int{1, 2, 3, 10} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			var sb strings.Builder
			want := make([]string, n)
			for i := 0; i < n; i++ {
				fmt.Fprintf(&sb, "army=unit_%d\n", i)
				want[i] = fmt.Sprintf("unit_%d", i)
			}
			b := mustParse(t, sb.String())

			got := scalars(t, b, "army")
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Values(\"army\") mismatch (-want +got):\n%s", diff)
			}
			if n == 1 {
				v, ok := b.Get("army")
				if !ok || v.Scalar != "unit_0" {
					t.Errorf("Get single occurrence = %v, %v", v, ok)
				}
			}
		})
	}
}

func TestParseNoSilentLoss(t *testing.T) {
	b := mustParse(t, "a=\"1\"\nb\nc=\"3\"")

	if got, _ := b.GetString("a"); got != "1" {
		t.Errorf("a = %q, want %q", got, "1")
	}
	if got, _ := b.GetString("c"); got != "3" {
		t.Errorf("c = %q, want %q (bare item must not swallow the pair after it)", got, "3")
	}
	items := b.Items()
	if len(items) != 1 || items[0].Scalar != "b" {
		t.Errorf("Items() = %v, want the single bare item \"b\"", items)
	}
	if b.Has("b") {
		t.Error("bare item leaked into the key index")
	}
}

func TestParseNestedBlocks(t *testing.T) {
	src := `
countries={
	ENG={ name="England" treasury=12.5 }
	FRA={ name="France" treasury=8 }
}
`
	b := mustParse(t, src)

	countries, ok := b.GetBlock("countries")
	if !ok {
		t.Fatal("countries block missing")
	}
	if diff := cmp.Diff([]string{"ENG", "FRA"}, countries.Keys()); diff != "" {
		t.Fatalf("country keys mismatch (-want +got):\n%s", diff)
	}
	fra, ok := countries.GetBlock("FRA")
	if !ok {
		t.Fatal("FRA block missing")
	}
	if got, _ := fra.GetString("treasury"); got != "8" {
		t.Errorf("FRA treasury = %q, want %q", got, "8")
	}
}

func TestParseBareBlockItems(t *testing.T) {
	// Positional blocks inside an array-style value.
	b := mustParse(t, `points={ {x=1 y=2} {x=3 y=4} }`)

	points, ok := b.GetBlock("points")
	if !ok {
		t.Fatal("points block missing")
	}
	items := points.Items()
	if len(items) != 2 {
		t.Fatalf("len(Items()) = %d, want 2", len(items))
	}
	for i, want := range []string{"1", "3"} {
		if !items[i].IsBlock() {
			t.Fatalf("item %d is not a block", i)
		}
		if got, _ := items[i].Block.GetString("x"); got != want {
			t.Errorf("item %d x = %q, want %q", i, got, want)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{"dangling value mid block", `outer={inner=`, ErrDanglingAssignment},
		{"dangling value at eof", `a=`, ErrDanglingAssignment},
		{"assignment with no key", `=5`, ErrDanglingAssignment},
		{"double equals", `a==1`, ErrDanglingAssignment},
		{"unclosed block", `a={b=1`, ErrUnclosedBlock},
		{"stray closing brace", `a=1 }`, ErrUnexpectedClose},
		{"unterminated string", `a="oops`, ErrUnterminatedString},
		{"unterminated string in block", `a={ b="oops }`, ErrUnterminatedString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatalf("Parse(%q) succeeded with %v, want %v", tt.src, b, tt.wantErr)
			}
			if b != nil {
				t.Fatalf("Parse(%q) returned a partial block alongside the error", tt.src)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error %v is not a *ParseError", err)
			}
			if perr.Line < 1 || perr.Col < 1 {
				t.Errorf("line/col = %d/%d, want 1-based", perr.Line, perr.Col)
			}
			if perr.Offset < 0 || perr.Offset > len(tt.src) {
				t.Errorf("offset %d out of range for %q", perr.Offset, tt.src)
			}
			if perr.Excerpt == "" && len(tt.src) > 0 {
				t.Error("excerpt is empty")
			}
		})
	}
}

func TestParseErrorLocation(t *testing.T) {
	// The dangling assignment sits on line 3, and the error must say so.
	src := "a=1\nb=2\nc=\nd=4"
	_, err := Parse([]byte(src))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if !errors.Is(err, ErrDanglingAssignment) {
		t.Fatalf("error = %v, want %v", err, ErrDanglingAssignment)
	}
	if perr.Line != 4 && perr.Line != 3 {
		// The missing value is discovered at the start of the next token
		// ("d" on line 4) or at the newline, never anywhere else.
		t.Errorf("error line = %d, want 3 or 4", perr.Line)
	}
}

func TestParseDepthLimit(t *testing.T) {
	deep := strings.Repeat("a={", 8) + "x=1" + strings.Repeat("}", 8)

	if _, err := ParseWithLimits([]byte(deep), Limits{MaxDepth: 4, MaxNodes: 1000}); !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("MaxDepth=4: error = %v, want %v", err, ErrDepthExceeded)
	}
	if _, err := ParseWithLimits([]byte(deep), Limits{MaxDepth: 16, MaxNodes: 1000}); err != nil {
		t.Errorf("MaxDepth=16: unexpected error %v", err)
	}
}

func TestParseNodeLimit(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, "k%d=%d\n", i, i)
	}

	if _, err := ParseWithLimits([]byte(sb.String()), Limits{MaxDepth: 4, MaxNodes: 10}); !errors.Is(err, ErrNodeCountExceeded) {
		t.Errorf("MaxNodes=10: error = %v, want %v", err, ErrNodeCountExceeded)
	}
	if _, err := ParseWithLimits([]byte(sb.String()), Limits{MaxDepth: 4, MaxNodes: 1000}); err != nil {
		t.Errorf("MaxNodes=1000: unexpected error %v", err)
	}
}

func TestParseLimitsDefaulting(t *testing.T) {
	// Zero limits mean defaults, not "reject everything".
	if _, err := ParseWithLimits([]byte("a=1"), Limits{}); err != nil {
		t.Errorf("zero limits: unexpected error %v", err)
	}
}

func TestParseEmptyInput(t *testing.T) {
	for _, src := range []string{"", "   \n\t  "} {
		b, err := Parse([]byte(src))
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", src, err)
		}
		if b.Len() != 0 || len(b.Items()) != 0 {
			t.Errorf("Parse(%q) produced non-empty block", src)
		}
	}
}

func TestParseSpanInterior(t *testing.T) {
	src := `pad=1 target={ a=1 a=2 b="x" } tail=9`
	open := strings.IndexByte(src, '{')
	span, err := FindBlockSpan([]byte(src), open)
	if err != nil {
		t.Fatalf("FindBlockSpan: %v", err)
	}

	b, err := ParseSpan([]byte(src), span)
	if err != nil {
		t.Fatalf("ParseSpan: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, b.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if got := scalars(t, b, "a"); len(got) != 2 {
		t.Errorf("duplicate key inside span collapsed: %v", got)
	}
	if b.Has("pad") || b.Has("tail") {
		t.Error("span parse leaked outside the span")
	}
}

func TestParseSpanRejectsNonBlock(t *testing.T) {
	src := []byte(`a=1`)
	if _, err := ParseSpan(src, Span{Kind: SpanScalar, Start: 2, End: 3}); err == nil {
		t.Error("ParseSpan accepted a scalar span")
	}
}

func TestDecodeStringEscapes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"escaped quote", `a="say \"hi\""`, `say "hi"`},
		{"escaped backslash", `a="c:\\saves"`, `c:\saves`},
		{"newline escape", `a="two\nlines"`, "two\nlines"},
		{"tab escape", `a="col\tcol"`, "col\tcol"},
		{"unknown escape kept", `a="odd\q"`, `odd\q`},
		{"braces inside string", `a="not { a } block"`, "not { a } block"},
		{"equals inside string", `a="k=v"`, "k=v"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mustParse(t, tt.src)
			got, ok := b.GetString("a")
			if !ok {
				t.Fatal("key a absent")
			}
			if got != tt.want {
				t.Errorf("decoded = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsLimitError(t *testing.T) {
	deep := strings.Repeat("a={", 4) + "x=1" + strings.Repeat("}", 4)
	_, err := ParseWithLimits([]byte(deep), Limits{MaxDepth: 2, MaxNodes: 100})
	if !IsLimitError(err) {
		t.Errorf("IsLimitError(%v) = false, want true", err)
	}
	_, err = Parse([]byte(`a=`))
	if IsLimitError(err) {
		t.Errorf("IsLimitError(%v) = true for a syntax error", err)
	}
}
