package savetext

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sectionDoc = `
version="3.2.1"
date=2301.5.12
countries={
	ENG={ name="England" treasury=12.5 }
	raider
	FRA={ name="France" treasury=8 }
	REB={ name="Rebels { the } brace" }
}
wars={
	{ attacker=ENG defender=FRA }
}
`

func collectChildren(t *testing.T, it *SectionIter) []SectionChild {
	t.Helper()
	var out []SectionChild
	for {
		child, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, child)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iteration failed: %v", err)
	}
	return out
}

func TestIterateSectionChildren(t *testing.T) {
	buf := []byte(sectionDoc)
	it, err := IterateSection(buf, "countries")
	if err != nil {
		t.Fatalf("IterateSection: %v", err)
	}

	children := collectChildren(t, it)
	var keys []string
	for _, c := range children {
		if c.HasKey {
			keys = append(keys, c.Key)
		} else {
			keys = append(keys, "(bare:"+c.Value.Text(buf)+")")
		}
	}
	want := []string{"ENG", "(bare:raider)", "FRA", "REB"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}
}

func TestIterateSectionParseOnDemand(t *testing.T) {
	buf := []byte(sectionDoc)
	it, err := IterateSection(buf, "countries")
	if err != nil {
		t.Fatalf("IterateSection: %v", err)
	}

	// Walk only until FRA; nothing after it is ever scanned or parsed.
	for {
		child, ok := it.Next()
		if !ok {
			t.Fatal("FRA never appeared")
		}
		if !child.HasKey || child.Key != "FRA" {
			continue
		}
		entry, err := ParseSpan(buf, child.Value)
		if err != nil {
			t.Fatalf("ParseSpan(FRA): %v", err)
		}
		if got, _ := entry.GetString("treasury"); got != "8" {
			t.Errorf("FRA treasury = %q, want %q", got, "8")
		}
		return
	}
}

func TestIterateSectionScalarChildren(t *testing.T) {
	buf := []byte(`stats={ score=41 grade="A" }`)
	it, err := IterateSection(buf, "stats")
	if err != nil {
		t.Fatalf("IterateSection: %v", err)
	}

	children := collectChildren(t, it)
	if len(children) != 2 {
		t.Fatalf("len(children) = %d, want 2", len(children))
	}
	if children[0].Value.Kind != SpanScalar || children[0].Value.Text(buf) != "41" {
		t.Errorf("score child = %+v", children[0])
	}
	if children[1].Value.Kind != SpanString || children[1].Value.Text(buf) != "A" {
		t.Errorf("grade child = %+v", children[1])
	}
}

func TestIterateSectionNotFound(t *testing.T) {
	_, err := IterateSection([]byte(sectionDoc), "planets")
	if !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("error = %v, want %v", err, ErrSectionNotFound)
	}
}

func TestIterateSectionScalarValue(t *testing.T) {
	_, err := IterateSection([]byte(`version="3.2.1"`), "version")
	if err == nil {
		t.Fatal("expected an error for a scalar-valued section key")
	}
	if errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("scalar-valued key misreported as not found: %v", err)
	}
}

func TestIterateSectionSkipsEarlierSections(t *testing.T) {
	// The target sits after a large section full of quote-protected braces;
	// locating it must jump over that section without tripping.
	var sb strings.Builder
	sb.WriteString("noise={\n")
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&sb, "\tentry_%d={ desc=\"has } and { inside\" n=%d }\n", i, i)
	}
	sb.WriteString("}\n")
	sb.WriteString("target={ hit=yes }\n")

	buf := []byte(sb.String())
	it, err := IterateSection(buf, "target")
	if err != nil {
		t.Fatalf("IterateSection: %v", err)
	}
	children := collectChildren(t, it)
	if len(children) != 1 || children[0].Key != "hit" {
		t.Fatalf("children = %+v, want the single hit pair", children)
	}
}

func TestIterateSectionMalformedChild(t *testing.T) {
	buf := []byte(`broken={ a= }`)
	it, err := IterateSection(buf, "broken")
	if err != nil {
		t.Fatalf("IterateSection: %v", err)
	}
	if _, ok := it.Next(); ok {
		t.Fatal("Next() succeeded on a dangling assignment")
	}
	if !errors.Is(it.Err(), ErrDanglingAssignment) {
		t.Errorf("Err() = %v, want %v", it.Err(), ErrDanglingAssignment)
	}
}

func TestIterateRoot(t *testing.T) {
	buf := []byte(sectionDoc)
	var keys []string
	var sizes []int
	it := IterateRoot(buf)
	for {
		child, ok := it.Next()
		if !ok {
			break
		}
		if child.HasKey {
			keys = append(keys, child.Key)
		}
		sizes = append(sizes, child.Value.Len())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iteration failed: %v", err)
	}

	want := []string{"version", "date", "countries", "wars"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("top-level keys mismatch (-want +got):\n%s", diff)
	}
	for i, n := range sizes {
		if n <= 0 {
			t.Errorf("child %d has non-positive span length", i)
		}
	}
}
