package benchmark

import (
	"fmt"
	"math/rand"
	"strings"
)

// Generate builds a synthetic save document with the same shape real saves
// have: header fields the metadata tier reads, a countries section the
// status tier digs into, and a configurable pile of further sections for
// the full tier to chew on. The same config always yields the same bytes.
func Generate(config BenchmarkConfig) []byte {
	rng := rand.New(rand.NewSource(config.Seed))
	var b strings.Builder

	b.WriteString("version=\"3.2.1\"\n")
	b.WriteString("date=1444.11.11\n")
	b.WriteString("player=\"AAA\"\n")
	b.WriteString("ironman=no\n")
	b.WriteString("mods={\n\t\"synthetic content pack\"\n}\n")

	// The profile-driven status tier needs tagged entries with its fields.
	b.WriteString("countries={\n")
	entries := config.EntriesPerSection
	if entries < 1 {
		entries = 1
	}
	for e := 0; e < entries; e++ {
		fmt.Fprintf(&b, "\t%s={\n", countryTag(e))
		fmt.Fprintf(&b, "\t\ttreasury=%.3f\n", rng.Float64()*10000)
		fmt.Fprintf(&b, "\t\tstability=%d\n", rng.Intn(7)-3)
		fmt.Fprintf(&b, "\t\tcapital=province_%d\n", rng.Intn(5000))
		// Duplicate keys are normal in this dialect.
		fmt.Fprintf(&b, "\t\tarmy=\"%s 1st Army\"\n", countryTag(e))
		fmt.Fprintf(&b, "\t\tarmy=\"%s 2nd Army\"\n", countryTag(e))
		b.WriteString("\t}\n")
	}
	b.WriteString("}\n")

	for s := 0; s < config.Sections; s++ {
		fmt.Fprintf(&b, "section_%d={\n", s)
		for e := 0; e < entries; e++ {
			writeEntry(&b, rng, e)
		}
		b.WriteString("}\n")
	}

	return []byte(b.String())
}

// countryTag makes three-letter tags: AAA, AAB, ...
func countryTag(i int) string {
	return string([]byte{
		byte('A' + (i/676)%26),
		byte('A' + (i/26)%26),
		byte('A' + i%26),
	})
}

func writeEntry(b *strings.Builder, rng *rand.Rand, e int) {
	switch rng.Intn(6) {
	case 0:
		fmt.Fprintf(b, "\tid_%d=%d\n", e, rng.Intn(1_000_000))
	case 1:
		fmt.Fprintf(b, "\tvalue_%d=%.4f\n", e, rng.Float64()*1000)
	case 2:
		fmt.Fprintf(b, "\tname_%d=\"Entry with \\\"quotes\\\" %d\"\n", e, rng.Intn(100))
	case 3:
		fmt.Fprintf(b, "\tdate_%d=%d.%d.%d\n", e, 1400+rng.Intn(400), 1+rng.Intn(12), 1+rng.Intn(28))
	case 4:
		fmt.Fprintf(b, "\tblock_%d={ owner=%d controller=%d }\n", e, rng.Intn(999), rng.Intn(999))
	case 5:
		fmt.Fprintf(b, "\tlist_%d={ %d %d %d }\n", e, rng.Intn(99), rng.Intn(99), rng.Intn(99))
	}
}
