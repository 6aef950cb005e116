package extract

import (
	"github.com/mschirtzinger/savewatch/internal/savetext"
)

// FullExtract is the tier-2 pass: a strict parse of the whole document.
// There is no loose counterpart; a full extraction that cannot parse has
// nothing useful to say, and the tier simply fails while older results keep
// serving.
func FullExtract(body []byte, opts Options) (*Full, error) {
	prof := opts.Profile.withDefaults()

	b, err := savetext.ParseWithLimits(body, opts.Limits)
	if err != nil {
		return nil, err
	}

	f := &Full{TotalNodes: countNodes(b)}

	// Byte sizes come from a boundary pass; the parsed tree no longer knows
	// where its blocks sat in the file.
	sizes := make(map[string]int)
	it := savetext.IterateRoot(body)
	for {
		child, ok := it.Next()
		if !ok {
			break
		}
		if !child.HasKey || child.Value.Kind != savetext.SpanBlock {
			continue
		}
		if _, seen := sizes[child.Key]; !seen {
			sizes[child.Key] = child.Value.Len()
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	for _, pair := range b.Pairs() {
		v := pair.Values[0]
		if !v.IsBlock() {
			continue
		}
		f.Sections = append(f.Sections, SectionInfo{
			Key:      pair.Key,
			Children: v.Block.Len() + len(v.Block.Items()),
			Bytes:    sizes[pair.Key],
		})
	}

	if player, ok := b.GetString(prof.KeyFrom); ok && player != "" {
		if section, ok := b.GetBlock(prof.Section); ok {
			if entry, ok := section.GetBlock(player); ok {
				f.Player = convertBlock(entry)
			}
		}
	}
	return f, nil
}

// countNodes counts every value in the tree: scalars, strings, and blocks.
func countNodes(b *savetext.Block) int {
	n := 0
	for _, pair := range b.Pairs() {
		for _, v := range pair.Values {
			n += countValue(v)
		}
	}
	for _, v := range b.Items() {
		n += countValue(v)
	}
	return n
}

func countValue(v savetext.Value) int {
	if v.IsBlock() {
		return 1 + countNodes(v.Block)
	}
	return 1
}

// convertBlock renders a Block as JSON-encodable data. Duplicate keys
// become arrays (all occurrences, source order) and bare items land under
// "_items". Nothing is dropped.
func convertBlock(b *savetext.Block) map[string]any {
	out := make(map[string]any, b.Len())
	for _, pair := range b.Pairs() {
		if len(pair.Values) == 1 {
			out[pair.Key] = convertValue(pair.Values[0])
			continue
		}
		list := make([]any, len(pair.Values))
		for i, v := range pair.Values {
			list[i] = convertValue(v)
		}
		out[pair.Key] = list
	}
	if items := b.Items(); len(items) > 0 {
		list := make([]any, len(items))
		for i, v := range items {
			list[i] = convertValue(v)
		}
		out["_items"] = list
	}
	return out
}

func convertValue(v savetext.Value) any {
	if v.IsBlock() {
		return convertBlock(v.Block)
	}
	return v.Scalar
}
