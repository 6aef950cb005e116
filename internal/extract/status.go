package extract

import (
	"github.com/mschirtzinger/savewatch/internal/savetext"
)

// StatusStrict extracts the headline fields named by the profile: top-level
// scalars first, then the player's entry inside the profile section, located
// with the section iterator so cost tracks the handful of sections touched,
// never the document size.
//
// A missing player entry is data absence, not an error; the status simply
// carries fewer fields. Malformed input propagates as a located
// *savetext.ParseError (or ErrSectionNotFound) for the caller to catch and,
// if it chooses, retry with StatusLoose.
func StatusStrict(body []byte, opts Options) (*Status, error) {
	prof := opts.Profile.withDefaults()
	s := &Status{Strategy: StrategyStrict}

	top, err := topLevelFields(body, prof.TopFields)
	if err != nil {
		return nil, err
	}
	s.Date = top["date"]
	s.Player = top[prof.KeyFrom]
	for _, key := range prof.TopFields {
		if key == "date" || key == prof.KeyFrom {
			continue
		}
		if v, ok := top[key]; ok {
			s.Fields = append(s.Fields, StatusField{Key: key, Value: v})
		}
	}

	if s.Player == "" {
		return s, nil
	}
	entry, err := sectionEntry(body, prof.Section, s.Player, opts.Limits)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return s, nil
	}
	for _, key := range prof.Fields {
		if v, ok := entry.GetString(key); ok {
			s.Fields = append(s.Fields, StatusField{Key: key, Value: v})
		}
	}
	return s, nil
}

// topLevelFields walks the root children until every wanted scalar has been
// seen once. Headline fields sit at the head of a save, so the walk is
// effectively constant; only a document missing a wanted key costs a full
// boundary scan.
func topLevelFields(body []byte, keys []string) (map[string]string, error) {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	out := make(map[string]string, len(want))

	it := savetext.IterateRoot(body)
	for len(out) < len(want) {
		child, ok := it.Next()
		if !ok {
			break
		}
		if !child.HasKey || child.Value.Kind == savetext.SpanBlock {
			continue
		}
		if want[child.Key] {
			if _, seen := out[child.Key]; !seen {
				out[child.Key] = child.Value.Text(body)
			}
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// sectionEntry finds one keyed block entry inside a top-level section and
// parses just that entry. Returns (nil, nil) when the entry is absent.
func sectionEntry(body []byte, section, entryKey string, limits savetext.Limits) (*savetext.Block, error) {
	it, err := savetext.IterateSection(body, section)
	if err != nil {
		return nil, err
	}
	for {
		child, ok := it.Next()
		if !ok {
			break
		}
		if child.HasKey && child.Key == entryKey && child.Value.Kind == savetext.SpanBlock {
			return savetext.ParseSpanWithLimits(body, child.Value, limits)
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}
