package extract

import (
	"regexp"
	"strings"
	"sync"
)

// looseWindow bounds how far into a buffer the best-effort extractors scan.
// Headline fields live at the head of every known save; the loose path never
// pays for the tail.
const looseWindow = 256 * 1024

// looseUnescape undoes the two escapes the dialect's producers emit.
var looseUnescape = strings.NewReplacer(`\"`, `"`, `\\`, `\`)

// MetaLoose is the best-effort counterpart of MetaStrict: bounded regex
// scans for the fixed metadata fields. It cannot fail: fields it cannot
// find stay empty. Callers select it explicitly after MetaStrict returns a
// typed parse error; it is not a silent fallback inside the strict path.
func MetaLoose(buf []byte, opts Options) *Meta {
	m := &Meta{Strategy: StrategyLoose}
	m.Name = looseField(buf, "name")
	m.Version = looseField(buf, "version")
	m.Date = looseField(buf, "date")
	m.Player = looseField(buf, "player")
	switch looseField(buf, "ironman") {
	case "yes", "1", "true":
		m.Ironman = true
	}
	m.Supported = versionSupported(m.Version, opts.MinVersion)
	return m
}

// StatusLoose is the best-effort counterpart of StatusStrict. It recovers
// the profile's top-level fields only; per-entry fields need a structural
// walk, which a loose scan does not attempt.
func StatusLoose(body []byte, opts Options) *Status {
	prof := opts.Profile.withDefaults()
	s := &Status{Strategy: StrategyLoose}
	for _, key := range prof.TopFields {
		v := looseField(body, key)
		switch {
		case key == "date":
			s.Date = v
		case key == prof.KeyFrom:
			s.Player = v
		case v != "":
			s.Fields = append(s.Fields, StatusField{Key: key, Value: v})
		}
	}
	return s
}

// looseRes caches one compiled pattern per field key; the loose scan runs
// per save, often for the same handful of profile keys.
var looseRes sync.Map

func looseRe(key string) *regexp.Regexp {
	if re, ok := looseRes.Load(key); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(?m)(?:^|[ \t])` + regexp.QuoteMeta(key) + `[ \t]*=[ \t]*("(?:[^"\\]|\\.)*"|[^\s{}]+)`)
	looseRes.Store(key, re)
	return re
}

// looseField finds the first `key=value` standing free at a line start or
// after whitespace within the bounded window and returns the decoded value,
// or "" when absent. Producers format pairs both one-per-line and inline.
func looseField(buf []byte, key string) string {
	if len(buf) > looseWindow {
		buf = buf[:looseWindow]
	}
	m := looseRe(key).FindSubmatch(buf)
	if m == nil {
		return ""
	}
	v := string(m[1])
	if len(v) >= 2 && v[0] == '"' {
		return looseUnescape.Replace(v[1 : len(v)-1])
	}
	return v
}
