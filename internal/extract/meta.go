package extract

import (
	"strings"

	"golang.org/x/mod/semver"

	"github.com/mschirtzinger/savewatch/internal/savetext"
)

// Options carry the knobs every extractor shares.
type Options struct {
	// Limits guard the strict parses. Zero fields fall back to
	// savetext.DefaultLimits.
	Limits savetext.Limits

	// Profile drives the status tier; nil means DefaultProfile.
	Profile *Profile

	// MinVersion is the lowest save version this build understands, in
	// dotted form ("3.0.0"). Empty disables the gate.
	MinVersion string
}

// MetaStrict parses the metadata buffer and lifts the fixed metadata
// fields. The error, when non-nil, is a located *savetext.ParseError; the
// caller decides whether to retry with MetaLoose. The metadata member of a
// plain (uncontainered) save is a truncated head window, so the loose path
// is routine there, not exceptional.
func MetaStrict(buf []byte, opts Options) (*Meta, error) {
	b, err := savetext.ParseWithLimits(buf, opts.Limits)
	if err != nil {
		return nil, err
	}
	m := metaFromBlock(b)
	m.Strategy = StrategyStrict
	m.Supported = versionSupported(m.Version, opts.MinVersion)
	return m, nil
}

func metaFromBlock(b *savetext.Block) *Meta {
	m := &Meta{}
	m.Name, _ = b.GetString("name")
	m.Version, _ = b.GetString("version")
	m.Date, _ = b.GetString("date")
	m.Player, _ = b.GetString("player")
	if v, ok := b.GetString("ironman"); ok {
		m.Ironman = v == "yes" || v == "1" || v == "true"
	}
	if mods, ok := b.GetBlock("mods"); ok {
		for _, item := range mods.Items() {
			if !item.IsBlock() {
				m.Mods = append(m.Mods, item.Scalar)
			}
		}
	}
	return m
}

// versionSupported compares a save's version string against the configured
// minimum. Producers write versions like "3.2.1" or "Corvus v3.2.1"; both
// normalize to semver form. Unknown or unparseable versions fail the gate.
func versionSupported(version, minimum string) bool {
	if minimum == "" {
		return true
	}
	v := canonicalVersion(version)
	min := canonicalVersion(minimum)
	if !semver.IsValid(v) || !semver.IsValid(min) {
		return false
	}
	return semver.Compare(v, min) >= 0
}

// canonicalVersion extracts the trailing dotted-number form and gives it the
// "v" prefix semver wants.
func canonicalVersion(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, ' '); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimPrefix(s, "v")
	if s == "" {
		return ""
	}
	return "v" + s
}
