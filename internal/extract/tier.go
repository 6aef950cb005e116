// Package extract implements the three tiered extraction passes over a save
// document and the typed payloads they produce.
//
// Tier 0 (metadata) reads only the save's small metadata buffer. Tier 1
// (status) lifts a profile-driven set of headline fields using the section
// iterator, touching a constant number of sections. Tier 2 (full) parses the
// whole document. Each strict extractor has a separately named best-effort
// counterpart (MetaLoose, StatusLoose) that the caller selects after
// catching a typed parse error; the strict parser itself never degrades
// silently.
package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// Tier identifies one of the three escalating-cost extraction passes.
type Tier int

const (
	// TierMeta is the near-constant-cost metadata pass.
	TierMeta Tier = iota

	// TierStatus is the headline-fields pass.
	TierStatus

	// TierFull is the whole-document pass; may take tens of seconds on
	// large saves.
	TierFull
)

// NumTiers is the number of extraction tiers.
const NumTiers = int(TierFull) + 1

// String returns the tier's short name.
func (t Tier) String() string {
	switch t {
	case TierMeta:
		return "meta"
	case TierStatus:
		return "status"
	case TierFull:
		return "full"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	return t >= TierMeta && t <= TierFull
}

// ParseTier accepts a tier by number ("0".."2") or by name ("meta",
// "status", "full").
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "meta":
		return TierMeta, nil
	case "status":
		return TierStatus, nil
	case "full":
		return TierFull, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !Tier(n).Valid() {
		return 0, fmt.Errorf("unknown tier %q (want 0-2, meta, status, or full)", s)
	}
	return Tier(n), nil
}
