package extract

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Profile names the fields the status tier lifts out of a save. Saves from
// different producers keep their headline data under different keys, so the
// set is data, not code.
type Profile struct {
	// TopFields are top-level scalar keys copied into the status payload
	// (the first two, by convention, are the date and the player id).
	TopFields []string `toml:"top_fields"`

	// Section is the top-level section holding per-actor entries.
	Section string `toml:"section"`

	// KeyFrom is the top-level field whose value names the player's entry
	// inside Section.
	KeyFrom string `toml:"key_from"`

	// Fields are the keys extracted from the player's entry.
	Fields []string `toml:"fields"`
}

// DefaultProfile matches the stock save dialect this tool grew up on.
func DefaultProfile() *Profile {
	return &Profile{
		TopFields: []string{"date", "player"},
		Section:   "countries",
		KeyFrom:   "player",
		Fields:    []string{"treasury", "stability", "capital"},
	}
}

// LoadProfile reads a TOML profile. Invalid profiles fail here, loudly,
// never halfway through an extraction.
func LoadProfile(path string) (*Profile, error) {
	var p Profile
	meta, err := toml.DecodeFile(path, &p)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("profile %s has unknown keys: %v", path, undecoded)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks the profile is usable.
func (p *Profile) Validate() error {
	if p.Section == "" {
		return fmt.Errorf("section must not be empty")
	}
	if p.KeyFrom == "" {
		return fmt.Errorf("key_from must not be empty")
	}
	if len(p.Fields) == 0 {
		return fmt.Errorf("fields must name at least one entry field")
	}
	return nil
}

// withDefaults returns p, or the default profile when p is nil.
func (p *Profile) withDefaults() *Profile {
	if p == nil {
		return DefaultProfile()
	}
	return p
}
