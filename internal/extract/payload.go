package extract

import (
	"encoding/json"
	"fmt"
	"io"
)

// Extraction strategies. Every payload names the strategy that produced it
// so consumers can tell a full-fidelity result from a best-effort one.
const (
	StrategyStrict = "strict"
	StrategyLoose  = "loose"
)

// Meta is the tier-0 payload: the save's own description of itself.
type Meta struct {
	Name    string   `json:"name,omitempty"`
	Version string   `json:"version,omitempty"`
	Date    string   `json:"date,omitempty"`
	Player  string   `json:"player,omitempty"`
	Ironman bool     `json:"ironman,omitempty"`
	Mods    []string `json:"mods,omitempty"`

	// Supported reports whether Version satisfies the configured minimum.
	Supported bool `json:"supported"`

	// Strategy is StrategyStrict or StrategyLoose.
	Strategy string `json:"strategy"`
}

// StatusField is one extracted headline field, in profile order.
type StatusField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Status is the tier-1 payload: the handful of fields a consumer shows
// while heavier extraction is still running.
type Status struct {
	Date   string        `json:"date,omitempty"`
	Player string        `json:"player,omitempty"`
	Fields []StatusField `json:"fields,omitempty"`

	// Strategy is StrategyStrict or StrategyLoose.
	Strategy string `json:"strategy"`
}

// SectionInfo describes one top-level section of the document.
type SectionInfo struct {
	Key      string `json:"key"`
	Children int    `json:"children"`
	Bytes    int    `json:"bytes"`
}

// Full is the tier-2 payload: the whole-document extraction.
type Full struct {
	// Sections inventories every top-level block in source order.
	Sections []SectionInfo `json:"sections"`

	// Player is the player's fully converted section entry. Duplicate keys
	// convert to JSON arrays; bare items appear under "_items".
	Player map[string]any `json:"player,omitempty"`

	// TotalNodes is the number of parsed values in the document.
	TotalNodes int `json:"total_nodes"`
}

// Payload is the envelope workers emit and the result cache stores. Exactly
// one of Meta, Status, Full is set, matching Tier. It crosses the worker
// process boundary as JSON on stdout.
type Payload struct {
	Tier     Tier    `json:"tier"`
	SavePath string  `json:"save_path,omitempty"`
	Meta     *Meta   `json:"meta,omitempty"`
	Status   *Status `json:"status,omitempty"`
	Full     *Full   `json:"full,omitempty"`
}

// Validate checks the envelope's internal consistency.
func (p *Payload) Validate() error {
	if !p.Tier.Valid() {
		return fmt.Errorf("invalid tier %d", int(p.Tier))
	}
	switch p.Tier {
	case TierMeta:
		if p.Meta == nil {
			return fmt.Errorf("tier %s payload missing meta section", p.Tier)
		}
	case TierStatus:
		if p.Status == nil {
			return fmt.Errorf("tier %s payload missing status section", p.Tier)
		}
	case TierFull:
		if p.Full == nil {
			return fmt.Errorf("tier %s payload missing full section", p.Tier)
		}
	}
	return nil
}

// WritePayload writes the envelope as a single JSON document.
func WritePayload(w io.Writer, p *Payload) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("refusing to write invalid payload: %w", err)
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	return nil
}

// ReadPayload reads and validates one envelope.
func ReadPayload(r io.Reader) (*Payload, error) {
	var p Payload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return &p, nil
}
