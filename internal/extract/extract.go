package extract

import (
	"errors"
	"fmt"

	"github.com/mschirtzinger/savewatch/internal/savetext"
)

// ExtractTier runs one tier over its input buffer and wraps the result in a
// payload envelope. Tier 0 expects the save's metadata buffer; tiers 1 and 2
// expect the body.
//
// For tiers 0 and 1 this function is the caller that selects between the two
// named strategies: strict first, and on a typed parse error (or a missing
// profile section) the loose extractor, with the chosen strategy recorded in
// the payload. Tier 2 is strict-only.
func ExtractTier(tier Tier, input []byte, opts Options) (*Payload, error) {
	switch tier {
	case TierMeta:
		m, err := MetaStrict(input, opts)
		if err != nil {
			if !canFallBack(err) {
				return nil, err
			}
			m = MetaLoose(input, opts)
		}
		return &Payload{Tier: tier, Meta: m}, nil

	case TierStatus:
		s, err := StatusStrict(input, opts)
		if err != nil {
			if !canFallBack(err) {
				return nil, err
			}
			s = StatusLoose(input, opts)
		}
		return &Payload{Tier: tier, Status: s}, nil

	case TierFull:
		f, err := FullExtract(input, opts)
		if err != nil {
			return nil, err
		}
		return &Payload{Tier: tier, Full: f}, nil

	default:
		return nil, fmt.Errorf("unknown tier %d", int(tier))
	}
}

// canFallBack reports whether err is the kind of strict-path failure the
// loose strategy exists for: malformed or over-limit input, or a document
// without the profile's section. Anything else is a programming or I/O
// problem and propagates.
func canFallBack(err error) bool {
	var perr *savetext.ParseError
	if errors.As(err, &perr) {
		return true
	}
	return errors.Is(err, savetext.ErrSectionNotFound)
}
