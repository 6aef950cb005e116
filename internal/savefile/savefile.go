// Package savefile opens save files in either on-disk shape: a plain text
// document, or a zip archive holding a small "meta" member next to the big
// "gamestate" body. Both shapes hand the extraction tiers the same two
// buffers, so everything above this package is format-blind.
package savefile

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Format identifies the on-disk shape of a save file.
type Format int

const (
	// FormatPlain is a single text document. The metadata fields sit at the
	// head of the file; there is no separate member for them.
	FormatPlain Format = iota

	// FormatArchive is a zip container with "meta" and "gamestate" members.
	FormatArchive
)

func (f Format) String() string {
	switch f {
	case FormatPlain:
		return "plain"
	case FormatArchive:
		return "archive"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// DefaultMetaWindow bounds the head read used as the tier-0 input for plain
// saves. Large enough to cover the header fields of every producer we have
// seen, small enough that tier 0 never pays for the body.
const DefaultMetaWindow = 128 * 1024

var archiveMagic = []byte("PK\x03\x04")

// DetectFormat sniffs the first bytes of the file.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open save: %w", err)
	}
	defer f.Close()

	head := make([]byte, len(archiveMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, fmt.Errorf("failed to sniff save format: %w", err)
	}
	if bytes.Equal(head[:n], archiveMagic) {
		return FormatArchive, nil
	}
	return FormatPlain, nil
}

// Reader hands out the two extraction inputs of one save file. Meta is the
// small tier-0 buffer; Body is the full document for tiers 1 and 2. Both may
// be called in any order and more than once.
type Reader interface {
	// Format reports the detected on-disk shape.
	Format() Format

	// Meta returns the metadata buffer. For plain saves this is a bounded
	// head window and may cut off mid-block; extraction is expected to cope.
	Meta() ([]byte, error)

	// Body returns the full save body.
	Body() ([]byte, error)

	Close() error
}

// Open detects the save's format and returns the matching reader with the
// default metadata window.
func Open(path string) (Reader, error) {
	return OpenWindow(path, DefaultMetaWindow)
}

// OpenWindow is Open with an explicit metadata window for plain saves.
// Archive saves have a real meta member and ignore the window.
func OpenWindow(path string, metaWindow int64) (Reader, error) {
	if metaWindow <= 0 {
		metaWindow = DefaultMetaWindow
	}
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatArchive:
		return openArchive(path)
	default:
		return &plainReader{path: path, metaWindow: metaWindow}, nil
	}
}
