package savefile

import (
	"fmt"
	"io"
	"os"
)

// plainReader serves a single-document save. It holds no file handle;
// every call opens, reads, and closes, so a reader can sit idle across
// debounce cycles without pinning the file.
type plainReader struct {
	path       string
	metaWindow int64
}

func (r *plainReader) Format() Format { return FormatPlain }

func (r *plainReader) Meta() ([]byte, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open save: %w", err)
	}
	defer f.Close()

	buf, err := io.ReadAll(io.LimitReader(f, r.metaWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to read save head: %w", err)
	}
	return buf, nil
}

func (r *plainReader) Body() ([]byte, error) {
	buf, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read save: %w", err)
	}
	return buf, nil
}

func (r *plainReader) Close() error { return nil }
