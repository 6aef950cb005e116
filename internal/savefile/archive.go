package savefile

import (
	"archive/zip"
	"fmt"
	"io"
)

// Member names inside an archived save. Producers write exactly these.
const (
	metaMember = "meta"
	bodyMember = "gamestate"
)

type archiveReader struct {
	path string
	zr   *zip.ReadCloser
}

func openArchive(path string) (*archiveReader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open save archive: %w", err)
	}
	return &archiveReader{path: path, zr: zr}, nil
}

func (r *archiveReader) Format() Format { return FormatArchive }

func (r *archiveReader) Meta() ([]byte, error) {
	return r.member(metaMember)
}

func (r *archiveReader) Body() ([]byte, error) {
	return r.member(bodyMember)
}

func (r *archiveReader) member(name string) ([]byte, error) {
	for _, f := range r.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %q in %s: %w", name, r.path, err)
		}
		defer rc.Close()
		buf, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q in %s: %w", name, r.path, err)
		}
		return buf, nil
	}
	return nil, fmt.Errorf("save archive %s has no %q member", r.path, name)
}

func (r *archiveReader) Close() error {
	return r.zr.Close()
}
