package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var extensions = map[string]string{
	".pdf":  MIMEPDF,
	".docx": MIMEDOCX,
}

// Document is a resume submitted for analysis. Content is read lazily by Open.
type Document struct {
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
	// Pages is a best effort page count for PDFs. Zero when unknown.
	Pages int `json:"pages,omitempty"`

	data []byte
}

// FromPath describes a file on disk. The MIME type is derived from the extension
// and left empty for anything that is not an accepted resume format.
func FromPath(path string) (*Document, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	doc := &Document{
		Name:     filepath.Base(path),
		Path:     path,
		MIMEType: MIMETypeByName(path),
		Size:     stat.Size(),
	}

	if doc.MIMEType == MIMEPDF {
		doc.Pages = countPages(path)
	}

	return doc, nil
}

// FromBytes wraps in-memory content.
func FromBytes(name, mimeType string, data []byte) *Document {
	return &Document{
		Name:     name,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		data:     data,
	}
}

// Open returns a reader over the document content.
func (d *Document) Open() (io.ReadCloser, error) {
	if d == nil {
		return nil, fmt.Errorf("document is nil")
	}
	if d.data != nil {
		return io.NopCloser(bytes.NewReader(d.data)), nil
	}
	if strings.TrimSpace(d.Path) == "" {
		return nil, fmt.Errorf("document %q has no content", d.Name)
	}
	return os.Open(d.Path)
}

// Accepted reports whether the MIME type is one of the supported resume formats.
func Accepted(mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case MIMEPDF, MIMEDOCX:
		return true
	default:
		return false
	}
}

func MIMETypeByName(name string) string {
	return extensions[strings.ToLower(filepath.Ext(name))]
}

func countPages(path string) (pages int) {
	// The pdf reader panics on some malformed xref tables.
	defer func() {
		if recover() != nil {
			pages = 0
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	return r.NumPage()
}
