package document

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	dataURIScheme = "data:"
	base64Marker  = ";base64,"
)

// Payload is the transport-safe form of a document.
type Payload struct {
	Name     string
	MIMEType string
	// Data is standard base64 without any data URI prefix.
	Data string
}

// EncodingError is returned when a document cannot be read or encoded.
type EncodingError struct {
	Name string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding %s: %v", e.Name, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Encode reads the whole document and returns its base64 payload.
// Content that already is a base64 data URI is passed through without its prefix.
func Encode(doc *Document) (Payload, error) {
	if doc == nil {
		return Payload{}, &EncodingError{Name: "<nil>", Err: errors.New("document is nil")}
	}

	rc, err := doc.Open()
	if err != nil {
		return Payload{}, &EncodingError{Name: doc.Name, Err: err}
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return Payload{}, &EncodingError{Name: doc.Name, Err: err}
	}

	data, mimeType, ok := splitDataURI(raw)
	if !ok {
		return Payload{
			Name:     doc.Name,
			MIMEType: doc.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(raw),
		}, nil
	}

	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return Payload{}, &EncodingError{Name: doc.Name, Err: fmt.Errorf("invalid data uri: %w", err)}
	}

	if doc.MIMEType != "" {
		mimeType = doc.MIMEType
	}

	return Payload{Name: doc.Name, MIMEType: mimeType, Data: data}, nil
}

// Bytes decodes the payload back to raw content.
func (p Payload) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Data)
}

// DataURL renders the payload as a data URI.
func (p Payload) DataURL() string {
	return dataURIScheme + p.MIMEType + base64Marker + p.Data
}

// StripDataURI removes a "data:<mime>;base64," prefix when present.
func StripDataURI(s string) string {
	if data, _, ok := splitDataURI([]byte(s)); ok {
		return data
	}
	return s
}

func splitDataURI(raw []byte) (data, mimeType string, ok bool) {
	trimmed := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(trimmed, []byte(dataURIScheme)) {
		return "", "", false
	}

	header, body, found := strings.Cut(string(trimmed), ",")
	if !found || !strings.HasSuffix(header+",", base64Marker) {
		return "", "", false
	}

	mimeType = strings.TrimSuffix(strings.TrimPrefix(header, dataURIScheme), ";base64")
	return strings.TrimSpace(body), mimeType, true
}
