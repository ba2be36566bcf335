package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"textvault/internal/ingest"
)

// TextReader handles text/* and JSON payloads: the bytes are the document.
type TextReader struct{}

func (TextReader) Read(ctx context.Context, r io.Reader, id, mediaType string) (*ingest.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ingest.ErrTransient, id, err)
	}
	return &ingest.Document{
		ID:        id,
		MediaType: mediaType,
		Content:   string(data),
	}, nil
}

// PDFReader extracts plain text from PDF uploads. PDFs need random access,
// so the stream is buffered in memory first.
type PDFReader struct{}

func (PDFReader) Read(ctx context.Context, r io.Reader, id, mediaType string) (*ingest.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ingest.ErrTransient, id, err)
	}

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing pdf %s: %v", ingest.ErrUnsupportedFormat, id, err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("%w: extracting pdf text from %s: %v", ingest.ErrUnsupportedFormat, id, err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return nil, fmt.Errorf("%w: extracting pdf text from %s: %v", ingest.ErrUnsupportedFormat, id, err)
	}

	return &ingest.Document{
		ID:        id,
		MediaType: mediaType,
		Content:   sb.String(),
	}, nil
}
