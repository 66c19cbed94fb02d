package backend

import (
	"bufio"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

const (
	sniffLen = 3072

	// DefaultContentType is used when content cannot be sniffed.
	DefaultContentType = "application/octet-stream"
)

// SniffContentType detects the media type of r from its leading bytes. The
// returned reader yields the full content of r, including the sniffed bytes.
func SniffContentType(r io.Reader) (io.Reader, string) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, _ := br.Peek(sniffLen)
	if len(head) == 0 {
		return br, DefaultContentType
	}
	return br, mimetype.Detect(head).String()
}
