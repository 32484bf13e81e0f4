package tabular

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	recerrors "github.com/ginjaninja78/charge-reconciler/pkg/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeReader wraps r so that it yields UTF-8 text.
//
// PARAMETERS:
//   - r: The raw byte stream.
//   - name: The configured encoding name. Case, '-' and '_' are ignored,
//     so "UTF-8", "utf8" and "utf_8" are the same encoding.
//
// RETURNS:
//   - A reader producing UTF-8. A leading UTF-8 byte order mark is removed;
//     every other byte passes through unchanged.
//   - A configuration error for an unknown encoding.
func decodeReader(r io.Reader, name string) (io.Reader, error) {
	var decoder *encoding.Decoder

	switch normalizeEncoding(name) {
	case "", "utf8":
		return stripBOM(bufio.NewReader(r)), nil

	// Spreadsheet tools on Windows write little endian UTF-16. A byte order
	// mark, when present, takes precedence.
	case "utf16", "utf16le", "ucs2":
		decoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	case "utf16be":
		decoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()

	case "iso88591", "latin1":
		decoder = charmap.ISO8859_1.NewDecoder()
	case "iso885915", "latin9":
		decoder = charmap.ISO8859_15.NewDecoder()
	case "windows1252", "cp1252":
		decoder = charmap.Windows1252.NewDecoder()

	default:
		return nil, recerrors.NewConfigError("csv.encoding", fmt.Sprintf("unsupported encoding %q", name), nil)
	}

	return transform.NewReader(r, unicode.BOMOverride(decoder)), nil
}

// stripBOM discards a UTF-8 byte order mark at the start of br.
func stripBOM(br *bufio.Reader) io.Reader {
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

func normalizeEncoding(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(name)
}
