package catalogfile

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV reads a csv export into a raw cell grid, auto-detecting the
// character encoding and the delimiter. Marketplace exports arrive in
// UTF-8, windows-1254 (Turkish) or windows-1251, comma- or
// semicolon-separated.
func readCSV(r io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if len(raw) == 0 {
		return nil, nil
	}

	decoded, err := decodeText(raw)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(decoded))
	cr.Comma = sniffDelimiter(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// decodeText converts legacy single-byte encodings to UTF-8. Unrecognized
// charsets pass through untouched.
func decodeText(raw []byte) ([]byte, error) {
	sample := raw
	if len(sample) > 2048 {
		sample = sample[:2048]
	}

	cs := "utf-8"
	if det, err := chardet.NewTextDetector().DetectBest(sample); err == nil && det != nil {
		cs = strings.ToLower(det.Charset)
	}

	var dec *charmap.Charmap
	switch cs {
	case "windows-1254", "iso-8859-9":
		dec = charmap.Windows1254
	case "windows-1251", "cp1251":
		dec = charmap.Windows1251
	case "windows-1252", "iso-8859-1":
		dec = charmap.Windows1252
	default:
		return raw, nil
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), dec.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("decode %s csv: %w", cs, err)
	}
	return decoded, nil
}

// sniffDelimiter picks the separator that dominates the first line.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	best, bestCount := ',', bytes.Count(line, []byte(","))
	for _, cand := range []byte{';', '\t'} {
		if n := bytes.Count(line, []byte{cand}); n > bestCount {
			best, bestCount = rune(cand), n
		}
	}
	return best
}
